package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Heritage/internal/cache"
	"Heritage/internal/model"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/logger"
	"Heritage/storage/mq"
)

// EffectHandler 效果处理服务的契约，worker 启动时注入
type EffectHandler interface {
	HandleReminder(ctx context.Context, msg model.EffectMessage) error
	HandleAlert(ctx context.Context, msg model.EffectMessage) error
	HandleInheritance(ctx context.Context, msg model.EffectMessage) error
}

var effectHandler EffectHandler

// SetEffectHandler 设置效果处理服务（在 worker 启动时调用）
func SetEffectHandler(h EffectHandler) {
	effectHandler = h
}

// makeHandler 包装消息级幂等检查与反序列化
// 消息标记只挡快速重复，周期级去重由通知日志兜底
func makeHandler(ctx context.Context, process func(context.Context, model.EffectMessage) error) mq.MessageHandler {
	return func(body []byte) error {
		var msg model.EffectMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal effect message: %w", err)
		}

		if effectHandler == nil {
			return fmt.Errorf("effect handler not set")
		}

		processed, err := cache.TryMarkMessageProcessing(ctx, msg.MessageID, 24*time.Hour)
		if err != nil {
			logger.Logger.Warn("Failed to check message processed status",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
			// 检查失败时继续处理，通知日志会兜底去重
		} else if !processed {
			logger.Logger.Info("Message already processed or being processed, skipping",
				zap.String("message_id", msg.MessageID),
				zap.String("batch_id", msg.BatchID),
			)
			return &pkgerrors.SkipMessageError{Reason: fmt.Sprintf("Message %s already processed", msg.MessageID)}
		}

		if err := process(ctx, msg); err != nil {
			var skip *pkgerrors.SkipMessageError
			if !errors.As(err, &skip) {
				// 处理失败，取消标记，允许重试
				if uerr := cache.UnmarkMessageProcessing(ctx, msg.MessageID); uerr != nil {
					logger.Logger.Warn("Failed to unmark message processing",
						zap.String("message_id", msg.MessageID),
						zap.Error(uerr),
					)
				}
			}
			return err
		}

		if err := cache.MarkMessageProcessed(ctx, msg.MessageID, 48*time.Hour); err != nil {
			logger.Logger.Warn("Failed to mark message as processed",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
		}

		return nil
	}
}

// StartReminderConsumer 启动到期提醒消费者
func StartReminderConsumer(ctx context.Context) error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.ReminderQueue,
		ConsumerTag:   "reminder_consumer",
		PrefetchCount: 10,
		Handler: makeHandler(ctx, func(ctx context.Context, msg model.EffectMessage) error {
			return effectHandler.HandleReminder(ctx, msg)
		}),
	})
}

// StartAlertConsumer 启动受益人告警消费者
func StartAlertConsumer(ctx context.Context) error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.AlertQueue,
		ConsumerTag:   "alert_consumer",
		PrefetchCount: 10,
		Handler: makeHandler(ctx, func(ctx context.Context, msg model.EffectMessage) error {
			return effectHandler.HandleAlert(ctx, msg)
		}),
	})
}

// StartInheritanceConsumer 启动资产释放消费者
func StartInheritanceConsumer(ctx context.Context) error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.InheritanceQueue,
		ConsumerTag:   "inheritance_consumer",
		PrefetchCount: 5,
		Handler: makeHandler(ctx, func(ctx context.Context, msg model.EffectMessage) error {
			return effectHandler.HandleInheritance(ctx, msg)
		}),
	})
}

// StartAllConsumers 启动全部消费者，每个消费者一个 goroutine
func StartAllConsumers(ctx context.Context) {
	go func() {
		if err := StartReminderConsumer(ctx); err != nil {
			logger.Logger.Error("Reminder consumer exited", zap.Error(err))
		}
	}()
	go func() {
		if err := StartAlertConsumer(ctx); err != nil {
			logger.Logger.Error("Alert consumer exited", zap.Error(err))
		}
	}()
	go func() {
		if err := StartInheritanceConsumer(ctx); err != nil {
			logger.Logger.Error("Inheritance consumer exited", zap.Error(err))
		}
	}()
}
