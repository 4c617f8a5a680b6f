package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"Heritage/internal/cache"
	"Heritage/internal/escalate"
	"Heritage/internal/model"
	"Heritage/pkg/logger"
	"Heritage/pkg/snowflake"
	"Heritage/storage/mq"
)

// 效果消息统一从这里投递，routing key 按效果类型区分

func routingKeyFor(effectType escalate.EffectType) (string, error) {
	switch effectType {
	case escalate.EffectSendReminder:
		return mq.ReminderRoutingKey, nil
	case escalate.EffectAlertBeneficiaries:
		return mq.AlertRoutingKey, nil
	case escalate.EffectTriggerInheritance:
		return mq.InheritanceRoutingKey, nil
	default:
		return "", fmt.Errorf("unknown effect type: %s", effectType)
	}
}

// PublishEffect 发布一条升级效果消息
func PublishEffect(batchID string, effect escalate.Effect) error {
	routingKey, err := routingKeyFor(effect.Type)
	if err != nil {
		return err
	}

	ctx := context.Background()
	effectKey := cache.EffectKey(effect.UserID, string(effect.Type), effect.OffsetDays, effect.CycleStart)

	// 调度器每轮都会重发未完结效果，投递标记把窗口内的重复发布挡在队列之外
	// Redis 不可用时放行，由消费端的通知流水兜底去重
	dispatched, err := cache.IsEffectDispatched(ctx, effectKey)
	if err != nil {
		logger.Logger.Warn("Failed to check effect dispatch mark, publishing anyway",
			zap.String("effect_key", effectKey),
			zap.Error(err),
		)
	} else if dispatched {
		logger.Logger.Debug("Effect already dispatched in current window, skipping",
			zap.String("effect_key", effectKey),
			zap.String("batch_id", batchID),
		)
		return nil
	}

	id, err := snowflake.NextID()
	if err != nil {
		logger.Logger.Error("Failed to generate message ID",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to generate message ID: %w", err)
	}

	msg := model.EffectMessage{
		MessageID:   fmt.Sprintf("effect_%d", id),
		BatchID:     batchID,
		EffectType:  string(effect.Type),
		UserID:      effect.UserID,
		OffsetDays:  effect.OffsetDays,
		CycleStart:  effect.CycleStart.Format(time.RFC3339),
		ScheduledAt: time.Now().Format(time.RFC3339),
	}

	if err := cache.MarkEffectDispatched(ctx, effectKey); err != nil {
		logger.Logger.Warn("Failed to set effect dispatch mark",
			zap.String("effect_key", effectKey),
			zap.Error(err),
		)
	}

	if err := mq.PublishMessage(mq.EffectExchange, routingKey, msg); err != nil {
		if unmarkErr := cache.UnmarkEffectDispatched(ctx, effectKey); unmarkErr != nil {
			logger.Logger.Warn("Failed to clear effect dispatch mark after publish failure",
				zap.String("effect_key", effectKey),
				zap.Error(unmarkErr),
			)
		}
		logger.Logger.Error("Failed to publish effect message",
			zap.String("message_id", msg.MessageID),
			zap.String("batch_id", batchID),
			zap.String("effect_type", msg.EffectType),
			zap.Int64("user_id", effect.UserID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published effect message",
		zap.String("message_id", msg.MessageID),
		zap.String("batch_id", batchID),
		zap.String("effect_type", msg.EffectType),
		zap.Int64("user_id", effect.UserID),
		zap.String("routing_key", routingKey),
	)

	return nil
}
