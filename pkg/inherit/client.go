package inherit

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/pkg/logger"
)

// Trigger 资产释放下游接口，黑盒，投递成功与否由错误返回值表示
type Trigger interface {
	// BeginRelease 通知下游开始对指定用户执行资产释放流程
	BeginRelease(ctx context.Context, userID int64) error
}

var (
	trigger     Trigger
	triggerOnce sync.Once
	triggerErr  error
)

// Init 初始化资产释放客户端
func Init() error {
	triggerOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.InheritanceProvider {
		case "webhook":
			trigger, triggerErr = NewWebhookTrigger(cfg.InheritanceWebhookURL, cfg.InheritanceWebhookToken)
		case "mock":
			trigger = NewMockTrigger()
		default:
			triggerErr = fmt.Errorf("unsupported inheritance provider: %s", cfg.InheritanceProvider)
		}

		if triggerErr != nil {
			// 配置缺失时降级为 mock，消费者照常运行，触发动作仅落日志
			trigger = NewMockTrigger()
			logger.Logger.Error("Failed to initialize inheritance trigger, falling back to mock",
				zap.String("provider", cfg.InheritanceProvider),
				zap.Error(triggerErr),
			)
			return
		}

		logger.Logger.Info("Inheritance trigger initialized successfully",
			zap.String("provider", cfg.InheritanceProvider),
		)
	})

	return triggerErr
}

func GetTrigger() Trigger {
	if trigger == nil {
		panic("inheritance trigger not initialized, call inherit.Init() first")
	}
	return trigger
}
