package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/pkg/logger"
)

// Sender 通知投递接口，短信渠道
type Sender interface {
	// SendSingle 发送单条短信
	// phone: 手机号
	// signName: 短信签名名称
	// templateCode: 模板代码
	// templateParam: 模板参数（JSON 字符串）
	SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) error
}

var (
	sender     Sender
	senderOnce sync.Once
	senderErr  error
)

// Init 初始化通知客户端
func Init() error {
	senderOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.SMSProvider {
		case "aliyun":
			sender, senderErr = NewAliyunClient()
		case "mock":
			sender = NewMockClient()
		default:
			senderErr = fmt.Errorf("unsupported SMS provider: %s", cfg.SMSProvider)
		}

		if senderErr != nil {
			// 渠道不可用时降级为 mock，打卡与调度流程不因短信通道阻塞
			sender = NewMockClient()
			logger.Logger.Error("Failed to initialize notify client, falling back to mock",
				zap.String("provider", cfg.SMSProvider),
				zap.Error(senderErr),
			)
			return
		}

		logger.Logger.Info("Notify client initialized successfully",
			zap.String("provider", cfg.SMSProvider),
		)
	})

	return senderErr
}

func GetSender() Sender {
	if sender == nil {
		panic("notify sender not initialized, call notify.Init() first")
	}
	return sender
}

func SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) error {
	return GetSender().SendSingle(ctx, phone, signName, templateCode, templateParam)
}
