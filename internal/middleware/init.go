package middleware

import (
	"go.uber.org/zap"

	"Heritage/pkg/logger"
	"Heritage/pkg/metrics"
)

// Init 初始化所有中间件依赖的指标
func Init() error {
	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Error("Failed to initialize metrics", zap.Error(err))
		return err
	}

	logger.Logger.Info("All middlewares initialized successfully")
	return nil
}
