package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/internal/queue"
	"Heritage/internal/service"
	"Heritage/pkg/inherit"
	"Heritage/pkg/logger"
	"Heritage/pkg/metrics"
	"Heritage/pkg/notify"
	"Heritage/pkg/otel"
	"Heritage/pkg/snowflake"
	"Heritage/storage"
)

func main() {

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Worker received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for worker", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for worker", zap.Error(err))
	}

	// 短信通道不可用时降级为 mock，消费流程继续跑
	if err := notify.Init(); err != nil {
		logger.Logger.Warn("Failed to initialize SMS sender, falling back to mock", zap.Error(err))
	}
	if err := inherit.Init(); err != nil {
		logger.Logger.Warn("Failed to initialize inheritance trigger, falling back to mock", zap.Error(err))
	}

	shutdownOtel, err := otel.InitOpenTelemetry(ctx, otel.Config{
		ServiceName:    config.Cfg.ServiceName + "-worker",
		ServiceVersion: "1.0.0",
		Environment:    config.Cfg.Environment,
		OTLPEndpoint:   config.Cfg.OTLPEndpoint,
		SampleRatio:    config.Cfg.TraceSampler,
	})
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, observability disabled", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownOtel(context.Background()); err != nil {
				logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
			}
		}()
	}

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize metrics", zap.Error(err))
	}

	queue.SetEffectHandler(service.Notification())

	queue.StartAllConsumers(ctx)

	logger.Logger.Info("Worker service started",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	<-ctx.Done()

	logger.Logger.Info("Worker service shutting down gracefully")
}
