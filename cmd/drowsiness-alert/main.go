package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/logger"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "drowsiness-alert")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting drowsiness alert service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("alert_topic", cfg.Topics.DrowsinessAlerts),
		zap.String("profile_topic", cfg.Topics.DriverProfile),
		zap.Int64("monthly_message_limit", cfg.Quota.MonthlyMessageLimit),
	)

	// 创建服务
	drowsinessService, err := service.NewDrowsinessService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create drowsiness service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := drowsinessService.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start drowsiness service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := drowsinessService.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
