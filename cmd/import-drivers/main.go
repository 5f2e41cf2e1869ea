package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/correlator"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/database"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/governor"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/ingestion"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/logger"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/repository"
)

// 一次性批量导入工具：把数据目录中的档案和历史告警文件灌进存储
// 不连 MQTT 和 Redis —— 只落库，不发布，配额统计走本地文件
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, "console", "import-drivers")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	profileRepo := repository.NewProfileRepository(db, zapLogger)
	alertRepo := repository.NewAlertRepository(db, zapLogger)

	usageStore := governor.NewFileUsageStore(cfg.Ingestion.DataDir + "/usage_stats.json")
	quota := governor.New(usageStore, cfg.Quota.MonthlyMessageLimit, cfg.Quota.ResetIntervalDays, zapLogger)

	alertHandler := correlator.NewCorrelator(cfg, profileRepo, alertRepo, nil, nil, zapLogger)
	profileHandler := correlator.NewProfileHandler(cfg, profileRepo, nil, nil, zapLogger)

	loop := ingestion.NewLoop(cfg, alertHandler, profileHandler, quota, zapLogger)

	accepted := loop.RunOnce(context.Background())
	zapLogger.Info("Bulk import finished", zap.Int64("accepted", accepted))
}
