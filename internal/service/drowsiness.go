package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/consumer"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/correlator"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/database"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/governor"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/ingestion"
	mqttclient "github.com/ghadaalii/aws-driver-drowsiness-alert/internal/mqtt"
	redisclient "github.com/ghadaalii/aws-driver-drowsiness-alert/internal/redis"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/repository"
)

// DrowsinessService 疲劳告警关联服务
type DrowsinessService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redisclient.Client
	mqttClient *mqttclient.Client
	consumer   *consumer.MQTTConsumer
	ingestion  *ingestion.Loop
	governor   *governor.Governor
}

// NewDrowsinessService 创建疲劳告警关联服务
func NewDrowsinessService(cfg *config.Config, logger *zap.Logger) (*DrowsinessService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := redisclient.NewRedisClient(&cfg.Redis)
	if err := redisclient.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttclient.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 创建Repository和缓存
	profileRepo := repository.NewProfileRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)
	cacheManager := repository.NewCacheManager(cfg, redisClient, logger)

	// 配额治理器（Redis持久化，跨重启和跨实例共享）
	usageStore := governor.NewRedisUsageStore(redisClient, cfg.Quota.StatsKey)
	quota := governor.New(usageStore, cfg.Quota.MonthlyMessageLimit, cfg.Quota.ResetIntervalDays, logger)

	// 创建处理器
	alertHandler := correlator.NewCorrelator(cfg, profileRepo, alertRepo, cacheManager, mqttClient, logger)
	profileHandler := correlator.NewProfileHandler(cfg, profileRepo, cacheManager, mqttClient, logger)

	// 创建Consumer和批量导入循环
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, alertHandler, profileHandler, logger)
	ingestionLoop := ingestion.NewLoop(cfg, alertHandler, profileHandler, quota, logger)

	return &DrowsinessService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		consumer:   mqttConsumer,
		ingestion:  ingestionLoop,
		governor:   quota,
	}, nil
}

// Start 启动服务（阻塞直到上下文取消）
func (s *DrowsinessService) Start(ctx context.Context) error {
	stats := s.governor.Stats()
	s.logger.Info("Starting drowsiness alert service",
		zap.Int64("quota_used", stats.MessageCount),
		zap.Int64("quota_limit", s.config.Quota.MonthlyMessageLimit),
	)

	if s.config.Ingestion.Enabled {
		go func() {
			if err := s.ingestion.Run(ctx); err != nil {
				s.logger.Error("Ingestion loop exited with error", zap.Error(err))
			}
		}()
	}

	return s.consumer.Start(ctx)
}

// Stop 优雅关闭
func (s *DrowsinessService) Stop(ctx context.Context) error {
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop consumer", zap.Error(err))
	}

	s.mqttClient.Disconnect()

	if err := redisclient.Close(s.redis); err != nil {
		s.logger.Error("Failed to close redis connection", zap.Error(err))
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	return nil
}
