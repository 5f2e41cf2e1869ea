package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// CacheManager Redis 实时缓存管理器
// 为仪表盘等订阅方维护每个驾驶员的最新合并告警和档案快照
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// SetCombinedAlert 缓存最新合并告警（键按 driver_id 组织）
func (c *CacheManager) SetCombinedAlert(ctx context.Context, combined *models.CombinedAlert) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.DriverKeyPrefix,
		combined.Alert.DriverID,
		c.config.Cache.AlertSuffix,
	)

	jsonData, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("failed to marshal combined alert: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Cache.AlertTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated combined alert cache",
		zap.String("driver_id", combined.Alert.DriverID),
		zap.String("key", key),
	)

	return nil
}

// GetCombinedAlert 读取缓存的最新合并告警
func (c *CacheManager) GetCombinedAlert(ctx context.Context, driverID string) (*models.CombinedAlert, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.DriverKeyPrefix,
		driverID,
		c.config.Cache.AlertSuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert cache: %w", err)
	}

	var combined models.CombinedAlert
	if err := json.Unmarshal([]byte(val), &combined); err != nil {
		return nil, fmt.Errorf("failed to unmarshal combined alert: %w", err)
	}

	return &combined, nil
}

// SetProfile 缓存档案快照
func (c *CacheManager) SetProfile(ctx context.Context, profile *models.DriverProfile) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Cache.DriverKeyPrefix,
		profile.DriverID,
		c.config.Cache.ProfileSuffix,
	)

	jsonData, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Cache.ProfileTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set profile cache: %w", err)
	}

	return nil
}
