package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *CacheManager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.DriverKeyPrefix = "drowsiness:driver:"
	cfg.Cache.AlertSuffix = ":alert"
	cfg.Cache.ProfileSuffix = ":profile"
	cfg.Cache.AlertTTL = 3600
	cfg.Cache.ProfileTTL = 3600

	logger := zap.NewNop()
	cacheManager := NewCacheManager(cfg, redisClient, logger)

	return mr, cacheManager
}

func TestCacheManager_CombinedAlertRoundTrip(t *testing.T) {
	mr, cacheManager := setupTestCache(t)

	now := time.Now().UTC()
	combined := &models.CombinedAlert{
		Alert: &models.AlertRecord{
			AlertID:   "alert-1",
			DriverID:  "DRIVER123456",
			Timestamp: now.Format(time.RFC3339),
			Message:   models.DefaultAlertMessage,
			Processed: true,
			ExpiresAt: now.Add(30 * 24 * time.Hour),
			CreatedAt: now,
		},
		DriverInfo: models.PlaceholderProfile("DRIVER123456"),
	}

	ctx := context.Background()
	require.NoError(t, cacheManager.SetCombinedAlert(ctx, combined))

	// 键带TTL
	ttl := mr.TTL("drowsiness:driver:DRIVER123456:alert")
	assert.Equal(t, 3600*time.Second, ttl)

	got, err := cacheManager.GetCombinedAlert(ctx, "DRIVER123456")
	require.NoError(t, err)
	assert.Equal(t, "alert-1", got.Alert.AlertID)
	assert.True(t, got.Alert.Processed)
	assert.Equal(t, models.PlaceholderName, got.DriverInfo.Name)
}

func TestCacheManager_GetCombinedAlert_NotFound(t *testing.T) {
	_, cacheManager := setupTestCache(t)

	_, err := cacheManager.GetCombinedAlert(context.Background(), "DRIVER999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheManager_SetProfile(t *testing.T) {
	mr, cacheManager := setupTestCache(t)

	now := time.Now().UTC()
	profile := &models.DriverProfile{
		DriverID:         "DRIVER123456",
		Name:             "John Doe",
		Gender:           "male",
		DateOfBirth:      "1990-01-01",
		BloodType:        "A+",
		EmergencyContact: "+1234567890",
		Weight:           75.5,
		Height:           180.0,
		ChronicDiseases:  []string{"Hypertension"},
		Allergies:        []string{"Penicillin"},
		LastUpdated:      now,
		ExpiresAt:        now.Add(365 * 24 * time.Hour),
	}

	ctx := context.Background()
	require.NoError(t, cacheManager.SetProfile(ctx, profile))

	val, err := mr.Get("drowsiness:driver:DRIVER123456:profile")
	require.NoError(t, err)

	var got models.DriverProfile
	require.NoError(t, json.Unmarshal([]byte(val), &got))
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, []string{"Hypertension"}, got.ChronicDiseases)
}
