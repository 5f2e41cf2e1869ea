package governor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// UsageStore 用量统计持久化接口（用于在单元测试中替换 Redis）
// Load 未找到历史统计时返回 (nil, nil)，由调用方归零重建
type UsageStore interface {
	Load(ctx context.Context) (*models.UsageStats, error)
	Save(ctx context.Context, stats *models.UsageStats) error
}

// RedisUsageStore 基于 Redis 的用量统计存储（生产环境，跨实例共享）
type RedisUsageStore struct {
	client *redis.Client
	key    string
}

func NewRedisUsageStore(client *redis.Client, key string) *RedisUsageStore {
	return &RedisUsageStore{client: client, key: key}
}

func (s *RedisUsageStore) Load(ctx context.Context) (*models.UsageStats, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load usage stats: %w", err)
	}

	var stats models.UsageStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage stats: %w", err)
	}

	return &stats, nil
}

func (s *RedisUsageStore) Save(ctx context.Context, stats *models.UsageStats) error {
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal usage stats: %w", err)
	}

	// 统计数据不设TTL，周期复位由 Governor 负责
	if err := s.client.Set(ctx, s.key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save usage stats: %w", err)
	}

	return nil
}

// FileUsageStore 基于本地JSON文件的用量统计存储（单机部署，无需 Redis）
type FileUsageStore struct {
	path string
}

func NewFileUsageStore(path string) *FileUsageStore {
	return &FileUsageStore{path: path}
}

func (s *FileUsageStore) Load(ctx context.Context) (*models.UsageStats, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read usage stats file: %w", err)
	}

	var stats models.UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage stats file: %w", err)
	}

	return &stats, nil
}

func (s *FileUsageStore) Save(ctx context.Context, stats *models.UsageStats) error {
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal usage stats: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write usage stats file: %w", err)
	}

	return nil
}

// MemoryUsageStore 内存用量统计存储（单元测试用）
type MemoryUsageStore struct {
	mu    sync.Mutex
	stats *models.UsageStats
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) Load(ctx context.Context) (*models.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats == nil {
		return nil, nil
	}
	copied := *s.stats
	return &copied, nil
}

func (s *MemoryUsageStore) Save(ctx context.Context, stats *models.UsageStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *stats
	s.stats = &copied
	return nil
}
