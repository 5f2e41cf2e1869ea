package governor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// Governor 出站消息配额治理器
// 对齐 AWS IoT Core Free Tier：每月消息量上限，30天滚动复位
// 计数是尽力而为的参考值：持久化失败只记日志不阻塞发送，
// 少计可以容忍，多计导致的拒发会在下个周期复位时解除
type Governor struct {
	mu            sync.Mutex
	stats         *models.UsageStats
	store         UsageStore
	limit         int64
	resetInterval time.Duration
	logger        *zap.Logger

	// 测试时替换时钟
	now func() time.Time
}

// New 创建配额治理器并加载历史统计
// 加载失败或无历史数据时从归零状态开始
func New(store UsageStore, limit int64, resetIntervalDays int, logger *zap.Logger) *Governor {
	g := &Governor{
		store:         store,
		limit:         limit,
		resetInterval: time.Duration(resetIntervalDays) * 24 * time.Hour,
		logger:        logger,
		now:           time.Now,
	}

	stats, err := store.Load(context.Background())
	if err != nil {
		g.logger.Warn("Failed to load usage stats, starting from zero", zap.Error(err))
		stats = nil
	}
	if stats == nil {
		stats = models.NewUsageStats(g.now().UTC())
	}
	g.stats = stats

	return g
}

// Check 判断当前周期是否还允许出站发送
// 距上次复位超过复位间隔时先归零再判断
func (g *Governor) Check(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	if now.Sub(g.stats.LastReset) >= g.resetInterval {
		g.resetLocked(ctx, now)
	}

	if g.stats.MessageCount >= g.limit {
		g.logger.Warn("Monthly message quota reached",
			zap.Int64("message_count", g.stats.MessageCount),
			zap.Int64("limit", g.limit),
		)
		return false
	}

	return true
}

// Record 记录 n 条出站消息并持久化
// 每个成功批次调用一次而不是每条消息一次，控制持久化开销
func (g *Governor) Record(ctx context.Context, n int64) {
	if n < 1 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.MessageCount += n
	if err := g.store.Save(ctx, g.stats); err != nil {
		// 持久化失败不阻塞调用方，配额跟踪为尽力而为
		g.logger.Warn("Failed to persist usage stats",
			zap.Int64("message_count", g.stats.MessageCount),
			zap.Error(err),
		)
	}
}

// Stats 返回当前统计快照
func (g *Governor) Stats() models.UsageStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return *g.stats
}

// resetLocked 周期复位（持有锁时调用）
func (g *Governor) resetLocked(ctx context.Context, now time.Time) {
	g.stats = models.NewUsageStats(now)
	if err := g.store.Save(ctx, g.stats); err != nil {
		g.logger.Warn("Failed to persist usage stats after reset", zap.Error(err))
	}

	g.logger.Info("Usage stats reset for new billing period",
		zap.Time("period_start", now),
	)
}
