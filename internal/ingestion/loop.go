package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/correlator"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// AlertHandler 告警处理接口（由 correlator.Correlator 实现）
type AlertHandler interface {
	Handle(ctx context.Context, event *models.AlertEvent) (*correlator.AlertResult, error)
}

// ProfileHandler 档案处理接口（由 correlator.ProfileHandler 实现）
type ProfileHandler interface {
	Handle(ctx context.Context, payload []byte) (*correlator.ProfileResult, error)
}

// QuotaGovernor 出站配额接口（由 governor.Governor 实现）
type QuotaGovernor interface {
	Check(ctx context.Context) bool
	Record(ctx context.Context, n int64)
}

// Loop 批量导入循环
// 周期性轮询数据目录中的驾驶员档案和历史告警文件，逐条喂给处理器
// 每轮开始前询问配额治理器：被拒绝时跳过本轮（延后而不是丢弃，文件下轮重读）
type Loop struct {
	config         *config.Config
	alertHandler   AlertHandler
	profileHandler ProfileHandler
	governor       QuotaGovernor
	logger         *zap.Logger
}

// NewLoop 创建批量导入循环
func NewLoop(
	cfg *config.Config,
	alertHandler AlertHandler,
	profileHandler ProfileHandler,
	quota QuotaGovernor,
	logger *zap.Logger,
) *Loop {
	return &Loop{
		config:         cfg,
		alertHandler:   alertHandler,
		profileHandler: profileHandler,
		governor:       quota,
		logger:         logger,
	}
}

// Run 启动轮询，直到上下文取消
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Duration(l.config.Ingestion.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("Ingestion loop started",
		zap.String("data_dir", l.config.Ingestion.DataDir),
		zap.Duration("poll_interval", interval),
	)

	// 启动时先跑一轮
	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Ingestion loop stopped")
			return nil
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce 处理一轮待导入文件，返回本轮接受的事件数
// 只统计处理成功的事件，校验失败不计入配额
func (l *Loop) RunOnce(ctx context.Context) int64 {
	if !l.governor.Check(ctx) {
		l.logger.Warn("Message quota exhausted, deferring bulk ingestion")
		return 0
	}

	var accepted int64

	driversPath := filepath.Join(l.config.Ingestion.DataDir, l.config.Ingestion.DriversFile)
	accepted += l.processFile(ctx, driversPath, l.handleProfileRow)

	alertsPath := filepath.Join(l.config.Ingestion.DataDir, l.config.Ingestion.AlertsFile)
	accepted += l.processFile(ctx, alertsPath, l.handleAlertRow)

	if accepted > 0 {
		// 每批记一次配额，而不是每条消息一次
		l.governor.Record(ctx, accepted)
		l.logger.Info("Bulk ingestion batch completed",
			zap.Int64("accepted", accepted),
		)
	}

	return accepted
}

// rowHandler 处理单行归一化载荷，返回是否接受
type rowHandler func(ctx context.Context, payload []byte) bool

// processFile 读取并处理单个文件，处理完改名防止重复消费
func (l *Loop) processFile(ctx context.Context, path string, handle rowHandler) int64 {
	if _, err := os.Stat(path); err != nil {
		// 文件不存在是常态，静默跳过
		return 0
	}

	rows, err := readRows(path)
	if err != nil {
		l.logger.Error("Failed to read bulk file",
			zap.String("path", path),
			zap.Error(err),
		)
		return 0
	}

	var accepted int64
	for _, row := range rows {
		if handle(ctx, row) {
			accepted++
		}
	}

	// 改名标记已消费，失败只记日志（下轮会重读，处理器幂等性兜底）
	if err := os.Rename(path, path+".done"); err != nil {
		l.logger.Warn("Failed to mark bulk file as done",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	l.logger.Info("Bulk file processed",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int64("accepted", accepted),
	)

	return accepted
}

func (l *Loop) handleProfileRow(ctx context.Context, payload []byte) bool {
	if _, err := l.profileHandler.Handle(ctx, payload); err != nil {
		l.logger.Warn("Bulk profile row rejected",
			zap.String("error_code", string(correlator.ErrorCode(err))),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (l *Loop) handleAlertRow(ctx context.Context, payload []byte) bool {
	event, err := decodeAlertRow(payload)
	if err != nil {
		l.logger.Warn("Bulk alert row malformed", zap.Error(err))
		return false
	}

	if _, err := l.alertHandler.Handle(ctx, event); err != nil {
		l.logger.Warn("Bulk alert row rejected",
			zap.String("driver_id", event.DriverID),
			zap.String("error_code", string(correlator.ErrorCode(err))),
			zap.Error(err),
		)
		return false
	}
	return true
}
