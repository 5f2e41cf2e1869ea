package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// ErrDuplicateAlert alert_id 已存在，告警记录写入后不可覆盖
var ErrDuplicateAlert = errors.New("duplicate alert_id")

// AlertRepository 告警记录仓库
// alert_id 上 first-write-wins，过期记录在读路径上等同于不存在
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建告警记录仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// InsertAlert 写入告警记录
// 重复 alert_id 返回 ErrDuplicateAlert，不覆盖已有记录
func (r *AlertRepository) InsertAlert(ctx context.Context, record *models.AlertRecord) error {
	if record.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	var locationJSON sql.NullString
	if record.Location != nil {
		data, err := json.Marshal(record.Location)
		if err != nil {
			return fmt.Errorf("failed to marshal location: %w", err)
		}
		locationJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO drowsiness_alerts (
			alert_id, driver_id, timestamp, location, message,
			drowsiness_level, confidence, speed, processed, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (alert_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		record.AlertID,
		record.DriverID,
		record.Timestamp,
		locationJSON,
		record.Message,
		record.DrowsinessLevel,
		record.Confidence,
		record.Speed,
		record.Processed,
		record.ExpiresAt,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateAlert
	}

	r.logger.Debug("Alert record stored",
		zap.String("alert_id", record.AlertID),
		zap.String("driver_id", record.DriverID),
	)

	return nil
}

// GetAlert 根据 alert_id 获取告警记录
func (r *AlertRepository) GetAlert(ctx context.Context, alertID string) (*models.AlertRecord, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := `
		SELECT
			alert_id, driver_id, timestamp, location, message,
			drowsiness_level, confidence, speed, processed, expires_at, created_at
		FROM drowsiness_alerts
		WHERE alert_id = $1 AND expires_at > NOW()
	`

	record, err := r.scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert record: %w", err)
	}

	return record, nil
}

// ListRecentAlerts 按处理时间倒序列出未过期的告警记录
func (r *AlertRepository) ListRecentAlerts(ctx context.Context, limit int) ([]*models.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			alert_id, driver_id, timestamp, location, message,
			drowsiness_level, confidence, speed, processed, expires_at, created_at
		FROM drowsiness_alerts
		WHERE expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert records: %w", err)
	}
	defer rows.Close()

	var records []*models.AlertRecord
	for rows.Next() {
		record, err := r.scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert records: %w", err)
	}

	return records, nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *AlertRepository) scanAlert(row scanner) (*models.AlertRecord, error) {
	var record models.AlertRecord
	var locationJSON sql.NullString

	err := row.Scan(
		&record.AlertID,
		&record.DriverID,
		&record.Timestamp,
		&locationJSON,
		&record.Message,
		&record.DrowsinessLevel,
		&record.Confidence,
		&record.Speed,
		&record.Processed,
		&record.ExpiresAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if locationJSON.Valid {
		var location models.Location
		if err := json.Unmarshal([]byte(locationJSON.String), &location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
		record.Location = &location
	}

	return &record, nil
}
