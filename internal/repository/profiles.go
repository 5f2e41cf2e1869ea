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

// ErrNotFound 记录不存在或已过保留窗口
var ErrNotFound = errors.New("record not found")

// ProfileRepository 驾驶员档案仓库
// 过期记录（expires_at 已过）在读路径上等同于不存在
type ProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProfileRepository 创建驾驶员档案仓库
func NewProfileRepository(db *sql.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetProfile 根据 driver_id 获取档案
func (r *ProfileRepository) GetProfile(ctx context.Context, driverID string) (*models.DriverProfile, error) {
	if driverID == "" {
		return nil, fmt.Errorf("driver_id is required")
	}

	query := `
		SELECT
			driver_id,
			name,
			gender,
			date_of_birth,
			blood_type,
			emergency_contact,
			weight,
			height,
			chronic_diseases,
			allergies,
			last_updated,
			expires_at
		FROM driver_profiles
		WHERE driver_id = $1 AND expires_at > NOW()
	`

	var profile models.DriverProfile
	var chronicDiseasesJSON, allergiesJSON string

	err := r.db.QueryRowContext(ctx, query, driverID).Scan(
		&profile.DriverID,
		&profile.Name,
		&profile.Gender,
		&profile.DateOfBirth,
		&profile.BloodType,
		&profile.EmergencyContact,
		&profile.Weight,
		&profile.Height,
		&chronicDiseasesJSON,
		&allergiesJSON,
		&profile.LastUpdated,
		&profile.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver profile: %w", err)
	}

	if err := json.Unmarshal([]byte(chronicDiseasesJSON), &profile.ChronicDiseases); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chronic_diseases: %w", err)
	}
	if err := json.Unmarshal([]byte(allergiesJSON), &profile.Allergies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allergies: %w", err)
	}

	return &profile, nil
}

// PutProfile 写入档案（upsert，整体替换，last-write-wins）
func (r *ProfileRepository) PutProfile(ctx context.Context, profile *models.DriverProfile) error {
	if profile.DriverID == "" {
		return fmt.Errorf("driver_id is required")
	}

	chronicDiseasesJSON, err := marshalStringList(profile.ChronicDiseases)
	if err != nil {
		return fmt.Errorf("failed to marshal chronic_diseases: %w", err)
	}
	allergiesJSON, err := marshalStringList(profile.Allergies)
	if err != nil {
		return fmt.Errorf("failed to marshal allergies: %w", err)
	}

	query := `
		INSERT INTO driver_profiles (
			driver_id, name, gender, date_of_birth, blood_type,
			emergency_contact, weight, height, chronic_diseases, allergies,
			last_updated, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (driver_id) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth,
			blood_type = EXCLUDED.blood_type,
			emergency_contact = EXCLUDED.emergency_contact,
			weight = EXCLUDED.weight,
			height = EXCLUDED.height,
			chronic_diseases = EXCLUDED.chronic_diseases,
			allergies = EXCLUDED.allergies,
			last_updated = EXCLUDED.last_updated,
			expires_at = EXCLUDED.expires_at
	`

	_, err = r.db.ExecContext(ctx, query,
		profile.DriverID,
		profile.Name,
		profile.Gender,
		profile.DateOfBirth,
		profile.BloodType,
		profile.EmergencyContact,
		profile.Weight,
		profile.Height,
		chronicDiseasesJSON,
		allergiesJSON,
		profile.LastUpdated,
		profile.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put driver profile: %w", err)
	}

	r.logger.Debug("Driver profile stored",
		zap.String("driver_id", profile.DriverID),
	)

	return nil
}

// marshalStringList 序列化字符串列表，nil 按空数组处理
func marshalStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
