package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// ProfileCache 档案快照缓存接口
type ProfileCache interface {
	SetProfile(ctx context.Context, profile *models.DriverProfile) error
}

// ProfileResult 档案更新的处理结果
type ProfileResult struct {
	DriverID string `json:"driver_id"`
}

// ProfileHandler 驾驶员档案更新处理器
// 车机端的档案上报是松散的 JSON：数值可能是数字也可能是字符串，
// 关联键可能叫 id 也可能叫 driver_id，统一在这里归一化后校验入库
type ProfileHandler struct {
	config    *config.Config
	profiles  ProfileStore
	cache     ProfileCache
	publisher Publisher
	logger    *zap.Logger

	now func() time.Time
}

// NewProfileHandler 创建档案更新处理器
func NewProfileHandler(
	cfg *config.Config,
	profiles ProfileStore,
	cache ProfileCache,
	publisher Publisher,
	logger *zap.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		config:    cfg,
		profiles:  profiles,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// profileRequiredFields 入库前必须齐备的字段
var profileRequiredFields = []string{
	"driver_id", "name", "gender", "date_of_birth",
	"weight", "height", "emergency_contact", "blood_type",
}

// Handle 处理单条档案更新
// 校验失败返回列出全部缺失字段的 ValidationError，不做部分写入
func (h *ProfileHandler) Handle(ctx context.Context, payload []byte) (*ProfileResult, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, validationError([]string{"payload"})
	}

	profile := mapProfile(raw)

	if missing := validateProfile(profile); len(missing) > 0 {
		return nil, validationError(missing)
	}

	now := h.now().UTC()
	profile.LastUpdated = now
	profile.ExpiresAt = now.Add(time.Duration(h.config.Retention.ProfileTTLDays) * 24 * time.Hour)

	// 整体替换写入
	if err := h.profiles.PutProfile(ctx, profile); err != nil {
		return nil, storageError(err)
	}

	// 档案广播（仪表盘等在线订阅方），失败不影响结果
	if h.cache != nil {
		if err := h.cache.SetProfile(ctx, profile); err != nil {
			h.logger.Warn("Failed to update profile cache",
				zap.String("driver_id", profile.DriverID),
				zap.Error(err),
			)
		}
	}
	h.publishProfile(profile)

	h.logger.Info("Driver profile updated",
		zap.String("driver_id", profile.DriverID),
	)

	return &ProfileResult{DriverID: profile.DriverID}, nil
}

// publishProfile 广播归一化后的档案，失败只记日志
func (h *ProfileHandler) publishProfile(profile *models.DriverProfile) {
	if h.publisher == nil {
		return
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		h.logger.Error("Failed to marshal profile broadcast",
			zap.String("driver_id", profile.DriverID),
			zap.Error(err),
		)
		return
	}

	if err := h.publisher.Publish(h.config.Topics.ProfileUpdated, 1, false, payload); err != nil {
		h.logger.Warn("Failed to publish profile broadcast",
			zap.String("driver_id", profile.DriverID),
			zap.Error(err),
		)
	}
}

// mapProfile 将松散的上报载荷映射到规范档案结构
func mapProfile(raw map[string]interface{}) *models.DriverProfile {
	driverID := getString(raw, "driver_id")
	if driverID == "" {
		// 旧车机固件用 id 作为关联键
		driverID = getString(raw, "id")
	}

	return &models.DriverProfile{
		DriverID:         driverID,
		Name:             getString(raw, "name"),
		Gender:           getString(raw, "gender"),
		DateOfBirth:      getString(raw, "date_of_birth"),
		BloodType:        getString(raw, "blood_type"),
		EmergencyContact: getString(raw, "emergency_contact"),
		Weight:           getFloat(raw, "weight"),
		Height:           getFloat(raw, "height"),
		ChronicDiseases:  getStringList(raw, "chronic_diseases"),
		Allergies:        getStringList(raw, "allergies"),
	}
}

// validateProfile 返回缺失的必填字段（排序保证结果稳定）
func validateProfile(profile *models.DriverProfile) []string {
	var missing []string
	for _, field := range profileRequiredFields {
		switch field {
		case "driver_id":
			if profile.DriverID == "" {
				missing = append(missing, field)
			}
		case "name":
			if profile.Name == "" {
				missing = append(missing, field)
			}
		case "gender":
			if profile.Gender == "" {
				missing = append(missing, field)
			}
		case "date_of_birth":
			if profile.DateOfBirth == "" {
				missing = append(missing, field)
			}
		case "weight":
			if profile.Weight <= 0 {
				missing = append(missing, field)
			}
		case "height":
			if profile.Height <= 0 {
				missing = append(missing, field)
			}
		case "emergency_contact":
			if profile.EmergencyContact == "" {
				missing = append(missing, field)
			}
		case "blood_type":
			if profile.BloodType == "" {
				missing = append(missing, field)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func getString(raw map[string]interface{}, key string) string {
	if v, ok := raw[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getFloat 数值字段统一转 float64，兼容字符串编码的数字（CSV导入路径）
func getFloat(raw map[string]interface{}, key string) float64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}

	switch val := v.(type) {
	case float64:
		return val
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	}
	return 0
}

// getStringList 列表字段缺失时按空列表处理
func getStringList(raw map[string]interface{}, key string) []string {
	v, ok := raw[key]
	if !ok {
		return []string{}
	}

	items, ok := v.([]interface{})
	if !ok {
		return []string{}
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		list = append(list, fmt.Sprintf("%v", item))
	}
	return list
}
