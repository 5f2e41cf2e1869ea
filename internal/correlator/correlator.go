package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/repository"
)

// ProfileStore 档案存储接口（用于在单元测试中替换 Postgres 仓库）
type ProfileStore interface {
	GetProfile(ctx context.Context, driverID string) (*models.DriverProfile, error)
	PutProfile(ctx context.Context, profile *models.DriverProfile) error
}

// AlertStore 告警记录存储接口
type AlertStore interface {
	InsertAlert(ctx context.Context, record *models.AlertRecord) error
}

// Publisher 出站消息发布接口
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertCache 合并告警实时缓存接口
type AlertCache interface {
	SetCombinedAlert(ctx context.Context, combined *models.CombinedAlert) error
}

// AlertResult 单条告警的处理结果
type AlertResult struct {
	AlertID     string `json:"alert_id"`
	DriverFound bool   `json:"driver_found"`
}

// Correlator 告警关联管线
// 每条入站告警：解析档案 → 合并 → 落库 → 下游发布 → 车辆侧确认
// 落库严格先于发布和确认：记录先持久化再对外宣告
type Correlator struct {
	config    *config.Config
	profiles  ProfileStore
	alerts    AlertStore
	cache     AlertCache
	publisher Publisher
	logger    *zap.Logger

	// 测试时替换时钟
	now func() time.Time
}

// NewCorrelator 创建告警关联管线
// cache 与 publisher 允许为 nil（批量导入工具不连 MQTT）
func NewCorrelator(
	cfg *config.Config,
	profiles ProfileStore,
	alerts AlertStore,
	cache AlertCache,
	publisher Publisher,
	logger *zap.Logger,
) *Correlator {
	return &Correlator{
		config:    cfg,
		profiles:  profiles,
		alerts:    alerts,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle 处理单条疲劳告警事件
// 终止性失败返回 *HandlerError；发布/确认失败只记日志不影响结果
func (c *Correlator) Handle(ctx context.Context, event *models.AlertEvent) (*AlertResult, error) {
	// 1. 关联键必须存在
	if event.DriverID == "" {
		return nil, missingKeyError("driver_id")
	}

	now := c.now().UTC()

	// 2. 补默认值：alert_id、timestamp、message
	// 生产端重投带原 alert_id 的消息时沿用原值，由存储层的唯一约束挡住重复写入
	alertID := event.AlertID
	if alertID == "" {
		alertID = uuid.New().String()
	}
	timestamp := event.Timestamp
	if timestamp == "" {
		timestamp = now.Format(time.RFC3339)
	}
	message := event.Message
	if message == "" {
		message = models.DefaultAlertMessage
	}

	// 3. 解析驾驶员档案；查无档案时用占位档案降级继续
	driverFound := true
	profile, err := c.profiles.GetProfile(ctx, event.DriverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn("Driver not found, using placeholder profile",
				zap.String("driver_id", event.DriverID),
				zap.String("alert_id", alertID),
			)
			profile = models.PlaceholderProfile(event.DriverID)
			driverFound = false
		} else {
			return nil, storageError(fmt.Errorf("failed to resolve driver profile: %w", err))
		}
	}

	// 4. 构建并持久化告警记录（落库失败对本条事件是终止性的）
	record := &models.AlertRecord{
		AlertID:         alertID,
		DriverID:        event.DriverID,
		Timestamp:       timestamp,
		Location:        event.Location,
		Message:         message,
		DrowsinessLevel: event.DrowsinessLevel,
		Confidence:      event.Confidence,
		Speed:           event.Speed,
		Processed:       true,
		ExpiresAt:       now.Add(time.Duration(c.config.Retention.AlertTTLDays) * 24 * time.Hour),
		CreatedAt:       now,
	}

	if err := c.alerts.InsertAlert(ctx, record); err != nil {
		return nil, storageError(err)
	}

	combined := &models.CombinedAlert{
		Alert:      record,
		DriverInfo: profile,
	}

	// 5. 刷新实时缓存并发布到急救端（尽力而为，记录已落库）
	if c.cache != nil {
		if err := c.cache.SetCombinedAlert(ctx, combined); err != nil {
			c.logger.Warn("Failed to update combined alert cache",
				zap.String("alert_id", alertID),
				zap.Error(err),
			)
		}
	}

	c.publishJSON(c.config.Topics.AmbulanceAlerts, combined, alertID)

	// 6. 车辆侧确认（同样尽力而为）
	ack := &models.AlertAck{
		AlertID:   alertID,
		Status:    "processed",
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Message:   "Alert processed successfully",
	}
	c.publishJSON(c.config.Topics.AlertAck, ack, alertID)

	c.logger.Info("Drowsiness alert processed",
		zap.String("alert_id", alertID),
		zap.String("driver_id", event.DriverID),
		zap.Bool("driver_found", driverFound),
	)

	return &AlertResult{
		AlertID:     alertID,
		DriverFound: driverFound,
	}, nil
}

// publishJSON 序列化并发布出站消息，失败只记日志
func (c *Correlator) publishJSON(topic string, v interface{}, alertID string) {
	if c.publisher == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message",
			zap.String("topic", topic),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}

	if err := c.publisher.Publish(topic, 1, false, payload); err != nil {
		c.logger.Warn("Failed to publish outbound message",
			zap.String("topic", topic),
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
	}
}
