package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/correlator"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
	mqttclient "github.com/ghadaalii/aws-driver-drowsiness-alert/internal/mqtt"
)

// MQTTConsumer MQTT消息消费者
// 订阅车辆上报主题，解码后交给对应处理器；处理器错误只记日志不中断订阅
type MQTTConsumer struct {
	config         *config.Config
	mqttClient     *mqttclient.Client
	alertHandler   *correlator.Correlator
	profileHandler *correlator.ProfileHandler
	logger         *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttclient.Client,
	alertHandler *correlator.Correlator,
	profileHandler *correlator.ProfileHandler,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:         cfg,
		mqttClient:     mqttClient,
		alertHandler:   alertHandler,
		profileHandler: profileHandler,
		logger:         logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	// 订阅疲劳告警主题
	if err := c.mqttClient.Subscribe(c.config.Topics.DrowsinessAlerts, 1, c.handleAlertMessage); err != nil {
		return fmt.Errorf("failed to subscribe to alert topic: %w", err)
	}

	// 订阅档案更新主题
	if err := c.mqttClient.Subscribe(c.config.Topics.DriverProfile, 1, c.handleProfileMessage); err != nil {
		return fmt.Errorf("failed to subscribe to profile topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("alert_topic", c.config.Topics.DrowsinessAlerts),
		zap.String("profile_topic", c.config.Topics.DriverProfile),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(
		c.config.Topics.DrowsinessAlerts,
		c.config.Topics.DriverProfile,
	); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleAlertMessage 处理疲劳告警消息
func (c *MQTTConsumer) handleAlertMessage(topic string, payload []byte) error {
	c.logger.Debug("Received drowsiness alert",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var event models.AlertEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Error("Failed to unmarshal alert event",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal alert event: %w", err)
	}

	result, err := c.alertHandler.Handle(context.Background(), &event)
	if err != nil {
		c.logger.Error("Alert handling failed",
			zap.String("driver_id", event.DriverID),
			zap.String("error_code", string(correlator.ErrorCode(err))),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Alert handled",
		zap.String("alert_id", result.AlertID),
		zap.Bool("driver_found", result.DriverFound),
	)
	return nil
}

// handleProfileMessage 处理档案更新消息
func (c *MQTTConsumer) handleProfileMessage(topic string, payload []byte) error {
	c.logger.Debug("Received driver profile update",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	result, err := c.profileHandler.Handle(context.Background(), payload)
	if err != nil {
		c.logger.Error("Profile update failed",
			zap.String("error_code", string(correlator.ErrorCode(err))),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Profile updated",
		zap.String("driver_id", result.DriverID),
	)
	return nil
}
