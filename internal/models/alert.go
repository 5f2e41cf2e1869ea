package models

import (
	"time"
)

// DefaultAlertMessage 告警事件缺省描述
const DefaultAlertMessage = "Driver drowsiness detected"

// Location GPS 位置
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description,omitempty"`
}

// AlertEvent 入站疲劳告警事件（车辆上报原始消息，不落库）
// driver_id 必填；alert_id 缺失时由后端生成；timestamp 缺失时取接收时间
type AlertEvent struct {
	AlertID         string    `json:"alert_id,omitempty"`
	DriverID        string    `json:"driver_id"`
	Timestamp       string    `json:"timestamp,omitempty"`
	Location        *Location `json:"location,omitempty"`
	Message         string    `json:"message,omitempty"`
	DrowsinessLevel float64   `json:"drowsiness_level,omitempty"` // 0-1，1为最严重
	Confidence      float64   `json:"confidence,omitempty"`       // 模型置信度
	Speed           float64   `json:"speed,omitempty"`            // km/h
}

// AlertRecord 落库的告警记录（对应 drowsiness_alerts 表）
// alert_id 唯一，写入后不可变更，到期由保留窗口淘汰
type AlertRecord struct {
	AlertID         string    `json:"alert_id" db:"alert_id"`
	DriverID        string    `json:"driver_id" db:"driver_id"`
	Timestamp       string    `json:"timestamp" db:"timestamp"`
	Location        *Location `json:"location,omitempty" db:"location"`
	Message         string    `json:"message" db:"message"`
	DrowsinessLevel float64   `json:"drowsiness_level" db:"drowsiness_level"`
	Confidence      float64   `json:"confidence" db:"confidence"`
	Speed           float64   `json:"speed" db:"speed"`
	Processed       bool      `json:"processed" db:"processed"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// CombinedAlert 出站合并告警（告警记录 + 驾驶员档案，发往急救端）
type CombinedAlert struct {
	Alert      *AlertRecord   `json:"alert"`
	DriverInfo *DriverProfile `json:"driver_info"`
}

// AlertAck 发回车辆侧的处理确认
type AlertAck struct {
	AlertID   string `json:"alert_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}
