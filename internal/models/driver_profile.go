package models

import (
	"time"
)

// DriverProfile 驾驶员医疗/急救档案（对应 driver_profiles 表）
// 档案由车机端全量上报，写入时整体替换，不做字段级合并
type DriverProfile struct {
	DriverID         string    `json:"driver_id" db:"driver_id"`
	Name             string    `json:"name" db:"name"`
	Gender           string    `json:"gender" db:"gender"`
	DateOfBirth      string    `json:"date_of_birth" db:"date_of_birth"`
	BloodType        string    `json:"blood_type" db:"blood_type"`
	EmergencyContact string    `json:"emergency_contact" db:"emergency_contact"`
	Weight           float64   `json:"weight" db:"weight"`
	Height           float64   `json:"height" db:"height"`
	ChronicDiseases  []string  `json:"chronic_diseases" db:"chronic_diseases"`
	Allergies        []string  `json:"allergies" db:"allergies"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
	ExpiresAt        time.Time `json:"expires_at" db:"expires_at"`
}

// PlaceholderName 查无档案时占位记录的姓名
const PlaceholderName = "Unknown Driver"

// PlaceholderProfile 构建占位档案
// 找不到驾驶员档案时告警流程继续，急救端至少拿到 driver_id
func PlaceholderProfile(driverID string) *DriverProfile {
	return &DriverProfile{
		DriverID:         driverID,
		Name:             PlaceholderName,
		Gender:           "Unknown",
		DateOfBirth:      "Unknown",
		BloodType:        "Unknown",
		EmergencyContact: "Unknown",
		ChronicDiseases:  []string{},
		Allergies:        []string{},
	}
}
