package models

import (
	"time"
)

// UsageStats 当前计费周期的出站消息用量统计
// 跨进程重启持久化，复位是整体替换而不是增量回退
type UsageStats struct {
	MessageCount int64     `json:"message_count"`
	PeriodStart  time.Time `json:"period_start"`
	LastReset    time.Time `json:"last_reset"`
}

// NewUsageStats 构建归零的用量统计
func NewUsageStats(now time.Time) *UsageStats {
	return &UsageStats{
		MessageCount: 0,
		PeriodStart:  now,
		LastReset:    now,
	}
}
