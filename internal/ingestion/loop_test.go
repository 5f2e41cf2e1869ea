package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/config"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/correlator"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
)

// fakeAlertHandler 记录收到的事件，可按 driver_id 注入失败
type fakeAlertHandler struct {
	mu     sync.Mutex
	events []*models.AlertEvent
	reject map[string]bool
}

func (f *fakeAlertHandler) Handle(ctx context.Context, event *models.AlertEvent) (*correlator.AlertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reject[event.DriverID] {
		return nil, assert.AnError
	}
	f.events = append(f.events, event)
	return &correlator.AlertResult{AlertID: "generated", DriverFound: true}, nil
}

// fakeBulkProfileHandler 记录收到的载荷
type fakeBulkProfileHandler struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
}

func (f *fakeBulkProfileHandler) Handle(ctx context.Context, payload []byte) (*correlator.ProfileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return nil, assert.AnError
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return &correlator.ProfileResult{DriverID: "DRIVER123456"}, nil
}

// fakeGovernor 可切换放行状态并记录计数
type fakeGovernor struct {
	mu       sync.Mutex
	allowed  bool
	recorded int64
}

func (f *fakeGovernor) Check(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowed
}

func (f *fakeGovernor) Record(ctx context.Context, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded += n
}

func setupLoop(t *testing.T) (*Loop, *fakeAlertHandler, *fakeBulkProfileHandler, *fakeGovernor, string) {
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Ingestion.DataDir = dir
	cfg.Ingestion.DriversFile = "drivers.csv"
	cfg.Ingestion.AlertsFile = "drowsiness_alerts.csv"
	cfg.Ingestion.PollInterval = 60

	alerts := &fakeAlertHandler{reject: map[string]bool{}}
	profiles := &fakeBulkProfileHandler{}
	quota := &fakeGovernor{allowed: true}

	loop := NewLoop(cfg, alerts, profiles, quota, zap.NewNop())
	return loop, alerts, profiles, quota, dir
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const driversCSV = `driver_id,name,gender,date_of_birth,weight,height,emergency_contact,blood_type,chronic_diseases,allergies
DRIVER001,John Doe,male,1990-01-01,75.5,180,+1234567890,O+,Hypertension;Asthma,Penicillin
DRIVER002,Jane Doe,female,2000-01-30,52,157,+0987654321,AB+,,
`

const alertsCSV = `driver_id,timestamp,drowsiness_level,confidence,latitude,longitude,speed
DRIVER001,2025-05-05T08:45:23Z,0.85,0.92,37.7749,-122.4194,65.5
DRIVER003,2025-05-05T09:00:00Z,0.7,0.88,37.7750,-122.4195,50
`

func TestRunOnce_ProcessesDriverCSV(t *testing.T) {
	loop, _, profiles, quota, dir := setupLoop(t)
	path := writeTestFile(t, dir, "drivers.csv", driversCSV)

	accepted := loop.RunOnce(context.Background())

	assert.Equal(t, int64(2), accepted)
	assert.Equal(t, int64(2), quota.recorded)
	require.Len(t, profiles.payloads, 2)

	// CSV 行归一化为JSON载荷，列表字段按分号拆分
	var row map[string]interface{}
	require.NoError(t, json.Unmarshal(profiles.payloads[0], &row))
	assert.Equal(t, "DRIVER001", row["driver_id"])
	assert.Equal(t, []interface{}{"Hypertension", "Asthma"}, row["chronic_diseases"])

	// 处理完的文件改名，不再重复消费
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".done")
	assert.NoError(t, err)
}

func TestRunOnce_ProcessesAlertCSV(t *testing.T) {
	loop, alerts, _, _, dir := setupLoop(t)
	writeTestFile(t, dir, "drowsiness_alerts.csv", alertsCSV)

	accepted := loop.RunOnce(context.Background())

	assert.Equal(t, int64(2), accepted)
	require.Len(t, alerts.events, 2)

	event := alerts.events[0]
	assert.Equal(t, "DRIVER001", event.DriverID)
	assert.Equal(t, "2025-05-05T08:45:23Z", event.Timestamp)
	assert.Equal(t, 0.85, event.DrowsinessLevel)
	require.NotNil(t, event.Location)
	assert.Equal(t, 37.7749, event.Location.Latitude)
	assert.Equal(t, -122.4194, event.Location.Longitude)
	assert.Equal(t, 65.5, event.Speed)
}

func TestRunOnce_ProcessesJSONAlerts(t *testing.T) {
	loop, alerts, _, _, dir := setupLoop(t)
	loop.config.Ingestion.AlertsFile = "alerts.json"

	writeTestFile(t, dir, "alerts.json", `[
		{"driver_id": "DRIVER001", "drowsiness_level": 0.9,
		 "location": {"latitude": 37.7749, "longitude": -122.4194, "description": "I-280 S"}}
	]`)

	accepted := loop.RunOnce(context.Background())

	assert.Equal(t, int64(1), accepted)
	require.Len(t, alerts.events, 1)
	require.NotNil(t, alerts.events[0].Location)
	assert.Equal(t, "I-280 S", alerts.events[0].Location.Description)
}

func TestRunOnce_QuotaRefusedDefersWork(t *testing.T) {
	loop, alerts, _, quota, dir := setupLoop(t)
	quota.allowed = false
	path := writeTestFile(t, dir, "drowsiness_alerts.csv", alertsCSV)

	accepted := loop.RunOnce(context.Background())

	// 被拒绝时不产生出站流量，文件原样保留等待下一轮
	assert.Equal(t, int64(0), accepted)
	assert.Empty(t, alerts.events)
	assert.Equal(t, int64(0), quota.recorded)
	_, err := os.Stat(path)
	assert.NoError(t, err)

	// 配额恢复后同一文件被处理
	quota.allowed = true
	accepted = loop.RunOnce(context.Background())
	assert.Equal(t, int64(2), accepted)
}

func TestRunOnce_CountsOnlyAcceptedEvents(t *testing.T) {
	loop, alerts, _, quota, dir := setupLoop(t)
	alerts.reject["DRIVER003"] = true
	writeTestFile(t, dir, "drowsiness_alerts.csv", alertsCSV)

	accepted := loop.RunOnce(context.Background())

	// 失败行不计入配额
	assert.Equal(t, int64(1), accepted)
	assert.Equal(t, int64(1), quota.recorded)
}

func TestRunOnce_NoFilesIsNoop(t *testing.T) {
	loop, _, _, quota, _ := setupLoop(t)

	accepted := loop.RunOnce(context.Background())

	assert.Equal(t, int64(0), accepted)
	assert.Equal(t, int64(0), quota.recorded)
}
