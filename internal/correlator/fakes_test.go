package correlator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/models"
	"github.com/ghadaalii/aws-driver-drowsiness-alert/internal/repository"
)

// fakeProfileStore 仅用于单元测试（内存档案存储 + 过期窗口）
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.DriverProfile
	getErr   error
	putErr   error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]*models.DriverProfile),
	}
}

func (f *fakeProfileStore) GetProfile(ctx context.Context, driverID string) (*models.DriverProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	profile, ok := f.profiles[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// 过期等同不存在
	if !profile.ExpiresAt.IsZero() && time.Now().After(profile.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeProfileStore) PutProfile(ctx context.Context, profile *models.DriverProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return f.putErr
	}

	copied := *profile
	f.profiles[profile.DriverID] = &copied
	return nil
}

// fakeAlertStore 仅用于单元测试（alert_id 上 first-write-wins）
type fakeAlertStore struct {
	mu        sync.Mutex
	records   map[string]*models.AlertRecord
	insertErr error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{
		records: make(map[string]*models.AlertRecord),
	}
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, record *models.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	if _, exists := f.records[record.AlertID]; exists {
		return repository.ErrDuplicateAlert
	}
	copied := *record
	f.records[record.AlertID] = &copied
	return nil
}

func (f *fakeAlertStore) get(alertID string) *models.AlertRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[alertID]
}

// fakePublisher 记录每次发布，可注入失败
type fakePublisher struct {
	mu         sync.Mutex
	published  []publishedMessage
	publishErr error
}

type publishedMessage struct {
	topic   string
	qos     byte
	payload []byte
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}

	f.published = append(f.published, publishedMessage{
		topic:   topic,
		qos:     qos,
		payload: append([]byte(nil), payload...),
	})
	return nil
}

func (f *fakePublisher) byTopic(topic string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []publishedMessage
	for _, msg := range f.published {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// fakeCache 记录缓存写入，可注入失败
type fakeCache struct {
	mu       sync.Mutex
	combined []*models.CombinedAlert
	profiles []*models.DriverProfile
	setErr   error
}

func (f *fakeCache) SetCombinedAlert(ctx context.Context, combined *models.CombinedAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}
	f.combined = append(f.combined, combined)
	return nil
}

func (f *fakeCache) SetProfile(ctx context.Context, profile *models.DriverProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}
	f.profiles = append(f.profiles, profile)
	return nil
}

var errStoreDown = errors.New("store unavailable")
