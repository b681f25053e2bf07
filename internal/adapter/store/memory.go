package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"

	"github.com/google/uuid"
)

// MemoryStore keeps the full device and session state in process memory.
// It backs tests and single-node deployments where persistence across
// restarts is not required.
type MemoryStore struct {
	mu       sync.RWMutex
	devices  map[string]*domain.Device
	sessions map[string][]domain.SessionRecord
}

var _ port.DeviceStore = (*MemoryStore)(nil)
var _ port.UsageStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  make(map[string]*domain.Device),
		sessions: make(map[string][]domain.SessionRecord),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	cp := cloneDevice(d)
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter port.DeviceFilter) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Device, 0, len(s.devices))
	for _, d := range s.devices {
		if filter.Type != nil && d.Type != *filter.Type {
			continue
		}
		if filter.ScheduleEnabled != nil && d.AutoSchedule.Enabled != *filter.ScheduleEnabled {
			continue
		}
		out = append(out, cloneDevice(d))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, device *domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneDevice(device)
	s.devices[device.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return domain.ErrDeviceNotFound
	}
	delete(s.devices, id)
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) AppendUsageEvent(_ context.Context, id string, event domain.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.UsageHistory = append(d.UsageHistory, event)
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status domain.DeviceStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.Status = status
	d.UpdatedAt = at
	return nil
}

func (s *MemoryStore) UpdateSettings(_ context.Context, id string, settings domain.DeviceSettings, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.Settings = settings
	d.UpdatedAt = at
	return nil
}

func (s *MemoryStore) UpdatePredictive(_ context.Context, id string, predictive domain.PredictiveData, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.Predictive = clonePredictive(predictive)
	d.UpdatedAt = at
	return nil
}

func (s *MemoryStore) AppendSessionRecord(_ context.Context, deviceID string, record domain.SessionRecord) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.DeviceID = deviceID
	record.DeriveDurations()
	s.sessions[deviceID] = append(s.sessions[deviceID], record)
	cp := record
	return &cp, nil
}

func (s *MemoryStore) QueryByDeviceAndRange(_ context.Context, deviceID string, from, to time.Time) ([]domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionRecord, 0)
	for _, r := range s.sessions[deviceID] {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) RecentSessionRecords(_ context.Context, deviceID string, limit int) ([]domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.sessions[deviceID]
	out := make([]domain.SessionRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneDevice(d *domain.Device) domain.Device {
	cp := *d
	cp.Predictive = clonePredictive(d.Predictive)
	if d.UsageHistory != nil {
		cp.UsageHistory = make([]domain.UsageEvent, len(d.UsageHistory))
		copy(cp.UsageHistory, d.UsageHistory)
	}
	return cp
}

func clonePredictive(p domain.PredictiveData) domain.PredictiveData {
	cp := p
	if p.Patterns != nil {
		cp.Patterns = make([]domain.Pattern, len(p.Patterns))
		copy(cp.Patterns, p.Patterns)
	}
	return cp
}
