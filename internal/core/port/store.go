package port

import (
	"context"
	"time"

	"homepulse/internal/core/domain"
)

// DeviceFilter narrows a device listing. Nil fields match everything.
type DeviceFilter struct {
	Type            *domain.DeviceType
	ScheduleEnabled *bool
}

// DeviceStore is the single source of truth for device documents. All
// operations are atomic per device.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*domain.Device, error)
	List(ctx context.Context, filter DeviceFilter) ([]domain.Device, error)
	Upsert(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, id string) error
	// AppendUsageEvent appends to the device's usage history without
	// touching the rest of the document.
	AppendUsageEvent(ctx context.Context, id string, event domain.UsageEvent) error
	// UpdateStatus, UpdateSettings and UpdatePredictive each mutate one
	// concern of the document atomically, so the schedule evaluator, the
	// simulator and the miner can write concurrently without clobbering
	// each other.
	UpdateStatus(ctx context.Context, id string, status domain.DeviceStatus, at time.Time) error
	UpdateSettings(ctx context.Context, id string, settings domain.DeviceSettings, at time.Time) error
	UpdatePredictive(ctx context.Context, id string, predictive domain.PredictiveData, at time.Time) error
}

// UsageStore holds externally originated session records, append-only.
type UsageStore interface {
	AppendSessionRecord(ctx context.Context, deviceID string, record domain.SessionRecord) (*domain.SessionRecord, error)
	QueryByDeviceAndRange(ctx context.Context, deviceID string, from, to time.Time) ([]domain.SessionRecord, error)
	// RecentSessionRecords returns up to limit records, newest first.
	RecentSessionRecords(ctx context.Context, deviceID string, limit int) ([]domain.SessionRecord, error)
}
