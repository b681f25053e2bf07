package store

import (
	"context"
	"testing"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(id string, deviceType domain.DeviceType, scheduleEnabled bool) *domain.Device {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Device{
		ID:     id,
		Name:   "test " + id,
		Type:   deviceType,
		Status: domain.StatusOff,
		AutoSchedule: domain.AutoSchedule{
			Enabled: scheduleEnabled,
			OnTime:  "09:00",
			OffTime: "18:00",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)

	require.NoError(t, s.Upsert(ctx, newTestDevice("d1", domain.DeviceTypeThermostat, true)))
	require.NoError(t, s.Upsert(ctx, newTestDevice("d2", domain.DeviceTypeLight, false)))

	d, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceTypeThermostat, d.Type)

	all, err := s.List(ctx, port.DeviceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	lightType := domain.DeviceTypeLight
	lights, err := s.List(ctx, port.DeviceFilter{Type: &lightType})
	require.NoError(t, err)
	require.Len(t, lights, 1)
	assert.Equal(t, "d2", lights[0].ID)

	enabled := true
	scheduled, err := s.List(ctx, port.DeviceFilter{ScheduleEnabled: &enabled})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "d1", scheduled[0].ID)

	require.NoError(t, s.Delete(ctx, "d2"))
	assert.ErrorIs(t, s.Delete(ctx, "d2"), domain.ErrDeviceNotFound)
}

func TestMemoryStorePartialUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, newTestDevice("d1", domain.DeviceTypeThermostat, true)))

	at := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateStatus(ctx, "d1", domain.StatusOn, at))
	require.NoError(t, s.UpdateSettings(ctx, "d1", domain.DeviceSettings{CurrentTemp: 21.5, Mode: "heat"}, at))
	require.NoError(t, s.UpdatePredictive(ctx, "d1", domain.PredictiveData{
		Patterns:              []domain.Pattern{{DayOfWeek: 1, TimeSlot: domain.SlotMorning, Confidence: 0.5}},
		EnergyEfficiencyScore: 80,
	}, at))
	require.NoError(t, s.AppendUsageEvent(ctx, "d1", domain.UsageEvent{
		Timestamp: at, Action: domain.ActionTempAdjustment, Value: 21.5, EnergyUsage: 120,
	}))

	d, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	// every concern survived every other concern's write
	assert.Equal(t, domain.StatusOn, d.Status)
	assert.Equal(t, 21.5, d.Settings.CurrentTemp)
	assert.Equal(t, float64(80), d.Predictive.EnergyEfficiencyScore)
	require.Len(t, d.UsageHistory, 1)
	assert.Equal(t, domain.ActionTempAdjustment, d.UsageHistory[0].Action)
	assert.Equal(t, at, d.UpdatedAt)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", domain.StatusOn, at), domain.ErrDeviceNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, newTestDevice("d1", domain.DeviceTypeLight, false)))

	d, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	d.Name = "mutated"
	d.UsageHistory = append(d.UsageHistory, domain.UsageEvent{Action: domain.ActionTurnedOn})

	again, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "test d1", again.Name)
	assert.Empty(t, again.UsageHistory)
}

func TestMemoryStoreSessionRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		end := start.Add(90 * time.Minute)
		rec, err := s.AppendSessionRecord(ctx, "d1", domain.SessionRecord{
			UnitType:  domain.UnitKWh,
			Status:    domain.SessionStopped,
			StartTime: &start,
			EndTime:   &end,
			Timestamp: start,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "d1", rec.DeviceID)
		assert.Equal(t, 90.0, rec.DurationMinutes)
		assert.Equal(t, 1.5, rec.DurationHours)
	}

	ranged, err := s.QueryByDeviceAndRange(ctx, "d1", base.Add(1*time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	recent, err := s.RecentSessionRecords(ctx, "d1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp))

	none, err := s.RecentSessionRecords(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
