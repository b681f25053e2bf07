package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homepulse/internal/adapter/store"
	"homepulse/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func clock(hour, min int) time.Time {
	return time.Date(2025, 3, 3, hour, min, 0, 0, time.UTC)
}

func daySchedule(on, off string) domain.AutoSchedule {
	return domain.AutoSchedule{Enabled: true, OnTime: on, OffTime: off}
}

func TestDesiredStatusDaytimeWindow(t *testing.T) {
	schedule := daySchedule("09:00", "18:00")

	cases := []struct {
		hour, min int
		want      domain.DeviceStatus
	}{
		{8, 59, domain.StatusOff},
		{9, 0, domain.StatusOn},
		{12, 30, domain.StatusOn},
		{17, 59, domain.StatusOn},
		{18, 1, domain.StatusOff},
	}
	for _, tc := range cases {
		got, err := DesiredStatus(clock(tc.hour, tc.min), schedule)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "at %02d:%02d", tc.hour, tc.min)
	}
}

func TestDesiredStatusMidnightWrap(t *testing.T) {
	schedule := daySchedule("22:00", "06:00")

	cases := []struct {
		hour, min int
		want      domain.DeviceStatus
	}{
		{23, 0, domain.StatusOn},
		{0, 30, domain.StatusOn},
		{5, 0, domain.StatusOn},
		{6, 0, domain.StatusOn},
		{6, 1, domain.StatusOff},
		{12, 0, domain.StatusOff},
		{21, 59, domain.StatusOff},
		{22, 0, domain.StatusOn},
	}
	for _, tc := range cases {
		got, err := DesiredStatus(clock(tc.hour, tc.min), schedule)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "at %02d:%02d", tc.hour, tc.min)
	}
}

func TestDesiredStatusInvalidSchedules(t *testing.T) {
	_, err := DesiredStatus(clock(10, 0), domain.AutoSchedule{Enabled: false})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = DesiredStatus(clock(10, 0), domain.AutoSchedule{Enabled: true, OnTime: "09:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = DesiredStatus(clock(10, 0), daySchedule("25:00", "18:00"))
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = DesiredStatus(clock(10, 0), daySchedule("09:00", "nope"))
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func newTestEvaluator(t *testing.T) (*ScheduleEvaluator, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewScheduleEvaluator(s, s, 4, zap.NewNop()), s
}

func scheduledDevice(id string, status domain.DeviceStatus, on, off string) *domain.Device {
	return &domain.Device{
		ID:           id,
		Name:         "device " + id,
		Type:         domain.DeviceTypeLight,
		Status:       status,
		AutoSchedule: daySchedule(on, off),
	}
}

func TestEvaluateDeviceAppliesOnChange(t *testing.T) {
	ctx := context.Background()
	evaluator, s := newTestEvaluator(t)
	device := scheduledDevice("d1", domain.StatusOff, "09:00", "18:00")
	require.NoError(t, s.Upsert(ctx, device))

	now := clock(10, 0)
	transition, err := evaluator.EvaluateDevice(ctx, now, device)
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, domain.StatusOff, transition.From)
	assert.Equal(t, domain.StatusOn, transition.To)

	stored, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOn, stored.Status)
	require.Len(t, stored.UsageHistory, 1)
	assert.Equal(t, domain.ActionTurnedOn, stored.UsageHistory[0].Action)

	records, err := s.RecentSessionRecords(ctx, "d1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.SessionOn, records[0].Status)

	// same decision again is a no-op
	transition, err = evaluator.EvaluateDevice(ctx, now, device)
	require.NoError(t, err)
	assert.Nil(t, transition)

	stored, err = s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, stored.UsageHistory, 1)
}

func TestEvaluateAll(t *testing.T) {
	ctx := context.Background()
	evaluator, s := newTestEvaluator(t)

	require.NoError(t, s.Upsert(ctx, scheduledDevice("on-me", domain.StatusOff, "09:00", "18:00")))
	require.NoError(t, s.Upsert(ctx, scheduledDevice("already-on", domain.StatusOn, "09:00", "18:00")))
	require.NoError(t, s.Upsert(ctx, scheduledDevice("bad-clock", domain.StatusOff, "junk", "18:00")))
	disabled := scheduledDevice("disabled", domain.StatusOff, "09:00", "18:00")
	disabled.AutoSchedule.Enabled = false
	require.NoError(t, s.Upsert(ctx, disabled))

	summary, err := evaluator.EvaluateAll(ctx, clock(10, 0))
	require.NotNil(t, summary)
	// the bad-clock device surfaces in the aggregated error, not as an abort
	assert.Error(t, err)
	assert.Equal(t, 3, summary.Evaluated)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Transitions, 1)
	assert.Equal(t, "on-me", summary.Transitions[0].DeviceID)

	// disabled device was never touched
	stored, err2 := s.Get(ctx, "disabled")
	require.NoError(t, err2)
	assert.Equal(t, domain.StatusOff, stored.Status)
}

func TestEvaluateAllIdempotent(t *testing.T) {
	ctx := context.Background()
	evaluator, s := newTestEvaluator(t)
	require.NoError(t, s.Upsert(ctx, scheduledDevice("d1", domain.StatusOff, "09:00", "18:00")))

	now := clock(10, 0)
	first, err := evaluator.EvaluateAll(ctx, now)
	require.NoError(t, err)
	assert.Len(t, first.Transitions, 1)

	second, err := evaluator.EvaluateAll(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, second.Transitions)
}

func TestApplyStatusOverride(t *testing.T) {
	ctx := context.Background()
	evaluator, s := newTestEvaluator(t)
	require.NoError(t, s.Upsert(ctx, scheduledDevice("d1", domain.StatusOff, "09:00", "18:00")))

	now := clock(20, 0)
	transition, err := evaluator.ApplyStatus(ctx, now, "d1", true)
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, domain.StatusOn, transition.To)

	// override is idempotent too
	transition, err = evaluator.ApplyStatus(ctx, now, "d1", true)
	require.NoError(t, err)
	assert.Nil(t, transition)

	_, err = evaluator.ApplyStatus(ctx, now, "missing", true)
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestApplyStatusConcurrentOverridesApplyOnce(t *testing.T) {
	ctx := context.Background()
	evaluator, s := newTestEvaluator(t)
	require.NoError(t, s.Upsert(ctx, scheduledDevice("d1", domain.StatusOff, "09:00", "18:00")))

	now := clock(20, 0)
	const callers = 64

	start := make(chan struct{})
	var wg sync.WaitGroup
	var applied atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			transition, err := evaluator.ApplyStatus(ctx, now, "d1", true)
			assert.NoError(t, err)
			if transition != nil {
				applied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// exactly one caller observes the transition, the rest are no-ops
	assert.Equal(t, int32(1), applied.Load())

	stored, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOn, stored.Status)
	assert.Len(t, stored.UsageHistory, 1)

	records, err := s.RecentSessionRecords(ctx, "d1", callers)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
