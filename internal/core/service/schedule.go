package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScheduleEvaluator decides and applies device power state from the
// user-defined daily window. It is the sole writer of schedule-derived
// status: any other automation view is a read-only projection.
type ScheduleEvaluator struct {
	Store          port.DeviceStore
	Usage          port.UsageStore
	MaxConcurrency int
	Logger         *zap.Logger

	// locks serializes the read-modify-write per device id, so concurrent
	// overrides and evaluator passes cannot both observe the same stale
	// status and double-apply a transition.
	locks sync.Map
}

func NewScheduleEvaluator(store port.DeviceStore, usage port.UsageStore, maxConcurrency int, logger *zap.Logger) *ScheduleEvaluator {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &ScheduleEvaluator{
		Store:          store,
		Usage:          usage,
		MaxConcurrency: maxConcurrency,
		Logger:         logger,
	}
}

// ParseClock parses a zero-padded 24-hour "HH:mm" string into a
// minute-of-day integer.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad clock value %q", domain.ErrInvalidSchedule, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// windowContains reports whether nowMin falls inside [onMin, offMin],
// wrapping past midnight when onMin > offMin.
func windowContains(onMin, offMin, nowMin int) bool {
	if onMin <= offMin {
		return nowMin >= onMin && nowMin <= offMin
	}
	return nowMin >= onMin || nowMin <= offMin
}

// DesiredStatus computes the power state a schedule demands at the given
// time. It is pure: the caller injects the clock.
func DesiredStatus(now time.Time, schedule domain.AutoSchedule) (domain.DeviceStatus, error) {
	if !schedule.Enabled {
		return "", fmt.Errorf("%w: schedule not enabled", domain.ErrInvalidSchedule)
	}
	if schedule.OnTime == "" || schedule.OffTime == "" {
		return "", fmt.Errorf("%w: onTime and offTime are both required", domain.ErrInvalidSchedule)
	}
	onMin, err := ParseClock(schedule.OnTime)
	if err != nil {
		return "", err
	}
	offMin, err := ParseClock(schedule.OffTime)
	if err != nil {
		return "", err
	}
	nowMin := now.Hour()*60 + now.Minute()
	if windowContains(onMin, offMin, nowMin) {
		return domain.StatusOn, nil
	}
	return domain.StatusOff, nil
}

// EvaluateDevice applies the schedule decision for a single device. The
// write happens only on change; an unchanged status produces no store
// traffic, so back-to-back passes converge without fighting each other.
func (e *ScheduleEvaluator) EvaluateDevice(ctx context.Context, now time.Time, device *domain.Device) (*domain.ScheduleTransition, error) {
	desired, err := DesiredStatus(now, device.AutoSchedule)
	if err != nil {
		return nil, err
	}
	unlock := e.lockDevice(device.ID)
	defer unlock()
	current, err := e.Store.Get(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	return e.applyTransition(ctx, now, current, desired)
}

// ApplyStatus is the explicit override path (e.g. an MQTT switch command).
// It bypasses the schedule decision but shares the same apply-on-change
// write, so overrides and evaluator passes never disagree on bookkeeping.
func (e *ScheduleEvaluator) ApplyStatus(ctx context.Context, now time.Time, deviceID string, on bool) (*domain.ScheduleTransition, error) {
	unlock := e.lockDevice(deviceID)
	defer unlock()
	device, err := e.Store.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	desired := domain.StatusOff
	if on {
		desired = domain.StatusOn
	}
	return e.applyTransition(ctx, now, device, desired)
}

// lockDevice takes the per-device mutex and returns its release func.
func (e *ScheduleEvaluator) lockDevice(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *ScheduleEvaluator) applyTransition(ctx context.Context, now time.Time, device *domain.Device, desired domain.DeviceStatus) (*domain.ScheduleTransition, error) {
	if device.Status == desired {
		return nil, nil
	}
	from := device.Status
	if err := e.Store.UpdateStatus(ctx, device.ID, desired, now); err != nil {
		return nil, err
	}
	device.Status = desired
	device.UpdatedAt = now

	action := domain.ActionTurnedOff
	sessionStatus := domain.SessionOff
	if desired == domain.StatusOn {
		action = domain.ActionTurnedOn
		sessionStatus = domain.SessionOn
	}
	if err := e.Store.AppendUsageEvent(ctx, device.ID, domain.UsageEvent{
		Timestamp: now,
		Action:    action,
	}); err != nil {
		e.Logger.Warn("schedule: usage event append failed", zap.String("device", device.ID), zap.Error(err))
	}
	if _, err := e.Usage.AppendSessionRecord(ctx, device.ID, domain.SessionRecord{
		DeviceID:  device.ID,
		Status:    sessionStatus,
		Timestamp: now,
	}); err != nil {
		e.Logger.Warn("schedule: session record append failed", zap.String("device", device.ID), zap.Error(err))
	}

	return &domain.ScheduleTransition{
		DeviceID: device.ID,
		From:     from,
		To:       desired,
		At:       now,
	}, nil
}

// EvaluateAll runs one evaluator pass over every schedule-enabled device.
// Per-device failures are aggregated and never abort the pass; a device
// skipped this tick is retried on the next one.
func (e *ScheduleEvaluator) EvaluateAll(ctx context.Context, now time.Time) (*domain.EvaluationSummary, error) {
	enabled := true
	devices, err := e.Store.List(ctx, port.DeviceFilter{ScheduleEnabled: &enabled})
	if err != nil {
		return nil, err
	}

	var (
		mu          sync.Mutex
		transitions []domain.ScheduleTransition
		skipped     int
		errs        error
	)

	var g errgroup.Group
	g.SetLimit(e.MaxConcurrency)
	for i := range devices {
		device := devices[i]
		g.Go(func() error {
			transition, err := e.EvaluateDevice(ctx, now, &device)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				errs = multierr.Append(errs, fmt.Errorf("device %s: %w", device.ID, err))
				e.Logger.Warn("schedule: device skipped", zap.String("device", device.ID), zap.Error(err))
				return nil
			}
			if transition != nil {
				e.Logger.Info("schedule: status applied",
					zap.String("device", device.ID),
					zap.String("from", string(transition.From)),
					zap.String("to", string(transition.To)))
				transitions = append(transitions, *transition)
			}
			return nil
		})
	}
	_ = g.Wait()

	return &domain.EvaluationSummary{
		At:          now,
		Evaluated:   len(devices),
		Transitions: transitions,
		Skipped:     skipped,
	}, errs
}
