package service

import (
	"context"
	"math"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"

	"go.uber.org/zap"
)

const (
	// MiningWindow is the trailing usage window every mining run looks at.
	MiningWindow = 30 * 24 * time.Hour
	// maxConfidence caps pattern confidence regardless of sample count.
	maxConfidence = 0.95
	// confidenceSampleTarget is the sample count at which confidence would
	// reach 1.0 before capping.
	confidenceSampleTarget = 100
)

// PatternMiner rebuilds a device's predictive data from its trailing 30-day
// usage history. Each run replaces patterns and efficiency score wholesale;
// nothing is merged.
type PatternMiner struct {
	Store  port.DeviceStore
	Logger *zap.Logger
}

func NewPatternMiner(store port.DeviceStore, logger *zap.Logger) *PatternMiner {
	return &PatternMiner{Store: store, Logger: logger}
}

// Confidence grows linearly with sample count and is capped at 0.95.
func Confidence(sampleCount int) float64 {
	return math.Min(maxConfidence, float64(sampleCount)/confidenceSampleTarget)
}

// EfficiencyScore maps average energy usage over a window to [0, 100],
// lower usage scoring higher. An empty window scores exactly 0.
func EfficiencyScore(events []domain.UsageEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var total float64
	for _, ev := range events {
		total += ev.EnergyUsage
	}
	avg := total / float64(len(events))
	return math.Round(math.Max(0, 100-avg/10))
}

// WindowEvents filters events to those at or after the window start.
func WindowEvents(events []domain.UsageEvent, since time.Time) []domain.UsageEvent {
	var out []domain.UsageEvent
	for _, ev := range events {
		if !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out
}

// MinePatterns aggregates windowed events into day-of-week x time-slot
// buckets. Empty buckets emit no pattern: absence means "no data", not
// "zero".
func MinePatterns(deviceType domain.DeviceType, events []domain.UsageEvent) []domain.Pattern {
	var patterns []domain.Pattern
	for day := 0; day < 7; day++ {
		for _, slot := range domain.TimeSlots {
			var bucket []domain.UsageEvent
			for _, ev := range events {
				if int(ev.Timestamp.Weekday()) == day && domain.TimeSlotFor(ev.Timestamp) == slot {
					bucket = append(bucket, ev)
				}
			}
			if len(bucket) == 0 {
				continue
			}
			patterns = append(patterns, domain.Pattern{
				DayOfWeek:         day,
				TimeSlot:          slot,
				PredictedSettings: predictedSettings(deviceType, bucket),
				Confidence:        Confidence(len(bucket)),
			})
		}
	}
	return patterns
}

func predictedSettings(deviceType domain.DeviceType, bucket []domain.UsageEvent) domain.PredictedSettings {
	switch deviceType {
	case domain.DeviceTypeThermostat:
		return domain.PredictedSettings{
			Temp: averageValue(bucket),
			Mode: mostFrequentMode(bucket),
		}
	case domain.DeviceTypeLight:
		return domain.PredictedSettings{
			Brightness: averageValue(bucket),
			IsOn:       ratio(bucket, func(ev domain.UsageEvent) bool { return ev.Action == domain.ActionTurnedOn }) > 0.5,
		}
	case domain.DeviceTypeCamera:
		return domain.PredictedSettings{
			MotionDetection:  true,
			RecordingEnabled: ratio(bucket, func(ev domain.UsageEvent) bool { return ev.Value > 0 }) > 0.3,
		}
	default:
		return domain.PredictedSettings{}
	}
}

func averageValue(bucket []domain.UsageEvent) float64 {
	var sum float64
	for _, ev := range bucket {
		sum += ev.Value
	}
	return math.Round(sum / float64(len(bucket)))
}

// mostFrequentMode picks the mode with the highest count. Ties break to the
// first mode encountered, so the result is stable for a given event order.
func mostFrequentMode(bucket []domain.UsageEvent) string {
	counts := make(map[string]int)
	var order []string
	for _, ev := range bucket {
		if ev.Mode == "" {
			continue
		}
		if _, seen := counts[ev.Mode]; !seen {
			order = append(order, ev.Mode)
		}
		counts[ev.Mode]++
	}
	best := ""
	bestCount := 0
	for _, mode := range order {
		if counts[mode] > bestCount {
			best = mode
			bestCount = counts[mode]
		}
	}
	return best
}

func ratio(bucket []domain.UsageEvent, predicate func(domain.UsageEvent) bool) float64 {
	var n int
	for _, ev := range bucket {
		if predicate(ev) {
			n++
		}
	}
	return float64(n) / float64(len(bucket))
}

// Mine recomputes and stores the device's predictive data. Device types
// without mining behavior yield (nil, nil) and leave stored data untouched.
func (m *PatternMiner) Mine(ctx context.Context, now time.Time, deviceID string) ([]domain.Pattern, error) {
	device, err := m.Store.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	switch device.Type {
	case domain.DeviceTypeThermostat, domain.DeviceTypeLight, domain.DeviceTypeCamera:
	default:
		m.Logger.Debug("miner: no behavior for type",
			zap.String("device", deviceID), zap.String("type", string(device.Type)))
		return nil, nil
	}

	window := WindowEvents(device.UsageHistory, now.Add(-MiningWindow))
	patterns := MinePatterns(device.Type, window)
	if patterns == nil {
		// supported type with no windowed data still gets its predictive
		// data replaced, with an empty (not nil) pattern set
		patterns = []domain.Pattern{}
	}

	predictive := domain.PredictiveData{
		Patterns:              patterns,
		EnergyEfficiencyScore: EfficiencyScore(window),
	}
	if err := m.Store.UpdatePredictive(ctx, deviceID, predictive, now); err != nil {
		return nil, err
	}
	m.Logger.Debug("miner: predictive data replaced",
		zap.String("device", deviceID),
		zap.Int("patterns", len(patterns)),
		zap.Float64("efficiencyScore", predictive.EnergyEfficiencyScore))
	return patterns, nil
}

// MineAll refreshes predictive data for every device that supports mining.
func (m *PatternMiner) MineAll(ctx context.Context, now time.Time) (int, error) {
	devices, err := m.Store.List(ctx, port.DeviceFilter{})
	if err != nil {
		return 0, err
	}
	mined := 0
	for i := range devices {
		patterns, err := m.Mine(ctx, now, devices[i].ID)
		if err != nil {
			m.Logger.Warn("miner: device skipped", zap.String("device", devices[i].ID), zap.Error(err))
			continue
		}
		if patterns != nil {
			mined++
		}
	}
	return mined, nil
}
