package service

import (
	"context"
	"testing"
	"time"

	"homepulse/internal/adapter/store"
	"homepulse/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecommendationsThermostat(t *testing.T) {
	hot := []domain.UsageEvent{
		{Value: 25}, {Value: 26},
	}
	recs := Recommendations(domain.DeviceTypeThermostat, nil, hot)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationEnergySaving, recs[0].Type)
	assert.Equal(t, "10-15%", recs[0].PotentialSavings)

	mild := []domain.UsageEvent{
		{Value: 22}, {Value: 24},
	}
	assert.Empty(t, Recommendations(domain.DeviceTypeThermostat, nil, mild))
}

func TestRecommendationsLight(t *testing.T) {
	patterns := []domain.Pattern{
		{TimeSlot: domain.SlotEvening, PredictedSettings: domain.PredictedSettings{IsOn: true}},
		{TimeSlot: domain.SlotNight, PredictedSettings: domain.PredictedSettings{IsOn: true}},
		{TimeSlot: domain.SlotNight, PredictedSettings: domain.PredictedSettings{IsOn: true}},
	}
	recs := Recommendations(domain.DeviceTypeLight, patterns, nil)
	// one recommendation no matter how many night patterns match
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationAutomation, recs[0].Type)
	assert.Equal(t, "5-10%", recs[0].PotentialSavings)

	off := []domain.Pattern{
		{TimeSlot: domain.SlotNight, PredictedSettings: domain.PredictedSettings{IsOn: false}},
	}
	assert.Empty(t, Recommendations(domain.DeviceTypeLight, off, nil))
}

func TestRecommendationsCamera(t *testing.T) {
	alwaysOn := []domain.Pattern{
		{PredictedSettings: domain.PredictedSettings{RecordingEnabled: true, MotionDetection: false}},
	}
	recs := Recommendations(domain.DeviceTypeCamera, alwaysOn, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationEfficiency, recs[0].Type)
	assert.Equal(t, "20-30%", recs[0].PotentialSavings)

	motionTriggered := []domain.Pattern{
		{PredictedSettings: domain.PredictedSettings{RecordingEnabled: true, MotionDetection: true}},
	}
	assert.Empty(t, Recommendations(domain.DeviceTypeCamera, motionTriggered, nil))
}

func newTestAnalyzer(t *testing.T) (*EfficiencyAnalyzer, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewEfficiencyAnalyzer(s, zap.NewNop()), s
}

func TestReportTotalsAndDailyAverage(t *testing.T) {
	ctx := context.Background()
	analyzer, s := newTestAnalyzer(t)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	device := &domain.Device{
		ID:   "t1",
		Type: domain.DeviceTypeThermostat,
		Predictive: domain.PredictiveData{
			Patterns:              []domain.Pattern{{DayOfWeek: 1, TimeSlot: domain.SlotMorning}},
			EnergyEfficiencyScore: 80,
		},
		UsageHistory: []domain.UsageEvent{
			{Timestamp: now.Add(-48 * time.Hour), Value: 22, EnergyUsage: 100},
			{Timestamp: now.Add(-24 * time.Hour), Value: 22, EnergyUsage: 200},
			{Timestamp: now.Add(-time.Hour), Value: 22, EnergyUsage: 300},
			// outside the trailing window, ignored
			{Timestamp: now.Add(-45 * 24 * time.Hour), Value: 22, EnergyUsage: 9999},
		},
	}
	require.NoError(t, s.Upsert(ctx, device))

	report, err := analyzer.Report(ctx, now, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", report.DeviceID)
	assert.Equal(t, domain.DeviceTypeThermostat, report.Type)
	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, 80.0, report.EfficiencyScore)
	assert.Equal(t, 600.0, report.TotalEnergyUsage)
	// daily average is over the full 30-day window
	assert.Equal(t, 20.0, report.AverageDailyUsage)
	assert.Len(t, report.Patterns, 1)
}

func TestReportEmptyHistoryDegrades(t *testing.T) {
	ctx := context.Background()
	analyzer, s := newTestAnalyzer(t)

	require.NoError(t, s.Upsert(ctx, &domain.Device{ID: "l1", Type: domain.DeviceTypeLight}))

	report, err := analyzer.Report(ctx, time.Now(), "l1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.EfficiencyScore)
	assert.Equal(t, 0.0, report.TotalEnergyUsage)
	assert.Equal(t, 0.0, report.AverageDailyUsage)
	assert.NotNil(t, report.Patterns)
	assert.Empty(t, report.Patterns)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)
}

func TestReportMissingDevice(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	_, err := analyzer.Report(context.Background(), time.Now(), "missing")
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}
