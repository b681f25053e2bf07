package service

import (
	"context"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"
	"homepulse/internal/util"

	"go.uber.org/zap"
)

// reportDailyDivisor matches the original reporting behavior: average daily
// usage is always total/30, not total/days-with-data.
const reportDailyDivisor = 30

// EfficiencyAnalyzer produces read-only efficiency reports from previously
// mined predictive data and the trailing usage window. It never mutates
// state.
type EfficiencyAnalyzer struct {
	Store  port.DeviceStore
	Logger *zap.Logger
}

func NewEfficiencyAnalyzer(store port.DeviceStore, logger *zap.Logger) *EfficiencyAnalyzer {
	return &EfficiencyAnalyzer{Store: store, Logger: logger}
}

// Report builds the efficiency report for one device. Missing history
// degrades to zeroed fields and an empty recommendation list, not an
// error.
func (a *EfficiencyAnalyzer) Report(ctx context.Context, now time.Time, deviceID string) (*domain.EfficiencyReport, error) {
	device, err := a.Store.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	window := WindowEvents(device.UsageHistory, now.Add(-MiningWindow))
	var total float64
	for _, ev := range window {
		total += ev.EnergyUsage
	}

	patterns := device.Predictive.Patterns
	if patterns == nil {
		patterns = []domain.Pattern{}
	}

	return &domain.EfficiencyReport{
		DeviceID:          device.ID,
		Type:              device.Type,
		GeneratedAt:       now,
		EfficiencyScore:   device.Predictive.EnergyEfficiencyScore,
		TotalEnergyUsage:  util.Round2(total),
		AverageDailyUsage: util.Round2(total / reportDailyDivisor),
		Patterns:          patterns,
		Recommendations:   Recommendations(device.Type, patterns, window),
	}, nil
}

// Recommendations applies the per-type rule set. Rules are independent and
// deterministic given their inputs; no triggering condition means an empty
// list.
func Recommendations(deviceType domain.DeviceType, patterns []domain.Pattern, events []domain.UsageEvent) []domain.Recommendation {
	recommendations := []domain.Recommendation{}

	switch deviceType {
	case domain.DeviceTypeThermostat:
		if len(events) > 0 {
			var sum float64
			for _, ev := range events {
				sum += ev.Value
			}
			if sum/float64(len(events)) > 24 {
				recommendations = append(recommendations, domain.Recommendation{
					Type:             domain.RecommendationEnergySaving,
					Message:          "Consider lowering your average temperature to save energy",
					PotentialSavings: "10-15%",
				})
			}
		}
	case domain.DeviceTypeLight:
		for _, p := range patterns {
			if p.TimeSlot == domain.SlotNight && p.PredictedSettings.IsOn {
				recommendations = append(recommendations, domain.Recommendation{
					Type:             domain.RecommendationAutomation,
					Message:          "Consider setting up auto-off schedules for nighttime",
					PotentialSavings: "5-10%",
				})
				break
			}
		}
	case domain.DeviceTypeCamera:
		for _, p := range patterns {
			if p.PredictedSettings.RecordingEnabled && !p.PredictedSettings.MotionDetection {
				recommendations = append(recommendations, domain.Recommendation{
					Type:             domain.RecommendationEfficiency,
					Message:          "Switch to motion-triggered recording to save energy",
					PotentialSavings: "20-30%",
				})
				break
			}
		}
	}

	return recommendations
}
