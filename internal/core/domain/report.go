package domain

import "time"

// SimulationResult is the snapshot returned by one simulator invocation.
// Only the fields for the simulated device type are populated.
type SimulationResult struct {
	DeviceID         string     `json:"deviceId"`
	Type             DeviceType `json:"type"`
	TimeSlot         TimeSlot   `json:"timeSlot"`
	TargetTemp       float64    `json:"targetTemp,omitempty"`
	Humidity         float64    `json:"humidity,omitempty"`
	Brightness       float64    `json:"brightness,omitempty"`
	IsOn             bool       `json:"isOn,omitempty"`
	MotionDetected   bool       `json:"motionDetected,omitempty"`
	RecordingEnabled bool       `json:"recordingEnabled,omitempty"`
	EnergyUsage      float64    `json:"energyUsage"`
}

type RecommendationType string

const (
	RecommendationEnergySaving RecommendationType = "energy_saving"
	RecommendationAutomation   RecommendationType = "automation"
	RecommendationEfficiency   RecommendationType = "efficiency"
)

type Recommendation struct {
	Type             RecommendationType `json:"type"`
	Message          string             `json:"message"`
	PotentialSavings string             `json:"potentialSavings"`
}

// EfficiencyReport is a read-only projection over the trailing 30-day usage
// window and the current predictive data. Empty history degrades to zeroed
// fields, never to an error.
type EfficiencyReport struct {
	DeviceID          string           `json:"deviceId"`
	Type              DeviceType       `json:"type"`
	GeneratedAt       time.Time        `json:"generatedAt"`
	EfficiencyScore   float64          `json:"efficiencyScore"`
	TotalEnergyUsage  float64          `json:"totalEnergyUsage"`
	AverageDailyUsage float64          `json:"averageDailyUsage"`
	Patterns          []Pattern        `json:"patterns"`
	Recommendations   []Recommendation `json:"recommendations"`
}

// ScheduleTransition records one applied power state change.
type ScheduleTransition struct {
	DeviceID string       `json:"deviceId"`
	From     DeviceStatus `json:"from"`
	To       DeviceStatus `json:"to"`
	At       time.Time    `json:"at"`
}

// EvaluationSummary is the outcome of one evaluator pass.
type EvaluationSummary struct {
	At          time.Time            `json:"at"`
	Evaluated   int                  `json:"evaluated"`
	Transitions []ScheduleTransition `json:"transitions"`
	Skipped     int                  `json:"skipped"`
}
