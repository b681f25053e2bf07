package domain

import (
	"time"
)

type DeviceType string

const (
	DeviceTypeThermostat DeviceType = "thermostat"
	DeviceTypeLight      DeviceType = "light"
	DeviceTypeCamera     DeviceType = "camera"
	DeviceTypeSecurity   DeviceType = "security"
	DeviceTypeFan        DeviceType = "fan"
	DeviceTypeAC         DeviceType = "ac"
	DeviceTypeHeater     DeviceType = "heater"
	DeviceTypePower      DeviceType = "power"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeThermostat, DeviceTypeLight, DeviceTypeCamera, DeviceTypeSecurity,
		DeviceTypeFan, DeviceTypeAC, DeviceTypeHeater, DeviceTypePower:
		return true
	}
	return false
}

type DeviceStatus string

const (
	StatusOn      DeviceStatus = "On"
	StatusOff     DeviceStatus = "Off"
	StatusOnline  DeviceStatus = "Online"
	StatusOffline DeviceStatus = "Offline"
)

// DeviceSettings is the type-specific mutable bag of a device. Only the
// fields relevant to the device type carry meaning; the rest stay at their
// zero value.
type DeviceSettings struct {
	CurrentTemp      float64 `json:"currentTemp,omitempty"`
	Humidity         float64 `json:"humidity,omitempty"`
	Brightness       float64 `json:"brightness,omitempty"`
	IsOn             bool    `json:"isOn,omitempty"`
	MotionDetection  bool    `json:"motionDetection,omitempty"`
	RecordingEnabled bool    `json:"recordingEnabled,omitempty"`
	Mode             string  `json:"mode,omitempty"`
}

// AutoSchedule is the user-defined daily power window. OnTime and OffTime
// are "HH:mm" 24-hour local time and are both required when Enabled is true.
type AutoSchedule struct {
	Enabled bool   `json:"enabled"`
	OnTime  string `json:"onTime,omitempty"`
	OffTime string `json:"offTime,omitempty"`
}

type PredictiveData struct {
	Patterns              []Pattern `json:"patterns"`
	EnergyEfficiencyScore float64   `json:"energyEfficiencyScore"`
}

type Device struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         DeviceType     `json:"type"`
	Status       DeviceStatus   `json:"status"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	Location     string         `json:"location,omitempty"`
	Settings     DeviceSettings `json:"settings"`
	AutoSchedule AutoSchedule   `json:"autoSchedule"`
	Predictive   PredictiveData `json:"predictiveData"`
	// UsageHistory is append-only and owned by the simulation and the
	// schedule evaluator. Mining reads it, never rewrites it.
	UsageHistory []UsageEvent `json:"usageHistory,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// UsageEvent is a single simulation-originated usage sample.
type UsageEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Value       float64   `json:"value"`
	Mode        string    `json:"mode,omitempty"`
	EnergyUsage float64   `json:"energyUsage"`
}

const (
	ActionTempAdjustment = "temp_adjustment"
	ActionTurnedOn       = "turned_on"
	ActionTurnedOff      = "turned_off"
	ActionMotionDetected = "motion_detected"
	ActionMonitoring     = "monitoring"
)

type UnitType string

const (
	UnitKWh     UnitType = "kWh"
	UnitWh      UnitType = "Wh"
	UnitJ       UnitType = "J"
	UnitMJ      UnitType = "MJ"
	UnitLumens  UnitType = "Lumens"
	UnitMinutes UnitType = "Minutes"
)

type SessionStatus string

const (
	SessionRunning SessionStatus = "Running"
	SessionStopped SessionStatus = "Stopped"
	SessionIdle    SessionStatus = "Idle"
	SessionOn      SessionStatus = "On"
	SessionOff     SessionStatus = "Off"
)

// SessionRecord is an externally originated usage record (e.g. a manual
// start/stop session). Durations are derived once at creation from
// EndTime - StartTime and never recomputed.
type SessionRecord struct {
	ID              string        `json:"id"`
	DeviceID        string        `json:"deviceId"`
	UnitReading     float64       `json:"unitReading,omitempty"`
	UnitType        UnitType      `json:"unitType"`
	PowerUsageWatts float64       `json:"powerUsageWatts,omitempty"`
	Status          SessionStatus `json:"status"`
	StartTime       *time.Time    `json:"startTime,omitempty"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	DurationMinutes float64       `json:"durationMinutes,omitempty"`
	DurationHours   float64       `json:"durationHours,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// DeriveDurations fills DurationMinutes/DurationHours from the start/end
// times. DurationHours == DurationMinutes/60 holds by construction.
func (r *SessionRecord) DeriveDurations() {
	if r.StartTime == nil || r.EndTime == nil {
		return
	}
	d := r.EndTime.Sub(*r.StartTime)
	if d < 0 {
		return
	}
	r.DurationMinutes = d.Minutes()
	r.DurationHours = r.DurationMinutes / 60
}
