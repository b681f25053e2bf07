package domain

import "time"

// TimeSlot is one of the four fixed local-time buckets used to segment a day
// for pattern mining and simulation.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"   // [06:00, 12:00)
	SlotAfternoon TimeSlot = "afternoon" // [12:00, 18:00)
	SlotEvening   TimeSlot = "evening"   // [18:00, 22:00)
	SlotNight     TimeSlot = "night"     // [22:00, 06:00) wrapping past midnight
)

// TimeSlots lists all slots in day order. Mining iterates this to keep the
// emitted pattern order stable.
var TimeSlots = []TimeSlot{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}

func TimeSlotForHour(hour int) TimeSlot {
	switch {
	case hour >= 6 && hour < 12:
		return SlotMorning
	case hour >= 12 && hour < 18:
		return SlotAfternoon
	case hour >= 18 && hour < 22:
		return SlotEvening
	default:
		return SlotNight
	}
}

func TimeSlotFor(t time.Time) TimeSlot {
	return TimeSlotForHour(t.Hour())
}

// PredictedSettings is the per-type aggregate mined for a (day, slot) bucket.
type PredictedSettings struct {
	Temp             float64 `json:"temp,omitempty"`
	Mode             string  `json:"mode,omitempty"`
	Brightness       float64 `json:"brightness,omitempty"`
	IsOn             bool    `json:"isOn,omitempty"`
	MotionDetection  bool    `json:"motionDetection,omitempty"`
	RecordingEnabled bool    `json:"recordingEnabled,omitempty"`
}

// Pattern is a mined (day-of-week, time-slot) behavioral summary. The pair
// is unique per device per mining run.
type Pattern struct {
	DayOfWeek         int               `json:"dayOfWeek"` // 0 (Sunday) to 6
	TimeSlot          TimeSlot          `json:"timeSlot"`
	PredictedSettings PredictedSettings `json:"predictedSettings"`
	Confidence        float64           `json:"confidence"`
}

// FindPattern returns the pattern matching the given day of week and time
// slot, or nil if the bucket has no mined data.
func FindPattern(patterns []Pattern, day time.Weekday, slot TimeSlot) *Pattern {
	for i := range patterns {
		if patterns[i].DayOfWeek == int(day) && patterns[i].TimeSlot == slot {
			return &patterns[i]
		}
	}
	return nil
}
