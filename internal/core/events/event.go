package events

import (
	"fmt"

	. "homepulse/internal/core/domain"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	SENSOR_SUFFIX_TEMPERATURE = "temperature"
	SENSOR_SUFFIX_HUMIDITY    = "humidity"
	SENSOR_SUFFIX_BRIGHTNESS  = "brightness"
	SENSOR_SUFFIX_POWER       = "power"
	SENSOR_SUFFIX_MOTION      = "motion"
	SENSOR_SUFFIX_RECORDING   = "recording"
	SENSOR_SUFFIX_EFFICIENCY  = "efficiency_score"
)

func SensorId(deviceID, suffix string) string {
	return fmt.Sprintf("%s_%s", deviceID, suffix)
}

// TransitionToUpdateEvents maps an applied schedule transition to the
// switch state update for the device.
func TransitionToUpdateEvents(tr ScheduleTransition) []any {
	return []any{
		SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: tr.DeviceID},
			Value:                  tr.To == StatusOn,
		},
	}
}

// DeviceStatusToUpdateEvent reflects a direct (override) status write.
func DeviceStatusToUpdateEvent(deviceID string, status DeviceStatus) []any {
	return []any{
		SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: deviceID},
			Value:                  status == StatusOn,
		},
	}
}

// SimulationResultToUpdateEvents maps one synthetic sample to the sensor
// updates for the device's telemetry.
func SimulationResultToUpdateEvents(res *SimulationResult) []any {
	var events []any

	switch res.Type {
	case DeviceTypeThermostat:
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_TEMPERATURE)},
			Value:                  res.TargetTemp,
			Decimals:               1,
		})
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_HUMIDITY)},
			Value:                  res.Humidity,
			Decimals:               0,
		})
	case DeviceTypeLight:
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_BRIGHTNESS)},
			Value:                  res.Brightness,
			Decimals:               0,
		})
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: res.DeviceID},
			Value:                  res.IsOn,
		})
	case DeviceTypeCamera:
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_MOTION)},
			Value:                  res.MotionDetected,
		})
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_RECORDING)},
			Value:                  res.RecordingEnabled,
		})
	}

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(res.DeviceID, SENSOR_SUFFIX_POWER)},
		Value:                  res.EnergyUsage,
		Decimals:               2,
	})

	return events
}

// EfficiencyScoreUpdateEvents publishes a freshly mined efficiency score.
func EfficiencyScoreUpdateEvents(deviceID string, score float64) []any {
	return []any{
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SensorId(deviceID, SENSOR_SUFFIX_EFFICIENCY)},
			Value:                  score,
			Decimals:               0,
		},
	}
}
