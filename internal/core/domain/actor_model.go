package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_SCHEDULE     = "schedule"
	ACTOR_ID_AUTOMATION   = "automation"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Schedule evaluator messages

// EvaluateSchedulesRequest triggers one evaluator pass. A zero At means
// "now". Requests arriving while a pass is in flight are skipped, not
// queued.
type EvaluateSchedulesRequest struct {
	ActorRequestMixIn
	At time.Time
}

type EvaluateSchedulesResponse struct {
	ActorResponseMixIn
	Summary *EvaluationSummary
	Busy    bool
}

// Automation messages

type SimulateDeviceRequest struct {
	ActorRequestMixIn
	DeviceID string
}

type SimulateDeviceResponse struct {
	ActorResponseMixIn
	// Applicable is false when the device type has no simulation behavior.
	Applicable bool
	Result     *SimulationResult
}

type MinePatternsRequest struct {
	ActorRequestMixIn
	DeviceID string
}

type MinePatternsResponse struct {
	ActorResponseMixIn
	Patterns []Pattern
}

// MineAllPatternsRequest re-mines predictive data for every device. Sent by
// the cron driver.
type MineAllPatternsRequest struct {
	ActorRequestMixIn
}

type MineAllPatternsResponse struct {
	ActorResponseMixIn
	Mined int
}

type EfficiencyReportRequest struct {
	ActorRequestMixIn
	DeviceID string
}

type EfficiencyReportResponse struct {
	ActorResponseMixIn
	Report *EfficiencyReport
}

// SetDeviceStatusRequest is the explicit user override path for device
// power, e.g. an MQTT switch command. It bypasses the schedule but performs
// the same apply-on-change write.
type SetDeviceStatusRequest struct {
	ActorRequestMixIn
	DeviceID string
	On       bool
}

type SetDeviceStatusResponse struct {
	ActorResponseMixIn
	Changed bool
}

// MQTT messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
