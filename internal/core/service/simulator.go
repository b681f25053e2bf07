package service

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"homepulse/internal/core/domain"
	"homepulse/internal/core/port"
	"homepulse/internal/util"

	"go.uber.org/zap"
)

const (
	defaultThermostatTarget = 22.0
	defaultLightBrightness  = 70.0
	lightMaxPowerWatt       = 60.0
	cameraRecordingWatt     = 15.0
	cameraStandbyWatt       = 5.0
	outsideBaselineTemp     = 20.0
)

// BehaviorSimulator synthesizes one plausible usage sample per device per
// invocation, consulting mined patterns where available. It never touches
// device status or schedules.
type BehaviorSimulator struct {
	Store  port.DeviceStore
	Rand   *rand.Rand
	Logger *zap.Logger
}

func NewBehaviorSimulator(store port.DeviceStore, logger *zap.Logger) *BehaviorSimulator {
	return &BehaviorSimulator{
		Store:  store,
		Rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Logger: logger,
	}
}

// ThermostatEnergy models heating/cooling effort against the distance to
// target, in watts.
func ThermostatEnergy(currentTemp, targetTemp, outsideTemp float64) float64 {
	tempDiff := math.Abs(currentTemp - targetTemp)
	outsideDiff := math.Abs(outsideTemp - targetTemp)
	return (tempDiff*0.5 + outsideDiff*0.3) * 100
}

// LightEnergy scales a 60 W maximum by brightness; an off light draws
// nothing.
func LightEnergy(brightness float64, isOn bool) float64 {
	if !isOn {
		return 0
	}
	return brightness / 100 * lightMaxPowerWatt
}

func CameraEnergy(recording bool) float64 {
	if recording {
		return cameraRecordingWatt
	}
	return cameraStandbyWatt
}

// outsideTemp draws a synthetic outdoor temperature around a 20 degree
// baseline, biased by time slot.
func (s *BehaviorSimulator) outsideTemp(slot domain.TimeSlot) float64 {
	switch slot {
	case domain.SlotMorning:
		return outsideBaselineTemp + s.Rand.Float64()*5
	case domain.SlotAfternoon:
		return outsideBaselineTemp + s.Rand.Float64()*10
	case domain.SlotEvening:
		return outsideBaselineTemp + s.Rand.Float64()*3
	default:
		return outsideBaselineTemp - s.Rand.Float64()*5
	}
}

func (s *BehaviorSimulator) shouldLightBeOn(slot domain.TimeSlot) bool {
	return slot == domain.SlotEvening || slot == domain.SlotNight || s.Rand.Float64() > 0.7
}

// Simulate produces and persists one synthetic sample for the device. A
// missing device or a device type without simulation behavior yields
// (nil, nil): not applicable, not an error.
func (s *BehaviorSimulator) Simulate(ctx context.Context, now time.Time, deviceID string) (*domain.SimulationResult, error) {
	device, err := s.Store.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			s.Logger.Debug("simulator: unknown device", zap.String("device", deviceID))
			return nil, nil
		}
		return nil, err
	}

	slot := domain.TimeSlotFor(now)
	pattern := domain.FindPattern(device.Predictive.Patterns, now.Weekday(), slot)

	switch device.Type {
	case domain.DeviceTypeThermostat:
		return s.simulateThermostat(ctx, now, device, slot, pattern)
	case domain.DeviceTypeLight:
		return s.simulateLight(ctx, now, device, slot, pattern)
	case domain.DeviceTypeCamera:
		return s.simulateCamera(ctx, now, device, slot)
	default:
		s.Logger.Debug("simulator: no behavior for type",
			zap.String("device", deviceID), zap.String("type", string(device.Type)))
		return nil, nil
	}
}

func (s *BehaviorSimulator) simulateThermostat(ctx context.Context, now time.Time, device *domain.Device, slot domain.TimeSlot, pattern *domain.Pattern) (*domain.SimulationResult, error) {
	outside := s.outsideTemp(slot)
	target := defaultThermostatTarget
	if pattern != nil {
		target = pattern.PredictedSettings.Temp
	}
	humidity := math.Floor(s.Rand.Float64()*30 + 30)
	energy := util.Round2(ThermostatEnergy(device.Settings.CurrentTemp, target, outside))

	device.Settings.CurrentTemp = target
	device.Settings.Humidity = humidity
	device.UpdatedAt = now
	if err := s.persist(ctx, now, device, domain.UsageEvent{
		Timestamp:   now,
		Action:      domain.ActionTempAdjustment,
		Value:       target,
		EnergyUsage: energy,
	}); err != nil {
		return nil, err
	}

	return &domain.SimulationResult{
		DeviceID:    device.ID,
		Type:        device.Type,
		TimeSlot:    slot,
		TargetTemp:  target,
		Humidity:    humidity,
		EnergyUsage: energy,
	}, nil
}

func (s *BehaviorSimulator) simulateLight(ctx context.Context, now time.Time, device *domain.Device, slot domain.TimeSlot, pattern *domain.Pattern) (*domain.SimulationResult, error) {
	brightness := defaultLightBrightness
	if pattern != nil {
		brightness = pattern.PredictedSettings.Brightness
	}
	isOn := s.shouldLightBeOn(slot)
	energy := util.Round2(LightEnergy(brightness, isOn))

	action := domain.ActionTurnedOff
	if isOn {
		action = domain.ActionTurnedOn
	}
	device.Settings.Brightness = brightness
	device.Settings.IsOn = isOn
	device.UpdatedAt = now
	if err := s.persist(ctx, now, device, domain.UsageEvent{
		Timestamp:   now,
		Action:      action,
		Value:       brightness,
		EnergyUsage: energy,
	}); err != nil {
		return nil, err
	}

	return &domain.SimulationResult{
		DeviceID:    device.ID,
		Type:        device.Type,
		TimeSlot:    slot,
		Brightness:  brightness,
		IsOn:        isOn,
		EnergyUsage: energy,
	}, nil
}

func (s *BehaviorSimulator) simulateCamera(ctx context.Context, now time.Time, device *domain.Device, slot domain.TimeSlot) (*domain.SimulationResult, error) {
	motion := s.Rand.Float64() > 0.7 // 30% chance of motion
	recording := motion || slot == domain.SlotNight
	energy := CameraEnergy(recording)

	action := domain.ActionMonitoring
	if motion {
		action = domain.ActionMotionDetected
	}
	var recordingValue float64
	if recording {
		recordingValue = 1
	}
	device.Settings.MotionDetection = motion
	device.Settings.RecordingEnabled = recording
	device.UpdatedAt = now
	if err := s.persist(ctx, now, device, domain.UsageEvent{
		Timestamp:   now,
		Action:      action,
		Value:       recordingValue,
		EnergyUsage: energy,
	}); err != nil {
		return nil, err
	}

	return &domain.SimulationResult{
		DeviceID:         device.ID,
		Type:             device.Type,
		TimeSlot:         slot,
		MotionDetected:   motion,
		RecordingEnabled: recording,
		EnergyUsage:      energy,
	}, nil
}

func (s *BehaviorSimulator) persist(ctx context.Context, now time.Time, device *domain.Device, event domain.UsageEvent) error {
	if err := s.Store.UpdateSettings(ctx, device.ID, device.Settings, now); err != nil {
		return err
	}
	return s.Store.AppendUsageEvent(ctx, device.ID, event)
}
