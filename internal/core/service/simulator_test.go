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

func TestThermostatEnergy(t *testing.T) {
	// 4 degrees off target inside, 6 degrees off target outside
	assert.InDelta(t, 380.0, ThermostatEnergy(25, 21, 15), 1e-9)
	// at target with matching outside temperature, no effort
	assert.InDelta(t, 0.0, ThermostatEnergy(22, 22, 22), 1e-9)
}

func TestLightEnergy(t *testing.T) {
	assert.InDelta(t, 48.0, LightEnergy(80, true), 1e-9)
	assert.InDelta(t, 60.0, LightEnergy(100, true), 1e-9)
	assert.InDelta(t, 0.0, LightEnergy(80, false), 1e-9)
}

func TestCameraEnergy(t *testing.T) {
	assert.InDelta(t, 15.0, CameraEnergy(true), 1e-9)
	assert.InDelta(t, 5.0, CameraEnergy(false), 1e-9)
}

func newTestSimulator(t *testing.T) (*BehaviorSimulator, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewBehaviorSimulator(s, zap.NewNop()), s
}

func TestSimulateThermostatFollowsPattern(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	// Monday morning
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, now.Weekday())

	device := &domain.Device{
		ID:   "t1",
		Name: "hall thermostat",
		Type: domain.DeviceTypeThermostat,
		Settings: domain.DeviceSettings{
			CurrentTemp: 18,
		},
		Predictive: domain.PredictiveData{
			Patterns: []domain.Pattern{{
				DayOfWeek:         int(time.Monday),
				TimeSlot:          domain.SlotMorning,
				PredictedSettings: domain.PredictedSettings{Temp: 24, Mode: "heat"},
				Confidence:        0.8,
			}},
		},
	}
	require.NoError(t, s.Upsert(ctx, device))

	result, err := sim.Simulate(ctx, now, "t1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.SlotMorning, result.TimeSlot)
	assert.Equal(t, 24.0, result.TargetTemp)
	assert.GreaterOrEqual(t, result.Humidity, 30.0)
	assert.Less(t, result.Humidity, 60.0)
	assert.GreaterOrEqual(t, result.EnergyUsage, 0.0)

	stored, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 24.0, stored.Settings.CurrentTemp)
	assert.Equal(t, result.Humidity, stored.Settings.Humidity)
	require.Len(t, stored.UsageHistory, 1)
	assert.Equal(t, domain.ActionTempAdjustment, stored.UsageHistory[0].Action)
	assert.Equal(t, 24.0, stored.UsageHistory[0].Value)
	assert.Equal(t, result.EnergyUsage, stored.UsageHistory[0].EnergyUsage)
}

func TestSimulateThermostatDefaultTarget(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	device := &domain.Device{
		ID:       "t1",
		Type:     domain.DeviceTypeThermostat,
		Settings: domain.DeviceSettings{CurrentTemp: 18},
	}
	require.NoError(t, s.Upsert(ctx, device))

	result, err := sim.Simulate(ctx, now, "t1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 22.0, result.TargetTemp)
}

func TestSimulateLightEveningIsOn(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	// evening slot forces the light on regardless of the random draw
	now := time.Date(2025, 3, 3, 19, 0, 0, 0, time.UTC)
	device := &domain.Device{
		ID:   "l1",
		Type: domain.DeviceTypeLight,
	}
	require.NoError(t, s.Upsert(ctx, device))

	result, err := sim.Simulate(ctx, now, "l1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.SlotEvening, result.TimeSlot)
	assert.True(t, result.IsOn)
	assert.Equal(t, 70.0, result.Brightness)
	assert.InDelta(t, 42.0, result.EnergyUsage, 1e-9)

	stored, err := s.Get(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, stored.Settings.IsOn)
	require.Len(t, stored.UsageHistory, 1)
	assert.Equal(t, domain.ActionTurnedOn, stored.UsageHistory[0].Action)
}

func TestSimulateCameraConsistency(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	// night slot forces recording regardless of motion
	now := time.Date(2025, 3, 3, 23, 30, 0, 0, time.UTC)
	device := &domain.Device{
		ID:   "c1",
		Type: domain.DeviceTypeCamera,
	}
	require.NoError(t, s.Upsert(ctx, device))

	result, err := sim.Simulate(ctx, now, "c1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.SlotNight, result.TimeSlot)
	assert.True(t, result.RecordingEnabled)
	assert.InDelta(t, 15.0, result.EnergyUsage, 1e-9)

	stored, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, stored.UsageHistory, 1)
	if result.MotionDetected {
		assert.Equal(t, domain.ActionMotionDetected, stored.UsageHistory[0].Action)
	} else {
		assert.Equal(t, domain.ActionMonitoring, stored.UsageHistory[0].Action)
	}
}

func TestSimulateUnsupportedTypeNotApplicable(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	device := &domain.Device{
		ID:     "s1",
		Type:   domain.DeviceTypeSecurity,
		Status: domain.StatusOn,
	}
	require.NoError(t, s.Upsert(ctx, device))

	result, err := sim.Simulate(ctx, time.Now(), "s1")
	require.NoError(t, err)
	assert.Nil(t, result)

	stored, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, stored.UsageHistory)
}

func TestSimulateMissingDeviceNotApplicable(t *testing.T) {
	sim, _ := newTestSimulator(t)
	result, err := sim.Simulate(context.Background(), time.Now(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSimulateNeverTouchesStatus(t *testing.T) {
	ctx := context.Background()
	sim, s := newTestSimulator(t)

	device := &domain.Device{
		ID:     "l1",
		Type:   domain.DeviceTypeLight,
		Status: domain.StatusOff,
	}
	require.NoError(t, s.Upsert(ctx, device))

	now := time.Date(2025, 3, 3, 19, 0, 0, 0, time.UTC)
	_, err := sim.Simulate(ctx, now, "l1")
	require.NoError(t, err)

	stored, err := s.Get(ctx, "l1")
	require.NoError(t, err)
	// power status is owned by the schedule evaluator
	assert.Equal(t, domain.StatusOff, stored.Status)
}
