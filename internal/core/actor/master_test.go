package actor

import (
	"context"
	"fmt"
	"testing"
	"time"

	adactor "homepulse/internal/adapter/actor"
	"homepulse/internal/adapter/store"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/service"
	"homepulse/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnTestMaster(t *testing.T, s *store.MemoryStore) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	t.Helper()

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	// ticks off, requests drive everything in tests
	cfg.Scheduler.TickIntervalMillis = 0
	cfg.Simulation.IntervalMillis = 0

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	evaluator := service.NewScheduleEvaluator(s, s, cfg.Scheduler.MaxConcurrency, logger)
	simulator := service.NewBehaviorSimulator(s, logger)
	miner := service.NewPatternMiner(s, logger)
	analyzer := service.NewEfficiencyAnalyzer(s, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg,
			func(es *eventstream.EventStream) *ScheduleActor {
				return NewScheduleActor(&cfg, evaluator, es, logger)
			},
			func(es *eventstream.EventStream) *AutomationActor {
				return NewAutomationActor(&cfg, s, simulator, miner, analyzer, es, logger)
			},
			func(es *eventstream.EventStream) *adactor.MQTTActor {
				return adactor.NewTestMQTTActor(&cfg, logger)
			},
			func(mqttActor *actor.PID) *HADiscoveryActor {
				return NewHADiscoveryActor(&cfg, s, mqttActor, logger)
			},
			logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	require.NoError(t, err)

	return as, context, pid
}

func TestMasterActorHealthCheck(t *testing.T) {

	s := store.NewMemoryStore()
	as, context, pid := spawnTestMaster(t, s)

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterActorRoutesStatusOverride(t *testing.T) {

	s := store.NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), &domain.Device{
		ID:     "l1",
		Name:   "desk lamp",
		Type:   domain.DeviceTypeLight,
		Status: domain.StatusOff,
	}))

	as, rootCtx, pid := spawnTestMaster(t, s)
	defer as.Shutdown()
	defer rootCtx.Stop(pid)

	res, err := rootCtx.RequestFuture(pid, domain.SetDeviceStatusRequest{DeviceID: "l1", On: true}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.SetDeviceStatusResponse)
	require.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.True(t, resp.Changed)

	stored, err := s.Get(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOn, stored.Status)

	// second identical request is a no-op
	res, err = rootCtx.RequestFuture(pid, domain.SetDeviceStatusRequest{DeviceID: "l1", On: true}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok = res.(domain.SetDeviceStatusResponse)
	require.True(t, ok)
	assert.False(t, resp.Changed)
}

func TestMasterActorRoutesEvaluation(t *testing.T) {

	s := store.NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), &domain.Device{
		ID:     "l1",
		Type:   domain.DeviceTypeLight,
		Status: domain.StatusOff,
		AutoSchedule: domain.AutoSchedule{
			Enabled: true,
			OnTime:  "09:00",
			OffTime: "18:00",
		},
	}))

	as, rootCtx, pid := spawnTestMaster(t, s)
	defer as.Shutdown()
	defer rootCtx.Stop(pid)

	at := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	res, err := rootCtx.RequestFuture(pid, domain.EvaluateSchedulesRequest{At: at}, 10*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.EvaluateSchedulesResponse)
	require.True(t, ok)
	assert.False(t, resp.Busy)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1, resp.Summary.Evaluated)
	assert.Len(t, resp.Summary.Transitions, 1)
}

func TestMasterActorRoutesMiningAndReport(t *testing.T) {

	s := store.NewMemoryStore()
	now := time.Now()
	require.NoError(t, s.Upsert(context.Background(), &domain.Device{
		ID:   "t1",
		Type: domain.DeviceTypeThermostat,
		UsageHistory: []domain.UsageEvent{
			{Timestamp: now.Add(-time.Hour), Action: domain.ActionTempAdjustment, Value: 22, Mode: "heat", EnergyUsage: 200},
		},
	}))

	as, rootCtx, pid := spawnTestMaster(t, s)
	defer as.Shutdown()
	defer rootCtx.Stop(pid)

	res, err := rootCtx.RequestFuture(pid, domain.MinePatternsRequest{DeviceID: "t1"}, 10*time.Second).Result()
	require.NoError(t, err)
	mineResp, ok := res.(domain.MinePatternsResponse)
	require.True(t, ok)
	assert.False(t, mineResp.HasResponseError())
	assert.Len(t, mineResp.Patterns, 1)

	res, err = rootCtx.RequestFuture(pid, domain.EfficiencyReportRequest{DeviceID: "t1"}, 10*time.Second).Result()
	require.NoError(t, err)
	reportResp, ok := res.(domain.EfficiencyReportResponse)
	require.True(t, ok)
	assert.False(t, reportResp.HasResponseError())
	require.NotNil(t, reportResp.Report)
	assert.Equal(t, 200.0, reportResp.Report.TotalEnergyUsage)
	assert.Equal(t, 80.0, reportResp.Report.EfficiencyScore)
}
