package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	adactor "homepulse/internal/adapter/actor"
	"homepulse/internal/adapter/store"
	coreactor "homepulse/internal/core/actor"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/service"
	"homepulse/internal/util"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, s *store.MemoryStore) (http.Handler, func()) {
	t.Helper()

	as := pactor.NewActorSystem()
	rootCtx := as.Root

	cfg := util.LoadTestConfig()
	cfg.Scheduler.TickIntervalMillis = 0
	cfg.Simulation.IntervalMillis = 0

	logger := zap.NewNop()

	evaluator := service.NewScheduleEvaluator(s, s, cfg.Scheduler.MaxConcurrency, logger)
	simulator := service.NewBehaviorSimulator(s, logger)
	miner := service.NewPatternMiner(s, logger)
	analyzer := service.NewEfficiencyAnalyzer(s, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return coreactor.NewMasterOfPuppetsActor(cfg,
			func(es *eventstream.EventStream) *coreactor.ScheduleActor {
				return coreactor.NewScheduleActor(&cfg, evaluator, es, logger)
			},
			func(es *eventstream.EventStream) *coreactor.AutomationActor {
				return coreactor.NewAutomationActor(&cfg, s, simulator, miner, analyzer, es, logger)
			},
			func(es *eventstream.EventStream) *adactor.MQTTActor {
				return adactor.NewTestMQTTActor(&cfg, logger)
			},
			func(mqttActor *pactor.PID) *coreactor.HADiscoveryActor {
				return coreactor.NewHADiscoveryActor(&cfg, s, mqttActor, logger)
			},
			logger)
	})
	pid, err := rootCtx.SpawnNamed(props, "master")
	require.NoError(t, err)

	srv := &Server{
		rootContext: rootCtx,
		masterActor: pid,
		devices:     s,
		usage:       s,
	}
	cleanup := func() {
		rootCtx.Stop(pid)
		as.Shutdown()
	}
	return srv.RegisterRoutes(), cleanup
}

func TestEvaluateSchedulesHandlerTimeParam(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), &domain.Device{
		ID:     "l1",
		Name:   "desk lamp",
		Type:   domain.DeviceTypeLight,
		Status: domain.StatusOff,
		AutoSchedule: domain.AutoSchedule{
			Enabled: true,
			OnTime:  "09:00",
			OffTime: "18:00",
		},
	}))

	handler, cleanup := newTestHandler(t, s)
	defer cleanup()

	// inside the window the device turns on
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate?time=2025-03-03T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.EvaluationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Evaluated)
	require.Len(t, summary.Transitions, 1)
	assert.Equal(t, domain.StatusOn, summary.Transitions[0].To)

	// outside the window it turns back off
	req = httptest.NewRequest(http.MethodPost, "/api/evaluate?time=2025-03-03T20:00:00Z", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.Transitions, 1)
	assert.Equal(t, domain.StatusOff, summary.Transitions[0].To)

	stored, err := s.Get(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOff, stored.Status)
}

func TestEvaluateSchedulesHandlerBadTimeParam(t *testing.T) {
	s := store.NewMemoryStore()
	handler, cleanup := newTestHandler(t, s)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate?time=yesterday", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
