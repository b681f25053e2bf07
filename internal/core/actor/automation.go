package actor

import (
	"context"
	"fmt"
	"time"

	"homepulse/internal/config"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/events"
	"homepulse/internal/core/port"
	"homepulse/internal/core/service"
	. "homepulse/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// AutomationActor fronts the simulation, mining and reporting services. All
// work runs off the mailbox goroutine; the background simulation loop arms
// its next tick only after the previous pass finishes.
type AutomationActor struct {
	ActorWithStates
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	store       port.DeviceStore
	simulator   *service.BehaviorSimulator
	miner       *service.PatternMiner
	analyzer    *service.EfficiencyAnalyzer
	eventStream *eventstream.EventStream

	logger *zap.Logger
}

type simulationTick struct {
}

type simulationPassDone struct {
	results []domain.SimulationResult
	err     error
}

type simulateDone struct {
	replyTo *actor.PID
	result  *domain.SimulationResult
	err     error
}

type mineDone struct {
	replyTo  *actor.PID
	deviceID string
	patterns []domain.Pattern
	score    float64
	err      error
}

type mineAllDone struct {
	replyTo *actor.PID
	mined   int
	err     error
}

type reportDone struct {
	replyTo *actor.PID
	report  *domain.EfficiencyReport
	err     error
}

func NewAutomationActor(config *config.Config, store port.DeviceStore, simulator *service.BehaviorSimulator,
	miner *service.PatternMiner, analyzer *service.EfficiencyAnalyzer,
	eventStream *eventstream.EventStream, logger *zap.Logger) *AutomationActor {
	act := &AutomationActor{
		config:      config,
		store:       store,
		simulator:   simulator,
		miner:       miner,
		analyzer:    analyzer,
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_AUTOMATION, logger),
		eventStream: eventStream,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(AUStartingState{
		actor: act,
	})
	return act
}

func (state *AutomationActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type AUStartingState struct {
	ActorState
	actor *AutomationActor
}

func (state AUStartingState) Name() string {
	return "starting"
}

func (state AUStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("automation@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.actor.config.Simulation.IntervalMillis > 0 {
			state.actor.scheduler.RequestOnce(time.Duration(state.actor.config.Simulation.IntervalMillis)*time.Millisecond, ctx.Self(), simulationTick{})
		}

		state.actor.Become(AUIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("automation@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type AUIdleState struct {
	ActorState
	actor *AutomationActor
}

func (state AUIdleState) Name() string {
	return "idle"
}

func (state AUIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("automation@idle ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_AUTOMATION,
			Healthy: true,
			State:   state.Name(),
		})
	case simulationTick:
		state.actor.logger.Debug("automation@idle simulationTick")
		state.actor.BecomeStacked(AUSimulatingState{
			actor: state.actor,
		}.OnEnterAction(ctx))
	case domain.SimulateDeviceRequest:
		state.actor.logger.Debug("automation@idle SimulateDeviceRequest", zap.String("device", msg.DeviceID))
		state.actor.startSimulate(ctx, msg)
	case domain.MinePatternsRequest:
		state.actor.logger.Debug("automation@idle MinePatternsRequest", zap.String("device", msg.DeviceID))
		state.actor.startMine(ctx, msg)
	case domain.MineAllPatternsRequest:
		state.actor.logger.Debug("automation@idle MineAllPatternsRequest")
		state.actor.startMineAll(ctx, msg)
	case domain.EfficiencyReportRequest:
		state.actor.logger.Debug("automation@idle EfficiencyReportRequest", zap.String("device", msg.DeviceID))
		state.actor.startReport(ctx, msg)
	case simulateDone:
		state.actor.finishSimulate(ctx, msg)
	case mineDone:
		state.actor.finishMine(ctx, msg)
	case mineAllDone:
		if msg.err != nil {
			state.actor.logger.Warn("automation@idle mine all failed", zap.Error(msg.err))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.MineAllPatternsResponse{
				ActorResponseMixIn: domain.ResponseError(msg.err),
				Mined:              msg.mined,
			})
		}
	case reportDone:
		if msg.err != nil {
			state.actor.logger.Warn("automation@idle report failed", zap.Error(msg.err))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.EfficiencyReportResponse{
				ActorResponseMixIn: domain.ResponseError(msg.err),
				Report:             msg.report,
			})
		}
	default:
		state.actor.logger.Debug("automation@idle recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Simulating state, covers one background simulation pass

type AUSimulatingState struct {
	ActorState
	actor *AutomationActor
}

func (state AUSimulatingState) Name() string {
	return "simulating"
}

func (state AUSimulatingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_AUTOMATION,
			Healthy: true,
			State:   state.Name(),
		})
	case simulationPassDone:
		if msg.err != nil {
			state.actor.logger.Warn("automation@simulating pass finished with errors", zap.Error(msg.err))
		}
		for i := range msg.results {
			state.actor.publishSimulation(&msg.results[i])
		}
		// arm the next tick only after the pass is done
		if state.actor.config.Simulation.IntervalMillis > 0 {
			state.actor.scheduler.RequestOnce(time.Duration(state.actor.config.Simulation.IntervalMillis)*time.Millisecond, ctx.Self(), simulationTick{})
		}
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case simulationTick:
		// a pass is already running, skip
	default:
		state.actor.logger.Debug("automation@simulating stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state AUSimulatingState) OnEnterAction(ctx actor.Context) AUSimulatingState {
	act := state.actor
	now := time.Now()
	NewBackgroundTask(ctx, func() (*simulationPassDone, error) {
		bg := context.Background()
		devices, err := act.store.List(bg, port.DeviceFilter{})
		if err != nil {
			return &simulationPassDone{err: err}, nil
		}
		var results []domain.SimulationResult
		for i := range devices {
			result, err := act.simulator.Simulate(bg, now, devices[i].ID)
			if err != nil {
				act.logger.Warn("automation: device simulation skipped",
					zap.String("device", devices[i].ID), zap.Error(err))
				continue
			}
			if result != nil {
				results = append(results, *result)
			}
		}
		return &simulationPassDone{results: results}, nil
	}).WithTimeout(1 * time.Minute).Recover(func(err error) simulationPassDone {
		return simulationPassDone{err: err}
	}).PipeTo(ctx.Self())
	return state
}

// Request starters and finishers

func (act *AutomationActor) startSimulate(ctx actor.Context, msg domain.SimulateDeviceRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	now := time.Now()
	NewBackgroundTask(ctx, func() (*simulateDone, error) {
		result, err := act.simulator.Simulate(context.Background(), now, msg.DeviceID)
		return &simulateDone{replyTo: replyTo, result: result, err: err}, nil
	}).WithTimeout(10 * time.Second).Recover(func(err error) simulateDone {
		return simulateDone{replyTo: replyTo, err: err}
	}).PipeTo(ctx.Self())
}

func (act *AutomationActor) finishSimulate(ctx actor.Context, msg simulateDone) {
	if msg.err != nil {
		act.logger.Warn("automation: simulation failed", zap.Error(msg.err))
	}
	if msg.result != nil {
		act.publishSimulation(msg.result)
	}
	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.SimulateDeviceResponse{
			ActorResponseMixIn: domain.ResponseError(msg.err),
			Applicable:         msg.result != nil,
			Result:             msg.result,
		})
	}
}

func (act *AutomationActor) startMine(ctx actor.Context, msg domain.MinePatternsRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	now := time.Now()
	NewBackgroundTask(ctx, func() (*mineDone, error) {
		bg := context.Background()
		patterns, err := act.miner.Mine(bg, now, msg.DeviceID)
		done := &mineDone{replyTo: replyTo, deviceID: msg.DeviceID, patterns: patterns, err: err}
		if err == nil && patterns != nil {
			if device, gerr := act.store.Get(bg, msg.DeviceID); gerr == nil {
				done.score = device.Predictive.EnergyEfficiencyScore
			}
		}
		return done, nil
	}).WithTimeout(30 * time.Second).Recover(func(err error) mineDone {
		return mineDone{replyTo: replyTo, deviceID: msg.DeviceID, err: err}
	}).PipeTo(ctx.Self())
}

func (act *AutomationActor) finishMine(ctx actor.Context, msg mineDone) {
	if msg.err != nil {
		act.logger.Warn("automation: mining failed", zap.String("device", msg.deviceID), zap.Error(msg.err))
	}
	if msg.err == nil && msg.patterns != nil {
		for _, ev := range events.EfficiencyScoreUpdateEvents(msg.deviceID, msg.score) {
			act.eventStream.Publish(ev)
		}
	}
	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.MinePatternsResponse{
			ActorResponseMixIn: domain.ResponseError(msg.err),
			Patterns:           msg.patterns,
		})
	}
}

func (act *AutomationActor) startMineAll(ctx actor.Context, msg domain.MineAllPatternsRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	now := time.Now()
	NewBackgroundTask(ctx, func() (*mineAllDone, error) {
		mined, err := act.miner.MineAll(context.Background(), now)
		return &mineAllDone{replyTo: replyTo, mined: mined, err: err}, nil
	}).WithTimeout(2 * time.Minute).Recover(func(err error) mineAllDone {
		return mineAllDone{replyTo: replyTo, err: err}
	}).PipeTo(ctx.Self())
}

func (act *AutomationActor) startReport(ctx actor.Context, msg domain.EfficiencyReportRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	now := time.Now()
	NewBackgroundTask(ctx, func() (*reportDone, error) {
		report, err := act.analyzer.Report(context.Background(), now, msg.DeviceID)
		return &reportDone{replyTo: replyTo, report: report, err: err}, nil
	}).WithTimeout(10 * time.Second).Recover(func(err error) reportDone {
		return reportDone{replyTo: replyTo, err: err}
	}).PipeTo(ctx.Self())
}

func (act *AutomationActor) publishSimulation(result *domain.SimulationResult) {
	for _, ev := range events.SimulationResultToUpdateEvents(result) {
		act.eventStream.Publish(ev)
	}
}
