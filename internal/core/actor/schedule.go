package actor

import (
	"context"
	"fmt"
	"time"

	"homepulse/internal/config"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/events"
	"homepulse/internal/core/service"
	. "homepulse/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ScheduleActor owns device power status. It runs the evaluator on a fixed
// tick and applies explicit override requests; no other actor writes status.
// The next tick is armed only after the current pass completes, so a slow
// pass skips ticks instead of queueing them.
type ScheduleActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	evaluator   *service.ScheduleEvaluator
	eventStream *eventstream.EventStream
	replyTo     *actor.PID

	logger *zap.Logger
}

type scheduleTick struct {
}

type evaluationDone struct {
	summary *domain.EvaluationSummary
	err     error
}

type overrideDone struct {
	replyTo    *actor.PID
	transition *domain.ScheduleTransition
	err        error
}

func NewScheduleActor(config *config.Config, evaluator *service.ScheduleEvaluator, eventStream *eventstream.EventStream, logger *zap.Logger) *ScheduleActor {
	act := &ScheduleActor{
		config:      config,
		evaluator:   evaluator,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_SCHEDULE, logger),
		eventStream: eventStream,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ScheduleActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ScheduleActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("schedule@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.config.Scheduler.TickIntervalMillis > 0 {
			state.scheduler.RequestOnce(time.Duration(state.config.Scheduler.TickIntervalMillis)*time.Millisecond, ctx.Self(), scheduleTick{})
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("schedule@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ScheduleActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("schedule@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SCHEDULE,
			Healthy: true,
			State:   "idle",
		})
	case scheduleTick:
		state.logger.Debug("schedule@default tick")
		state.startEvaluation(ctx, time.Now(), nil)
	case domain.EvaluateSchedulesRequest:
		state.logger.Debug("schedule@default EvaluateSchedulesRequest")
		at := msg.At
		if at.IsZero() {
			at = time.Now()
		}
		state.startEvaluation(ctx, at, ForRequest(msg).ReplyTo(ctx))
	case domain.SetDeviceStatusRequest:
		state.logger.Debug("schedule@default SetDeviceStatusRequest",
			zap.String("device", msg.DeviceID), zap.Bool("on", msg.On))
		state.startOverride(ctx, msg)
	case overrideDone:
		state.finishOverride(ctx, msg)
	default:
		state.logger.Debug("schedule@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// EvaluatingReceive covers an in-flight evaluator pass. Further evaluation
// requests are answered busy, not queued; everything else waits.
func (state *ScheduleActor) EvaluatingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case evaluationDone:
		if msg.err != nil {
			state.logger.Warn("schedule@evaluating pass finished with errors", zap.Error(msg.err))
		}
		if msg.summary != nil {
			for _, transition := range msg.summary.Transitions {
				for _, ev := range events.TransitionToUpdateEvents(transition) {
					state.eventStream.Publish(ev)
				}
			}
		}
		if state.replyTo != nil {
			ctx.Send(state.replyTo, domain.EvaluateSchedulesResponse{
				ActorResponseMixIn: domain.ResponseError(msg.err),
				Summary:            msg.summary,
			})
			state.replyTo = nil
		}
		// arm the next tick only after the pass is done
		if state.config.Scheduler.TickIntervalMillis > 0 {
			state.scheduler.RequestOnce(time.Duration(state.config.Scheduler.TickIntervalMillis)*time.Millisecond, ctx.Self(), scheduleTick{})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.EvaluateSchedulesRequest:
		state.logger.Debug("schedule@evaluating busy, skipping request")
		ForRequest(msg).Respond(ctx, domain.EvaluateSchedulesResponse{Busy: true})
	case scheduleTick:
		// a pass is already running, skip
	default:
		state.logger.Debug("schedule@evaluating stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ScheduleActor) startEvaluation(ctx actor.Context, at time.Time, replyTo *actor.PID) {
	state.replyTo = replyTo
	state.behavior.BecomeStacked(state.EvaluatingReceive)
	NewBackgroundTask(ctx, func() (*evaluationDone, error) {
		summary, err := state.evaluator.EvaluateAll(context.Background(), at)
		return &evaluationDone{summary: summary, err: err}, nil
	}).WithTimeout(1 * time.Minute).Recover(func(err error) evaluationDone {
		return evaluationDone{err: err}
	}).PipeTo(ctx.Self())
}

func (state *ScheduleActor) startOverride(ctx actor.Context, msg domain.SetDeviceStatusRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	now := time.Now()
	NewBackgroundTask(ctx, func() (*overrideDone, error) {
		transition, err := state.evaluator.ApplyStatus(context.Background(), now, msg.DeviceID, msg.On)
		return &overrideDone{replyTo: replyTo, transition: transition, err: err}, nil
	}).WithTimeout(10 * time.Second).Recover(func(err error) overrideDone {
		return overrideDone{replyTo: replyTo, err: err}
	}).PipeTo(ctx.Self())
}

func (state *ScheduleActor) finishOverride(ctx actor.Context, msg overrideDone) {
	if msg.err != nil {
		state.logger.Warn("schedule@default override failed", zap.Error(msg.err))
	}
	if msg.transition != nil {
		state.logger.Info("schedule@default override applied",
			zap.String("device", msg.transition.DeviceID),
			zap.String("to", string(msg.transition.To)))
		for _, ev := range events.TransitionToUpdateEvents(*msg.transition) {
			state.eventStream.Publish(ev)
		}
	}
	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.SetDeviceStatusResponse{
			ActorResponseMixIn: domain.ResponseError(msg.err),
			Changed:            msg.transition != nil,
		})
	}
}
