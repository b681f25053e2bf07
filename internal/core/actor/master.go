package actor

import (
	"fmt"
	"log"
	"time"

	adactor "homepulse/internal/adapter/actor"
	"homepulse/internal/config"
	"homepulse/internal/core/domain"
	. "homepulse/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ScheduleActorProvider func(*eventstream.EventStream) *ScheduleActor

type AutomationActorProvider func(*eventstream.EventStream) *AutomationActor

type HADiscoveryActorProvider func(mqttActor *actor.PID) *HADiscoveryActor

// MasterOfPuppetsActor supervises the actor tree and routes requests to the
// child that owns each concern: schedule for status writes, automation for
// simulation/mining/reports, mqtt for broker traffic.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck       healthCheckResult
	eventStream              *eventstream.EventStream
	scheduleActor            *actor.PID
	automationActor          *actor.PID
	mqttActor                *actor.PID
	scheduleActorProvider    ScheduleActorProvider
	automationActorProvider  AutomationActorProvider
	mqttActorProvider        MQTTActorProvider
	haDiscoveryActorProvider HADiscoveryActorProvider
	logger                   *zap.Logger
}

type healthCheckResult struct {
	scheduleActorHealthy   bool
	automationActorHealthy bool
	mqttActorHealthy       bool
	checksReceived         int
	respondTo              *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, scheduleActorProvider ScheduleActorProvider,
	automationActorProvider AutomationActorProvider, mqttActorProvider MQTTActorProvider,
	haDiscoveryActorProvider HADiscoveryActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                   config,
		behavior:                 actor.NewBehavior(),
		stash:                    &Stash{},
		logger:                   ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:              &eventstream.EventStream{},
		scheduleActorProvider:    scheduleActorProvider,
		automationActorProvider:  automationActorProvider,
		mqttActorProvider:        mqttActorProvider,
		haDiscoveryActorProvider: haDiscoveryActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child first so siblings can publish through it
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start schedule child
		scheduleActorPID, err := state.startScheduleActor(ctx)
		if err != nil {
			panic(err)
		}
		state.scheduleActor = scheduleActorPID

		// start automation child
		automationActorPID, err := state.startAutomationActor(ctx)
		if err != nil {
			panic(err)
		}
		state.automationActor = automationActorPID

		// start HA discovery
		if state.config.MQTT.Enable && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// Schedule actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.scheduleActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_SCHEDULE,
				Healthy: false,
			}
		})
		// Automation actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.automationActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_AUTOMATION,
				Healthy: false,
			}
		})
		// MQTT actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// map inbound MQTT command to the owning child
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.SetDeviceStatusRequest:
					ctx.Send(state.scheduleActor, pcmd)
				}
			}
		}
	case domain.EvaluateSchedulesRequest:
		ctx.RequestWithCustomSender(state.scheduleActor, msg, ctx.Sender())
	case domain.SetDeviceStatusRequest:
		ctx.RequestWithCustomSender(state.scheduleActor, msg, ctx.Sender())
	case domain.SimulateDeviceRequest:
		ctx.RequestWithCustomSender(state.automationActor, msg, ctx.Sender())
	case domain.MinePatternsRequest:
		ctx.RequestWithCustomSender(state.automationActor, msg, ctx.Sender())
	case domain.MineAllPatternsRequest:
		ctx.RequestWithCustomSender(state.automationActor, msg, ctx.Sender())
	case domain.EfficiencyReportRequest:
		ctx.RequestWithCustomSender(state.automationActor, msg, ctx.Sender())
	case domain.PublishMessageRequest:
		ctx.RequestWithCustomSender(state.mqttActor, msg, ctx.Sender())
	case *actor.Terminated:
		// if the MQTT actor fails permanently, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt error")
			panic(fmt.Errorf("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to the health check, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_SCHEDULE:
				state.currentHealthCheck.scheduleActorHealthy = true
			case domain.ACTOR_ID_AUTOMATION:
				state.currentHealthCheck.automationActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startScheduleActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	scheduleProps := actor.PropsFromProducer(func() actor.Actor {
		return state.scheduleActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	scheduleActorPID, err := ctx.SpawnNamed(scheduleProps, domain.ACTOR_ID_SCHEDULE)
	if err != nil {
		return nil, err
	}

	return scheduleActorPID, nil
}

func (state *MasterOfPuppetsActor) startAutomationActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	automationProps := actor.PropsFromProducer(func() actor.Actor {
		return state.automationActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	automationActorPID, err := ctx.SpawnNamed(automationProps, domain.ACTOR_ID_AUTOMATION)
	if err != nil {
		return nil, err
	}

	return automationActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return state.haDiscoveryActorProvider(state.mqttActor)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.scheduleActorHealthy = false
	state.automationActorHealthy = false
	state.mqttActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.scheduleActorHealthy && state.automationActorHealthy && state.mqttActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
