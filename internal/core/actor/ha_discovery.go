package actor

import (
	"context"
	"fmt"
	"time"

	"homepulse/internal/config"
	"homepulse/internal/core/domain"
	"homepulse/internal/core/events"
	"homepulse/internal/core/port"
	"homepulse/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes Home Assistant discovery payloads once at boot:
// a bridge device plus one HA device per registered homepulse device, with
// its telemetry sensors and power switch.
type HADiscoveryActor struct {
	config           *config.Config
	behavior         actor.Behavior
	stash            *actorutil.Stash
	store            port.DeviceStore
	mqttActor        *actor.PID
	mqttActorHealthy bool

	logger *zap.Logger
}

type discoveryDevices struct {
	devices []domain.Device
	err     error
}

func NewHADiscoveryActor(config *config.Config, store port.DeviceStore, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		store:     store,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// check the MQTT actor is up before publishing anything
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if msg.Id == domain.ACTOR_ID_MQTT && msg.Healthy {
			state.mqttActorHealthy = true
		}
		if !state.mqttActorHealthy {
			panic(fmt.Errorf("MQTT actor is not healthy"))
		}
		actorutil.NewBackgroundTask(ctx, func() (*discoveryDevices, error) {
			devices, err := state.store.List(context.Background(), port.DeviceFilter{})
			return &discoveryDevices{devices: devices, err: err}, nil
		}).WithTimeout(10 * time.Second).Recover(func(err error) discoveryDevices {
			return discoveryDevices{err: err}
		}).PipeTo(ctx.Self())
		state.behavior.Become(state.WaitingDevicesReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingDevicesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case discoveryDevices:
		if msg.err != nil {
			panic(msg.err)
		}
		state.logger.Debug("hadiscovery@devices: publishing discovery", zap.Int("devices", len(msg.devices)))

		var sensors []domain.GenericSensor
		var switches []domain.GenericSwitch

		bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
		sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

		for i := range msg.devices {
			device := &msg.devices[i]
			haDevice := events.DeviceToHADevice(device, bridgeDevice)
			deviceSensors := events.DeviceSensors(haDevice, device)
			for j := range deviceSensors {
				if j > 0 {
					deviceSensors[j].Device = events.IdDevice(haDevice)
				}
				sensors = append(sensors, deviceSensors[j])
			}
			switches = append(switches, events.DeviceSwitches(events.IdDevice(haDevice), device)...)
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Switches: switches,
		})
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@devices: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}
