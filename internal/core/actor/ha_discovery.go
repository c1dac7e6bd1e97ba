package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the fleet device once and every slave the
// first time it shows up in a snapshot.
type HADiscoveryActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	mqttActor    *actor.PID
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	fleetDevice  domain.Device
	announced    map[int]domain.DeviceType

	logger *zap.Logger
}

type discoverySnapshot struct {
	snapshot domain.Snapshot
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		fleetDevice: domain.FleetDevice(config.MQTT.BaseTopic),
		announced:   make(map[int]domain.DeviceType),
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
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

		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: domain.FleetSensors(state.fleetDevice),
		})

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.subscription = state.eventStream.Subscribe(func(evt any) {
			if snapshot, ok := evt.(domain.Snapshot); ok {
				root.Send(self, discoverySnapshot{snapshot: snapshot})
			}
		})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case discoverySnapshot:
		var sensors []domain.GenericSensor
		var switches []domain.GenericSwitch
		for _, t := range msg.snapshot.Telemetry {
			if known, ok := state.announced[t.SlaveId]; ok && known == t.DeviceType {
				continue
			}
			state.logger.Info("hadiscovery@default announcing slave", zap.Int("slave", t.SlaveId), zap.String("type", string(t.DeviceType)))
			slaveDevice := domain.SlaveDevice(state.fleetDevice, t.SlaveId, t.DeviceType)
			sensors = append(sensors, domain.SlaveSensors(slaveDevice, t.SlaveId, t.DeviceType)...)
			switches = append(switches, domain.SlavePowerSwitch(slaveDevice, t.SlaveId))
			state.announced[t.SlaveId] = t.DeviceType
		}
		if len(sensors) > 0 {
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
				Sensors:  sensors,
				Switches: switches,
			})
		}
	case domain.ActorHealthRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   fmt.Sprintf("%d slaves announced", len(state.announced)),
		})
	case *actor.Stopping:
		state.unsubscribe()
	case *actor.Restarting:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@default: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
}
