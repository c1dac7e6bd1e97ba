package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/gridfleet/internal/adapter/actor"
	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/metrics"
	. "github.com/berfenger/gridfleet/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// MQTTActorProvider builds the MQTT child. A nil provider disables MQTT.
type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// MasterActor supervises the fleet and its presentation children and routes
// switch commands to the fleet.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	fleetActor         *actor.PID
	mqttActor          *actor.PID
	haDiscoveryActor   *actor.PID
	mqttActorProvider  MQTTActorProvider
	metrics            *metrics.MasterMetrics
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected       []string
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterActor(config config.Config, eventStream *eventstream.EventStream, mqttActorProvider MQTTActorProvider,
	masterMetrics *metrics.MasterMetrics, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       eventStream,
		mqttActorProvider: mqttActorProvider,
		metrics:           masterMetrics,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start Fleet child
		fleetActorPID, err := state.startFleetActor(ctx)
		if err != nil {
			panic(err)
		}
		state.fleetActor = fleetActorPID

		if state.config.MQTT.Enable && state.mqttActorProvider != nil {
			// start MQTT child
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				haDiscPID, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
				state.haDiscoveryActor = haDiscPID
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.children())
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)
		for id, pid := range state.children() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetFleetRefRequest:
		ForRequest(msg).Respond(ctx, domain.GetFleetRefResponse{
			Fleet: state.fleetActor,
		})
	case adactor.ParsedCommand:
		// redirect parsedCommand to the fleet
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.SetSlavePowerRequest:
					state.logger.Info("master@default slave power command", zap.Int("slave", pcmd.SlaveId), zap.Bool("enable", pcmd.Enable))
					ctx.Request(state.fleetActor, pcmd)
				}
			}
		}
	case domain.SetSlavePowerResponse:
		if msg.HasResponseError() {
			state.logger.Warn("master@default slave power command failed", zap.Error(msg.GetResponseError()))
		}
	case *actor.Terminated:
		// the fleet is not optional
		if msg.Who.Equal(state.fleetActor) {
			state.logger.Error("master@default fleet terminated")
			panic(errors.New("fleet terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
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

// children maps the id of every running child to its PID.
func (state *MasterActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_FLEET: state.fleetActor,
	}
	if state.mqttActor != nil {
		children[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	if state.haDiscoveryActor != nil {
		children[domain.ACTOR_ID_HA_DISCOVERY] = state.haDiscoveryActor
	}
	return children
}

func (state *MasterActor) startFleetActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	fleetProps := actor.PropsFromProducer(func() actor.Actor {
		return NewFleetActor(state.config.Master, state.eventStream, state.metrics, state.logger)
	}, actor.WithSupervisor(supervisor))
	fleetActorPID, err := ctx.SpawnNamed(fleetProps, domain.ACTOR_ID_FLEET)
	if err != nil {
		return nil, err
	}

	return fleetActorPID, nil
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

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

func (state *healthCheckResult) reset(children map[string]*actor.PID) {
	state.expected = state.expected[:0]
	for id := range children {
		state.expected = append(state.expected, id)
	}
	state.healthy = make(map[string]bool)
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
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
