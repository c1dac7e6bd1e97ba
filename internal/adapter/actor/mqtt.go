package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/events"
	"github.com/berfenger/gridfleet/internal/mqtt"
	"github.com/berfenger/gridfleet/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// MQTTActor pushes every fleet snapshot to the broker and turns switch
// commands into fleet requests for its parent.
type MQTTActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	broker       mqtt.Broker
	topics       mqtt.Topics
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	logger       *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type snapshotEvent struct {
	snapshot domain.Snapshot
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, broker mqtt.Broker, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		broker:      broker,
		topics:      broker.Topics(),
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.broker.OnConnectionLost(func(err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.broker.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.broker.Publish(state.topics.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		// subscribe to MQTT command topic
		state.broker.Subscribe(state.topics.CommandTopic(), 1, func(topic string, payload []byte) {
			cmd, err := state.topics.ParseCommand(topic, payload)
			if err == nil && cmd != nil {
				root.Send(self, ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, follow the fleet snapshots
		state.logger.Debug("mqtt@starting subscribed")
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.subscription = state.eventStream.Subscribe(func(evt any) {
			if snapshot, ok := evt.(domain.Snapshot); ok {
				root.Send(self, snapshotEvent{snapshot: snapshot})
			}
		})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "connected",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case snapshotEvent:
		state.publishSnapshot(msg.snapshot)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery", zap.Int("sensors", len(msg.Sensors)), zap.Int("switches", len(msg.Switches)))
		err := state.PublishHomeAssistantDiscovery(msg.Sensors, msg.Switches)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@default could not publish a message", zap.Error(msg.Error))
		}
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.topics.SensorStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.IntSensorUpdateEvent:
		return &rawMessage{
			topic:   state.topics.SensorStateTopic(msg.Id),
			message: fmt.Sprintf("%d", msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.topics.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
		}
	case domain.SwitchSensorUpdateEvent:
		return &rawMessage{
			topic:   state.topics.SwitchStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
			retain:  true,
		}
	default:
		return nil
	}
}

// publishSnapshot sends the full snapshot as JSON plus one state message per
// sensor. Publish errors are only logged.
func (state *MQTTActor) publishSnapshot(snapshot domain.Snapshot) {
	logErr := func(err error) {
		if err != nil {
			state.logger.Warn("mqtt@default snapshot publish", zap.Error(err))
		}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		state.logger.Error("mqtt@default snapshot encode", zap.Error(err))
	} else {
		state.broker.Publish(state.topics.SnapshotTopic(), payload, 0, true, logErr, 5*time.Second)
	}
	for _, evt := range events.SnapshotToUpdateEvents(snapshot) {
		if msg := state.event2MQTTMessage(evt); msg != nil {
			state.broker.Publish(msg.topic, msg.message, 0, msg.retain, logErr, 5*time.Second)
		}
	}
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool, replyTo *actor.PID) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.broker.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
			root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.broker.Publish(topic, payload, 1, retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.Error),
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor, switches []domain.GenericSwitch) error {
	prefix := state.config.MQTT.HADiscoveryTopic
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.topics, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySensorTopic(prefix, sensors[i])
		state.broker.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range switches {
		msg := mqtt.GenericSwitchToHADiscoveryMessage(state.topics, switches[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySwitchTopic(prefix, switches[i])
		state.broker.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	state.broker.Publish(state.topics.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
	state.broker.Disconnect(500 * time.Millisecond)
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	} else {
		return mqtt.MQTT_PAYLOAD_OFF
	}
}
