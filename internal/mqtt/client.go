package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"github.com/berfenger/gridfleet/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	COMMAND_SWITCH = "switch"
)

var ErrInvalidCommand = errors.New("invalid command")

// Broker is the subset of an MQTT session used by the actors. Every call is
// asynchronous and reports its outcome through continuation.
type Broker interface {
	Topics() Topics
	OnConnectionLost(fn func(error))
	Connect(continuation func(error), timeout time.Duration)
	Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration)
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte), continuation func(error), timeout time.Duration)
	Disconnect(timeout time.Duration)
}

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("gridfleet_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = NewTopics(cfg.MQTT.BaseTopic).BridgeStateTopic()
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions) *MQTTClient {
	c := &MQTTClient{
		topics: NewTopics(cfg.MQTT.BaseTopic),
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.mu.Lock()
		fn := c.onLost
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
	c.client = mqtt.NewClient(opts)
	return c
}

type MQTTClient struct {
	client mqtt.Client
	topics Topics
	mu     sync.Mutex
	onLost func(error)
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Param    string
	Payload  string
}

func (c *MQTTClient) Topics() Topics {
	return c.topics
}

func (c *MQTTClient) OnConnectionLost(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLost = fn
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go waitToken(token, "publish", continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte), continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	go waitToken(token, "subscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go waitToken(token, "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func waitToken(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	if !token.WaitTimeout(timeout) {
		continuation(fmt.Errorf("MQTT %s timed out", op))
		return
	}
	continuation(token.Error())
}

// Topics derives every topic of the bridge from its base topic.
type Topics struct {
	baseTopic           string
	switchCommandRegexp *regexp.Regexp
}

func NewTopics(baseTopic string) Topics {
	return Topics{
		baseTopic:           baseTopic,
		switchCommandRegexp: switchCommandExtractor(baseTopic),
	}
}

func (t Topics) BaseTopic() string {
	return t.baseTopic
}

func (t Topics) BridgeStateTopic() string {
	return fmt.Sprintf("%s/bridge/state", t.baseTopic)
}

func (t Topics) SnapshotTopic() string {
	return fmt.Sprintf("%s/snapshot", t.baseTopic)
}

func (t Topics) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", t.baseTopic, sensorId)
}

func (t Topics) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", t.baseTopic, sensorId)
}

func (t Topics) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", t.baseTopic, switchId)
}

func (t Topics) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/command", t.baseTopic, switchId)
}

// CommandTopic is the subscription filter for every switch command.
func (t Topics) CommandTopic() string {
	return fmt.Sprintf("%s/switch/+/command", t.baseTopic)
}

func (t Topics) ParseCommand(topic string, payload []byte) (*ParsedMQTTCommand, error) {
	matches := t.switchCommandRegexp.FindStringSubmatch(topic)
	if len(matches) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, topic)
	}
	value := string(payload)
	if value != MQTT_PAYLOAD_ON && value != MQTT_PAYLOAD_OFF {
		return nil, fmt.Errorf("%w: payload %q", ErrInvalidCommand, value)
	}
	return &ParsedMQTTCommand{
		DeviceId: matches[1],
		Command:  COMMAND_SWITCH,
		Payload:  value,
	}, nil
}

func switchCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/switch/([a-zA-Z0-9_]+)/command$", regexp.QuoteMeta(baseTopic)))
}
