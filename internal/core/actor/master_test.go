package actor

import (
	"context"
	"testing"
	"time"

	adactor "github.com/berfenger/gridfleet/internal/adapter/actor"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/internal/mqtt"
	"github.com/berfenger/gridfleet/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	defer as.Shutdown()
	root := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	es := &eventstream.EventStream{}
	broker := mqtt.NewTestBroker(cfg.MQTT.BaseTopic)
	topics := broker.Topics()

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, es, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewMQTTActor(&cfg, es, broker, logger)
		}, metrics.NewNopMasterMetrics(), logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	assert.Eventually(func() bool {
		res, err := root.RequestFuture(pid, domain.ActorHealthRequest{}, 3*time.Second).Result()
		if err != nil {
			return false
		}
		health, ok := res.(domain.ActorHealthResponse)
		return ok && health.Healthy
	}, 5*time.Second, 100*time.Millisecond)

	res, err := root.RequestFuture(pid, domain.GetFleetRefRequest{}, time.Second).Result()
	require.NoError(t, err)
	ref, ok := res.(domain.GetFleetRefResponse)
	require.True(t, ok)
	require.NotNil(t, ref.Fleet)

	fleet := NewFleetClient(root, ref.Fleet, es)
	writeSlot(t, fleet, 1, 2, domain.Telemetry{
		SlaveId:        2,
		DeviceType:     domain.DeviceTypeWind,
		Power:          800,
		AmbientTemp:    20,
		InternalTemp:   30,
		RuntimeSeconds: 60,
		Status:         domain.SlaveStatusOnline,
	})

	// new slaves are announced and their state published
	slave := domain.SlaveDevice(domain.FleetDevice(cfg.MQTT.BaseTopic), 2, domain.DeviceTypeWind)
	assert.Eventually(func() bool {
		_, ok := broker.LastPublished(mqtt.HADiscoverySwitchTopic(cfg.MQTT.HADiscoveryTopic, domain.SlavePowerSwitch(slave, 2)))
		return ok
	}, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(func() bool {
		msg, ok := broker.LastPublished(topics.SensorStateTopic(domain.SlaveEntityId(2, domain.SENSOR_SUFFIX_POWER)))
		return ok && msg.Payload == "800.00"
	}, 3*time.Second, 20*time.Millisecond)

	// switch commands reach the fleet
	broker.Deliver(topics.SwitchCommandTopic(domain.SlaveSwitchId(2)), mqtt.MQTT_PAYLOAD_OFF)
	assert.Eventually(func() bool {
		snapshot, err := fleet.GetSnapshot(context.Background())
		if err != nil {
			return false
		}
		tl, ok := snapshot.Find(2)
		return ok && tl.Status == domain.SlaveStatusOffline && tl.Power == 0
	}, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(func() bool {
		msg, ok := broker.LastPublished(topics.SwitchStateTopic(domain.SlaveSwitchId(2)))
		return ok && msg.Payload == mqtt.MQTT_PAYLOAD_OFF
	}, 3*time.Second, 20*time.Millisecond)

	root.Stop(pid)
}

func TestMasterActorWithoutMQTT(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	defer as.Shutdown()

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = false
	logger := zap.Must(zap.NewDevelopment())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, &eventstream.EventStream{}, nil, metrics.NewNopMasterMetrics(), logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 3*time.Second).Result()
	require.NoError(t, err)
	health, ok := res.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(health.Healthy)
	assert.Equal(domain.ACTOR_ID_MASTER, health.Id)
}
