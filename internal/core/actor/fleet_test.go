package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
	"github.com/berfenger/gridfleet/internal/core/telemetry"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/pkg/mbframe"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMasterConfig() config.MasterConfig {
	return config.MasterConfig{
		Host:          "127.0.0.1",
		ModbusPort:    0,
		MaxSlaves:     10,
		IdentityCheck: config.IDENTITY_CHECK_OFF,
	}
}

func spawnFleet(t *testing.T, cfg config.MasterConfig, masterMetrics *metrics.MasterMetrics) (*actor.ActorSystem, *FleetClient) {
	as := actor.NewActorSystem()
	stream := &eventstream.EventStream{}
	logger := zap.Must(zap.NewDevelopment())
	if masterMetrics == nil {
		masterMetrics = metrics.NewNopMasterMetrics()
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewFleetActor(cfg, stream, masterMetrics, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_FLEET)
	require.NoError(t, err)
	return as, NewFleetClient(as.Root, pid, stream)
}

func writeSlot(t *testing.T, fleet *FleetClient, tid uint16, slaveId int, tl domain.Telemetry) {
	slot := telemetry.EncodeSlot(tl)
	req := mbframe.NewWriteMultipleRegistersRequest(tid, uint8(slaveId), uint16(register.SlotBase(slaveId)), slot[:])
	resp, err := fleet.Apply(context.Background(), "test", &req)
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestFleetProjectsWrite(t *testing.T) {

	assert := assert.New(t)

	as, fleet := spawnFleet(t, testMasterConfig(), nil)
	defer as.Shutdown()

	values := make([]uint16, register.SLOT_SIZE)
	copy(values, []uint16{1, 1, 57920, 1, 253, 450, 0, 0})
	req := mbframe.NewWriteMultipleRegistersRequest(7, 5, 100, values)

	resp, err := fleet.Apply(context.Background(), "test", &req)
	assert.NoError(err)
	if assert.NotNil(resp) {
		addr, quantity, err := resp.WriteMultipleAck()
		assert.NoError(err)
		assert.Equal(uint16(100), addr)
		assert.Equal(uint16(register.SLOT_SIZE), quantity)
		assert.Equal(uint16(7), resp.TransactionId)
	}

	snapshot, err := fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	tl, ok := snapshot.Find(5)
	assert.True(ok)
	assert.Equal(domain.DeviceTypeSolar, tl.DeviceType)
	assert.InDelta(1234.56, tl.Power, 1e-9)
	assert.Equal(domain.SlaveStatusOnline, tl.Status)
	assert.InDelta(25.3, tl.AmbientTemp, 1e-9)
	assert.InDelta(45.0, tl.InternalTemp, 1e-9)
	assert.Equal(uint32(0), tl.RuntimeSeconds)
	assert.Equal(1, snapshot.Statistics.TotalSlaves)
	assert.InDelta(1234.56, snapshot.Statistics.TotalPower, 1e-9)

	// reading the slot back returns what was written
	read := mbframe.NewReadHoldingRegistersRequest(8, 5, 100, register.SLOT_SIZE)
	resp, err = fleet.Apply(context.Background(), "test", &read)
	assert.NoError(err)
	if assert.NotNil(resp) {
		got, err := resp.ReadValues()
		assert.NoError(err)
		assert.Equal(values, got)
	}
}

func TestFleetSingleRegisterWrite(t *testing.T) {

	assert := assert.New(t)

	as, fleet := spawnFleet(t, testMasterConfig(), nil)
	defer as.Shutdown()

	writeSlot(t, fleet, 1, 2, domain.Telemetry{SlaveId: 2, DeviceType: domain.DeviceTypeBMS, Power: 80, Status: domain.SlaveStatusOnline})

	// flip the status register alone
	req := mbframe.NewWriteSingleRegisterRequest(2, 2, uint16(register.SlotBase(2)+telemetry.OffsetStatus), 0)
	resp, err := fleet.Apply(context.Background(), "test", &req)
	assert.NoError(err)
	if assert.NotNil(resp) {
		assert.Equal(mbframe.Encode(req), mbframe.Encode(*resp))
	}

	snapshot, err := fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	tl, ok := snapshot.Find(2)
	assert.True(ok)
	assert.Equal(domain.SlaveStatusOffline, tl.Status)
	assert.Equal(domain.DeviceTypeBMS, tl.DeviceType)
}

func TestFleetOutOfRangeReadHasNoResponse(t *testing.T) {

	assert := assert.New(t)

	cfg := testMasterConfig()
	as, fleet := spawnFleet(t, cfg, nil)
	defer as.Shutdown()

	capacity := uint16(cfg.MaxSlaves * register.SLOT_SIZE)
	req := mbframe.NewReadHoldingRegistersRequest(1, 0, capacity-5, 10)
	resp, err := fleet.Apply(context.Background(), "test", &req)
	assert.Nil(resp)
	assert.True(errors.Is(err, register.ErrOutOfRange))

	req = mbframe.NewReadHoldingRegistersRequest(1, 0, 0, mbframe.MaxReadQuantity+1)
	resp, err = fleet.Apply(context.Background(), "test", &req)
	assert.Nil(resp)
	assert.True(errors.Is(err, ErrQuantityExceeded))

	write := mbframe.NewWriteMultipleRegistersRequest(1, 0, capacity-1, []uint16{1, 2})
	resp, err = fleet.Apply(context.Background(), "test", &write)
	assert.Nil(resp)
	assert.True(errors.Is(err, register.ErrOutOfRange))
}

func TestFleetUnsupportedFunctionDropped(t *testing.T) {

	assert := assert.New(t)

	as, fleet := spawnFleet(t, testMasterConfig(), nil)
	defer as.Shutdown()

	frame := &mbframe.Frame{TransactionId: 1, UnitId: 1, FunctionCode: 0x04, Payload: []byte{0, 0, 0, 1}}
	resp, err := fleet.Apply(context.Background(), "test", frame)
	assert.Nil(resp)
	assert.True(errors.Is(err, mbframe.ErrUnsupportedFunction))
	assert.True(fleet.Healthy(context.Background()))
}

func TestFleetIdentityCheck(t *testing.T) {

	assert := assert.New(t)

	cfg := testMasterConfig()
	cfg.IdentityCheck = config.IDENTITY_CHECK_STRICT
	as, fleet := spawnFleet(t, cfg, nil)
	defer as.Shutdown()

	// unit 1 writing into the slot of slave 2
	req := mbframe.NewWriteSingleRegisterRequest(1, 1, uint16(register.SlotBase(2)), 1)
	resp, err := fleet.Apply(context.Background(), "test", &req)
	assert.Nil(resp)
	assert.True(errors.Is(err, ErrIdentityMismatch))

	writeSlot(t, fleet, 2, 1, domain.Telemetry{SlaveId: 1, DeviceType: domain.DeviceTypeSolar, Power: 10, Status: domain.SlaveStatusOnline})
	snapshot, err := fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	assert.Len(snapshot.Telemetry, 1)
}

func TestFleetSetSlavePower(t *testing.T) {

	assert := assert.New(t)

	as, fleet := spawnFleet(t, testMasterConfig(), nil)
	defer as.Shutdown()

	ok, err := fleet.SetSlavePower(context.Background(), 4, false)
	assert.NoError(err)
	assert.False(ok, "unknown slave")

	writeSlot(t, fleet, 1, 4, domain.Telemetry{SlaveId: 4, DeviceType: domain.DeviceTypeWind, Power: 1500, Status: domain.SlaveStatusOnline})

	var mu sync.Mutex
	var received []domain.Snapshot
	unsubscribe := fleet.OnSnapshot(func(s domain.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, s)
	})
	defer unsubscribe()

	ok, err = fleet.SetSlavePower(context.Background(), 4, false)
	assert.NoError(err)
	assert.True(ok)

	assert.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	tl, found := received[0].Find(4)
	mu.Unlock()
	assert.True(found, "slave stays in the telemetry set")
	assert.Equal(domain.SlaveStatusOffline, tl.Status)
	assert.Equal(0.0, tl.Power)

	ok, err = fleet.SetSlavePower(context.Background(), 4, true)
	assert.NoError(err)
	assert.True(ok)
	snapshot, err := fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	tl, _ = snapshot.Find(4)
	assert.Equal(domain.SlaveStatusOnline, tl.Status)
	assert.InDelta(1500.0, tl.Power, 1e-9)
}

func TestFleetSnapshotTriggers(t *testing.T) {

	assert := assert.New(t)

	cfg := testMasterConfig()
	cfg.SnapshotIntervalMillis = 100
	masterMetrics := metrics.NewNopMasterMetrics()
	as, fleet := spawnFleet(t, cfg, masterMetrics)
	defer as.Shutdown()

	// no timer snapshots while no slave is known
	time.Sleep(300 * time.Millisecond)
	assert.Equal(0.0, testutil.ToFloat64(masterMetrics.SnapshotsEmitted.WithLabelValues(SNAPSHOT_TRIGGER_TIMER)))

	count := 0
	var mu sync.Mutex
	unsubscribe := fleet.OnSnapshot(func(domain.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	writeSlot(t, fleet, 1, 1, domain.Telemetry{SlaveId: 1, DeviceType: domain.DeviceTypeSolar, Power: 100, Status: domain.SlaveStatusOnline})
	assert.Equal(1.0, testutil.ToFloat64(masterMetrics.SnapshotsEmitted.WithLabelValues(SNAPSHOT_TRIGGER_WRITE)))

	assert.Eventually(func() bool {
		return testutil.ToFloat64(masterMetrics.SnapshotsEmitted.WithLabelValues(SNAPSHOT_TRIGGER_TIMER)) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	unsubscribe()
	mu.Lock()
	assert.GreaterOrEqual(count, 3)
	mu.Unlock()

	assert.Equal(1.0, testutil.ToFloat64(masterMetrics.KnownSlavesGauge))
	assert.Equal(1.0, testutil.ToFloat64(masterMetrics.OnlineSlavesGauge))
}

func TestFleetConcurrentDisjointWriters(t *testing.T) {

	assert := assert.New(t)

	as, fleet := spawnFleet(t, testMasterConfig(), nil)
	defer as.Shutdown()

	const writers = 8
	const rounds = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		slaveId := w + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				tl := domain.Telemetry{
					SlaveId:        slaveId,
					DeviceType:     domain.DeviceTypeWind,
					Power:          float64(slaveId*1000 + i),
					Status:         domain.SlaveStatusOnline,
					AmbientTemp:    float64(20 + slaveId),
					InternalTemp:   float64(30 + slaveId),
					RuntimeSeconds: uint32(i),
				}
				slot := telemetry.EncodeSlot(tl)
				req := mbframe.NewWriteMultipleRegistersRequest(uint16(i), uint8(slaveId), uint16(register.SlotBase(slaveId)), slot[:])
				resp, err := fleet.Apply(context.Background(), fmt.Sprintf("conn-%d", slaveId), &req)
				assert.NoError(err)
				assert.NotNil(resp)
			}
		}()
	}
	wg.Wait()

	snapshot, err := fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	assert.Len(snapshot.Telemetry, writers)
	total := 0.0
	for slaveId := 1; slaveId <= writers; slaveId++ {
		tl, ok := snapshot.Find(slaveId)
		assert.True(ok)
		assert.InDelta(float64(slaveId*1000+rounds-1), tl.Power, 1e-9)
		assert.InDelta(float64(20+slaveId), tl.AmbientTemp, 1e-9)
		assert.InDelta(float64(30+slaveId), tl.InternalTemp, 1e-9)
		assert.Equal(uint32(rounds-1), tl.RuntimeSeconds)
		total += tl.Power
	}
	assert.InDelta(total, snapshot.Statistics.TotalPower, 1e-6)
	assert.Equal(snapshot.Telemetry[0].SlaveId, 1)
}

func TestFleetProjectsHighestUnitId(t *testing.T) {

	assert := assert.New(t)

	cfg := testMasterConfig()
	cfg.MaxSlaves = config.MAX_SLAVES_LIMIT
	as, fleet := spawnFleet(t, cfg, nil)
	defer as.Shutdown()

	writeSlot(t, fleet, 1, config.MAX_SLAVE_ID, domain.Telemetry{SlaveId: config.MAX_SLAVE_ID, DeviceType: domain.DeviceTypeBMS, Power: 42, Status: domain.SlaveStatusOnline})

	snapshot, err := fleet.GetSnapshot(context.Background())
	require.NoError(t, err)
	tl, ok := snapshot.Find(config.MAX_SLAVE_ID)
	if assert.True(ok) {
		assert.Equal(domain.DeviceTypeBMS, tl.DeviceType)
		assert.InDelta(42.0, tl.Power, 0.1)
	}
}
