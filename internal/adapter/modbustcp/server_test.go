package modbustcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/berfenger/gridfleet/internal/config"
	coreactor "github.com/berfenger/gridfleet/internal/core/actor"
	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
	"github.com/berfenger/gridfleet/internal/core/telemetry"
	"github.com/berfenger/gridfleet/internal/metrics"
	"github.com/berfenger/gridfleet/pkg/mbframe"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testMaster struct {
	system  *actor.ActorSystem
	fleet   *coreactor.FleetClient
	server  *Server
	metrics *metrics.MasterMetrics
	port    int
}

func startTestMaster(t *testing.T, cfg config.MasterConfig) *testMaster {
	logger := zap.Must(zap.NewDevelopment())
	as := actor.NewActorSystem()
	stream := &eventstream.EventStream{}
	masterMetrics := metrics.NewNopMasterMetrics()

	pid, err := as.Root.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewFleetActor(cfg, stream, masterMetrics, logger)
	}), domain.ACTOR_ID_FLEET)
	require.NoError(t, err)
	fleet := coreactor.NewFleetClient(as.Root, pid, stream)

	server := New(cfg, fleet, masterMetrics, logger)
	require.NoError(t, server.Start())

	m := &testMaster{
		system:  as,
		fleet:   fleet,
		server:  server,
		metrics: masterMetrics,
		port:    server.Addr().(*net.TCPAddr).Port,
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))
		as.Shutdown()
	})
	return m
}

func testConfig() config.MasterConfig {
	return config.MasterConfig{
		Host:      "127.0.0.1",
		MaxSlaves: 10,
	}
}

func newModbusClient(t *testing.T, port int, unitId uint8) *modbus.ModbusClient {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://127.0.0.1:%d", port),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, client.SetUnitId(unitId))
	require.NoError(t, client.Open())
	t.Cleanup(func() { client.Close() })
	return client
}

func readResponse(t *testing.T, conn net.Conn) *mbframe.Frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	header := make([]byte, 6)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)
	rest := make([]byte, int(header[4])<<8|int(header[5]))
	_, err = io.ReadFull(conn, rest)
	require.NoError(t, err)
	frame, err := mbframe.Decode(append(header, rest...))
	require.NoError(t, err)
	return frame
}

func TestServerWriteAndReadBack(t *testing.T) {

	assert := assert.New(t)

	m := startTestMaster(t, testConfig())
	client := newModbusClient(t, m.port, 5)

	tl := domain.Telemetry{
		SlaveId:        5,
		DeviceType:     domain.DeviceTypeSolar,
		Power:          1234.56,
		Status:         domain.SlaveStatusOnline,
		AmbientTemp:    25.3,
		InternalTemp:   45.0,
		RuntimeSeconds: 42,
	}
	slot := telemetry.EncodeSlot(tl)
	assert.NoError(client.WriteRegisters(uint16(register.SlotBase(5)), slot[:]))

	values, err := client.ReadRegisters(uint16(register.SlotBase(5)), register.SLOT_SIZE, modbus.HOLDING_REGISTER)
	assert.NoError(err)
	assert.Equal(slot[:], values)

	snapshot, err := m.fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	got, ok := snapshot.Find(5)
	assert.True(ok)
	assert.InDelta(1234.56, got.Power, 1e-9)
	assert.Equal(uint32(42), got.RuntimeSeconds)

	assert.NoError(client.WriteRegister(uint16(register.SlotBase(5)+telemetry.OffsetStatus), 0))
	snapshot, err = m.fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	got, _ = snapshot.Find(5)
	assert.Equal(domain.SlaveStatusOffline, got.Status)

	assert.Equal(1.0, testutil.ToFloat64(m.metrics.TCPAccepted))
	assert.Equal(1.0, testutil.ToFloat64(m.metrics.FrameTotal.WithLabelValues("write_multiple_registers", FRAME_RESULT_OK)))
}

func TestServerOutOfRangeReadHasNoResponse(t *testing.T) {

	assert := assert.New(t)

	cfg := testConfig()
	m := startTestMaster(t, cfg)

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	capacity := uint16(cfg.MaxSlaves * register.SLOT_SIZE)
	bad := mbframe.NewReadHoldingRegistersRequest(1, 0, capacity-5, 10)
	good := mbframe.NewReadHoldingRegistersRequest(2, 0, 0, 2)
	_, err = conn.Write(mbframe.Encode(bad))
	require.NoError(t, err)
	_, err = conn.Write(mbframe.Encode(good))
	require.NoError(t, err)

	resp := readResponse(t, conn)
	assert.Equal(uint16(2), resp.TransactionId)
	values, err := resp.ReadValues()
	assert.NoError(err)
	assert.Equal([]uint16{0, 0}, values)

	assert.Equal(1.0, testutil.ToFloat64(m.metrics.FrameTotal.WithLabelValues("read_holding_registers", FRAME_RESULT_REJECTED)))
}

func TestServerCoalescedAndFragmentedFrames(t *testing.T) {

	assert := assert.New(t)

	m := startTestMaster(t, testConfig())

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	w1 := mbframe.NewWriteSingleRegisterRequest(10, 1, 20, 1)
	w2 := mbframe.NewWriteSingleRegisterRequest(11, 1, 23, 1)
	stream := append(mbframe.Encode(w1), mbframe.Encode(w2)...)

	// one frame and a half, then the rest
	split := len(mbframe.Encode(w1)) + 3
	_, err = conn.Write(stream[:split])
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = conn.Write(stream[split:])
	require.NoError(t, err)

	assert.Equal(uint16(10), readResponse(t, conn).TransactionId)
	assert.Equal(uint16(11), readResponse(t, conn).TransactionId)

	snapshot, err := m.fleet.GetSnapshot(context.Background())
	assert.NoError(err)
	tl, ok := snapshot.Find(1)
	assert.True(ok)
	assert.Equal(domain.DeviceTypeSolar, tl.DeviceType)
	assert.Equal(domain.SlaveStatusOnline, tl.Status)
}

func TestServerSurvivesBadFrames(t *testing.T) {

	assert := assert.New(t)

	m := startTestMaster(t, testConfig())

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// unsupported function code
	unsupported := mbframe.Encode(mbframe.Frame{TransactionId: 1, UnitId: 1, FunctionCode: 0x04, Payload: []byte{0, 0, 0, 1}})
	// declared quantity does not match the carried bytes
	malformed := []byte{0, 2, 0, 0, 0, 8, 1, 0x10, 0, 0, 0, 2, 4, 0}
	good := mbframe.NewReadHoldingRegistersRequest(3, 1, 0, 1)

	_, err = conn.Write(append(append(unsupported, malformed...), mbframe.Encode(good)...))
	require.NoError(t, err)

	assert.Equal(uint16(3), readResponse(t, conn).TransactionId)
	assert.Equal(1.0, testutil.ToFloat64(m.metrics.FrameTotal.WithLabelValues("unknown", FRAME_RESULT_UNSUPPORTED)))
}

func TestServerBindFailure(t *testing.T) {

	assert := assert.New(t)

	m := startTestMaster(t, testConfig())

	cfg := testConfig()
	cfg.ModbusPort = uint(m.port)
	second := New(cfg, m.fleet, nil, zap.NewNop())
	assert.Error(second.Start())
}

func TestServerConnectionLimit(t *testing.T) {

	assert := assert.New(t)

	cfg := testConfig()
	cfg.MaxConnections = 1
	m := startTestMaster(t, cfg)

	first := newModbusClient(t, m.port, 1)
	_, err := first.ReadRegisters(0, 1, modbus.HOLDING_REGISTER)
	assert.NoError(err)

	conn, err := net.Dial("tcp", m.server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(err, io.EOF)

	assert.Eventually(func() bool {
		return testutil.ToFloat64(m.metrics.TCPRejected) == 1
	}, time.Second, 10*time.Millisecond)
}
