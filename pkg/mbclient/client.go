package mbclient

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// SlotWriter pushes register runs to a Modbus TCP server.
type SlotWriter interface {
	Open() error
	Close() error
	WriteRegisters(addr uint16, values []uint16) error
}

type ModbusInstrument struct {
	RecordTime func(fnName string, duration time.Duration)
}

type ModbusSlotWriter struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

func CreateModbusSlotWriter(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusSlotWriter, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// instrumentation
	var inst []ModbusInstrument
	if logger != nil {
		inst = append(inst, debugLoggerInstrumentation(logger.With(zap.String("target", "master"), zap.Uint8("unit", unitId))))
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}

	return &ModbusSlotWriter{
		client:     client,
		instrument: inst,
	}, nil
}

func (w *ModbusSlotWriter) Open() error {
	defer RecordTimer("Open", w.instrument)()
	return w.client.Open()
}

func (w *ModbusSlotWriter) Close() error {
	return w.client.Close()
}

func (w *ModbusSlotWriter) WriteRegisters(addr uint16, values []uint16) error {
	defer RecordTimer("WriteRegisters", w.instrument)()
	return w.client.WriteRegisters(addr, values)
}

func debugLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, duration time.Duration) {
			logger.Debug(fmt.Sprintf("modbus [%s]: %d millis", fnName, duration.Milliseconds()))
		},
	}
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
