package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestSplitJoinUint32(t *testing.T) {

	assert := assert.New(t)

	values := []uint32{0, 1, 0xFFFF, 0x10000, 123456, 0xDEADBEEF, math.MaxUint32}
	for _, v := range values {
		high, low := SplitUint32(v)
		assert.Equal(uint16(v>>16), high)
		assert.Equal(uint16(v&0xFFFF), low)
		assert.Equal(v, JoinUint32(high, low))
	}

	for v := uint64(0); v <= math.MaxUint32; v += 65521 {
		high, low := SplitUint32(uint32(v))
		assert.Equal(uint32(v), JoinUint32(high, low))
	}
}

func TestDecodeSlot(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	slot := Slot{1, 1, 57920, 1, 253, 450}
	tl := DecodeSlot(5, slot, now)

	assert.Equal(5, tl.SlaveId)
	assert.Equal(domain.DeviceTypeSolar, tl.DeviceType)
	assert.InDelta(1234.56, tl.Power, 1e-9)
	assert.Equal(domain.SlaveStatusOnline, tl.Status)
	assert.InDelta(25.3, tl.AmbientTemp, 1e-9)
	assert.InDelta(45.0, tl.InternalTemp, 1e-9)
	assert.Equal(uint32(0), tl.RuntimeSeconds)
	assert.Equal(now, tl.LastUpdate)
}

func TestDecodeSlotUnknownCodes(t *testing.T) {

	assert := assert.New(t)

	tl := DecodeSlot(0, Slot{9, 0, 0, 7}, time.Now())

	assert.Equal(domain.DeviceTypeUnknown, tl.DeviceType)
	assert.Equal(domain.SlaveStatusOffline, tl.Status)
}

func TestEncodeSlot(t *testing.T) {

	assert := assert.New(t)

	slot := EncodeSlot(domain.Telemetry{
		DeviceType:     domain.DeviceTypeSolar,
		Power:          1234.56,
		Status:         domain.SlaveStatusOnline,
		AmbientTemp:    25.3,
		InternalTemp:   45.0,
		RuntimeSeconds: 70000,
	})

	assert.Equal(Slot{1, 1, 57920, 1, 253, 450, 1, 4464}, slot)
	for i := 8; i < len(slot); i++ {
		assert.Equal(uint16(0), slot[i], "reserved register %d", i)
	}
}

func TestEncodeDecodeSlot(t *testing.T) {

	assert := assert.New(t)

	in := domain.Telemetry{
		SlaveId:        3,
		DeviceType:     domain.DeviceTypeWind,
		Power:          1999.99,
		Status:         domain.SlaveStatusOnline,
		AmbientTemp:    39.9,
		InternalTemp:   20.1,
		RuntimeSeconds: 86400,
	}
	out := DecodeSlot(3, EncodeSlot(in), in.LastUpdate)

	assert.Equal(in.DeviceType, out.DeviceType)
	assert.InDelta(in.Power, out.Power, 1e-9)
	assert.Equal(in.Status, out.Status)
	assert.InDelta(in.AmbientTemp, out.AmbientTemp, 1e-9)
	assert.InDelta(in.InternalTemp, out.InternalTemp, 1e-9)
	assert.Equal(in.RuntimeSeconds, out.RuntimeSeconds)
}

func TestEncodeSlotClamps(t *testing.T) {

	assert := assert.New(t)

	slot := EncodeSlot(domain.Telemetry{Power: -10, AmbientTemp: -5, InternalTemp: 1e6})

	assert.Equal(uint16(0), slot[OffsetPowerHigh])
	assert.Equal(uint16(0), slot[OffsetPowerLow])
	assert.Equal(uint16(0), slot[OffsetAmbientTemp])
	assert.Equal(uint16(math.MaxUint16), slot[OffsetInternalTemp])
}
