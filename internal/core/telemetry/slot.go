package telemetry

import (
	"math"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
	"github.com/berfenger/gridfleet/internal/core/register"
)

// register offsets within a slave slot
const (
	OffsetDeviceType   = 0
	OffsetPowerHigh    = 1
	OffsetPowerLow     = 2
	OffsetStatus       = 3
	OffsetAmbientTemp  = 4
	OffsetInternalTemp = 5
	OffsetRuntimeHigh  = 6
	OffsetRuntimeLow   = 7
)

const (
	powerScale       = 100.0
	temperatureScale = 10.0
)

type Slot [register.SLOT_SIZE]uint16

func SplitUint32(v uint32) (uint16, uint16) {
	return uint16(v >> 16), uint16(v & 0xFFFF)
}

func JoinUint32(high uint16, low uint16) uint32 {
	return uint32(high)<<16 | uint32(low)
}

// DecodeSlot rebuilds the telemetry record of slaveId from its registers.
func DecodeSlot(slaveId int, slot Slot, now time.Time) domain.Telemetry {
	return domain.Telemetry{
		SlaveId:        slaveId,
		DeviceType:     domain.DeviceTypeFromCode(slot[OffsetDeviceType]),
		Power:          decodePower(slot),
		Status:         domain.SlaveStatusFromCode(slot[OffsetStatus]),
		AmbientTemp:    float64(slot[OffsetAmbientTemp]) / temperatureScale,
		InternalTemp:   float64(slot[OffsetInternalTemp]) / temperatureScale,
		RuntimeSeconds: JoinUint32(slot[OffsetRuntimeHigh], slot[OffsetRuntimeLow]),
		LastUpdate:     now,
	}
}

// EncodeSlot is the inverse of DecodeSlot. Reserved registers are left zero.
// Values outside the representable range are clamped.
func EncodeSlot(t domain.Telemetry) Slot {
	var slot Slot
	slot[OffsetDeviceType] = t.DeviceType.Code()
	slot[OffsetPowerHigh], slot[OffsetPowerLow] = SplitUint32(scaleUint32(t.Power, powerScale))
	slot[OffsetStatus] = t.Status.Code()
	slot[OffsetAmbientTemp] = scaleUint16(t.AmbientTemp, temperatureScale)
	slot[OffsetInternalTemp] = scaleUint16(t.InternalTemp, temperatureScale)
	slot[OffsetRuntimeHigh], slot[OffsetRuntimeLow] = SplitUint32(t.RuntimeSeconds)
	return slot
}

func decodePower(slot Slot) float64 {
	return float64(JoinUint32(slot[OffsetPowerHigh], slot[OffsetPowerLow])) / powerScale
}

func scaleUint32(v float64, scale float64) uint32 {
	r := math.Round(v * scale)
	if r <= 0 {
		return 0
	}
	if r >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}

func scaleUint16(v float64, scale float64) uint16 {
	r := math.Round(v * scale)
	if r <= 0 {
		return 0
	}
	if r >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(r)
}
