package service

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/berfenger/gridfleet/internal/core/domain"
)

// temperature walk bounds, in °C
const (
	AMBIENT_TEMP_MIN    = 15.0
	AMBIENT_TEMP_MAX    = 40.0
	AMBIENT_TEMP_STEP   = 0.5
	AMBIENT_TEMP_START  = 25.0
	INTERNAL_TEMP_MIN   = 20.0
	INTERNAL_TEMP_MAX   = 60.0
	INTERNAL_TEMP_STEP  = 1.0
	INTERNAL_TEMP_START = 35.0
)

// TelemetrySynthesizer produces the readings a slave reports on each tick.
// Temperatures follow a bounded random walk across calls.
type TelemetrySynthesizer struct {
	SlaveId      int
	DeviceType   domain.DeviceType
	Started      time.Time
	ambientTemp  float64
	internalTemp float64
	rand         *rand.Rand
	now          func() time.Time
}

func NewTelemetrySynthesizer(slaveId int, deviceType domain.DeviceType, started time.Time, src rand.Source) *TelemetrySynthesizer {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), uint64(slaveId))
	}
	return &TelemetrySynthesizer{
		SlaveId:      slaveId,
		DeviceType:   deviceType,
		Started:      started,
		ambientTemp:  AMBIENT_TEMP_START,
		internalTemp: INTERNAL_TEMP_START,
		rand:         rand.New(src),
		now:          time.Now,
	}
}

// MaxPower is the exclusive upper bound of the power figure of a device type.
func MaxPower(deviceType domain.DeviceType) float64 {
	switch deviceType {
	case domain.DeviceTypeWind:
		return 2000
	case domain.DeviceTypeBMS:
		return 100
	default:
		return 1000
	}
}

// Next advances the walk and returns the reading to report. An unpowered
// device reports zero power, zero runtime and Offline.
func (s *TelemetrySynthesizer) Next(powered bool) domain.Telemetry {
	now := s.now()
	s.ambientTemp = walk(s.ambientTemp, s.uniform(AMBIENT_TEMP_STEP), AMBIENT_TEMP_MIN, AMBIENT_TEMP_MAX)
	s.internalTemp = walk(s.internalTemp, s.uniform(INTERNAL_TEMP_STEP), INTERNAL_TEMP_MIN, INTERNAL_TEMP_MAX)

	t := domain.Telemetry{
		SlaveId:      s.SlaveId,
		DeviceType:   s.DeviceType,
		AmbientTemp:  s.ambientTemp,
		InternalTemp: s.internalTemp,
		LastUpdate:   now,
	}
	if !powered {
		t.Status = domain.SlaveStatusOffline
		return t
	}
	t.Status = domain.SlaveStatusOnline
	t.Power = s.rand.Float64() * MaxPower(s.DeviceType)
	runtime := now.Sub(s.Started).Seconds()
	if runtime > 0 {
		t.RuntimeSeconds = uint32(math.Min(runtime, math.MaxUint32))
	}
	return t
}

// uniform returns a value in [-step, step].
func (s *TelemetrySynthesizer) uniform(step float64) float64 {
	return (s.rand.Float64()*2 - 1) * step
}

func walk(value, delta, min, max float64) float64 {
	return math.Max(min, math.Min(max, value+delta))
}
