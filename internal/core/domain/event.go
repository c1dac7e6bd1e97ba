package domain

import "fmt"

// SensorUpdateEventMixIn carries the id of the sensor or switch an update
// belongs to. Ids are built with SlaveEntityId/SlaveSwitchId or are one of
// the fleet sensor ids.
type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// FloatSensorUpdateEvent is published with Decimals digits, matching the
// fixed-point scale of the register it was decoded from.
type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type IntSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value int64
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// SwitchSensorUpdateEvent mirrors the power state of a slave.
type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
