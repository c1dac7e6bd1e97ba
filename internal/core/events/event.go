package events

import (
	. "github.com/berfenger/gridfleet/internal/core/domain"
)

// SnapshotToUpdateEvents maps a snapshot to the sensor updates published for
// the fleet and for every known slave.
func SnapshotToUpdateEvents(s Snapshot) []any {
	var events []any

	events = append(events, StatisticsToUpdateEvents(s.Statistics)...)
	for _, t := range s.Telemetry {
		events = append(events, TelemetryToUpdateEvents(t)...)
	}

	return events
}

func StatisticsToUpdateEvents(st Statistics) []any {
	var events []any

	// Known slaves
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_FLEET_TOTAL_SLAVES,
		},
		Value: int64(st.TotalSlaves),
	})
	// Online slaves
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_FLEET_ONLINE_SLAVES,
		},
		Value: int64(st.OnlineSlaves),
	})
	// Total power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_FLEET_TOTAL_POWER,
		},
		Value:    st.TotalPower,
		Decimals: 2,
	})
	// Average power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_FLEET_AVERAGE_POWER,
		},
		Value:    st.AveragePower,
		Decimals: 2,
	})

	return events
}

func TelemetryToUpdateEvents(t Telemetry) []any {
	var events []any

	online := t.Status == SlaveStatusOnline

	// Power
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveEntityId(t.SlaveId, SENSOR_SUFFIX_POWER),
		},
		Value:    t.Power,
		Decimals: 2,
	})
	// Status
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveEntityId(t.SlaveId, SENSOR_SUFFIX_STATUS),
		},
		Value: online,
	})
	// Power switch mirrors the status
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveSwitchId(t.SlaveId),
		},
		Value: online,
	})
	// Ambient temperature
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveEntityId(t.SlaveId, SENSOR_SUFFIX_AMBIENT_TEMP),
		},
		Value:    t.AmbientTemp,
		Decimals: 1,
	})
	// Internal temperature
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveEntityId(t.SlaveId, SENSOR_SUFFIX_INTERNAL_TEMP),
		},
		Value:    t.InternalTemp,
		Decimals: 1,
	})
	// Runtime
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SlaveEntityId(t.SlaveId, SENSOR_SUFFIX_RUNTIME),
		},
		Value: int64(t.RuntimeSeconds),
	})

	return events
}
