package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_FLEET_TOTAL_SLAVES  = "fleet_total_slaves"
	SENSOR_ID_FLEET_ONLINE_SLAVES = "fleet_online_slaves"
	SENSOR_ID_FLEET_TOTAL_POWER   = "fleet_total_power"
	SENSOR_ID_FLEET_AVERAGE_POWER = "fleet_average_power"
	SENSOR_SUFFIX_POWER           = "power"
	SENSOR_SUFFIX_STATUS          = "status"
	SENSOR_SUFFIX_AMBIENT_TEMP    = "ambient_temperature"
	SENSOR_SUFFIX_INTERNAL_TEMP   = "internal_temperature"
	SENSOR_SUFFIX_RUNTIME         = "runtime"
	STATE_CLASS_MEASUREMENT       = "measurement"
	STATE_CLASS_TOTAL_INCREASING  = "total_increasing"
	DEVICE_CLASS_BATTERY          = "battery"
	DEVICE_CLASS_POWER            = "power"
	DEVICE_CLASS_TEMPERATURE      = "temperature"
	DEVICE_CLASS_DURATION         = "duration"
	DEVICE_CLASS_CONNECTIVITY     = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC       = "diagnostic"
	SENSOR_TYPE_SENSOR            = "sensor"
	SENSOR_TYPE_BINARY            = "binary_sensor"
)

var slaveSwitchRegexp = regexp.MustCompile(`^slave_([0-9]+)$`)

func SlaveEntityId(slaveId int, suffix string) string {
	return fmt.Sprintf("slave_%d_%s", slaveId, suffix)
}

// SlaveSwitchId is the id of the power switch of a slave.
func SlaveSwitchId(slaveId int) string {
	return fmt.Sprintf("slave_%d", slaveId)
}

// SlaveIdFromSwitch extracts the slave id of a power switch id.
func SlaveIdFromSwitch(switchId string) (int, bool) {
	matches := slaveSwitchRegexp.FindStringSubmatch(switchId)
	if len(matches) != 2 {
		return 0, false
	}
	id, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func FleetDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("gridfleet_master_%s", md5HashShort(baseTopic)),
		Manufacturer: "Gridfleet",
		Model:        "Fleet master",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Gridfleet %s", md5HashShort(baseTopic)),
	}
}

func SlaveDevice(fleet Device, slaveId int, deviceType DeviceType) Device {
	return Device{
		Id:           fmt.Sprintf("%s_slave_%d", fleet.Id, slaveId),
		Manufacturer: "Gridfleet",
		Model:        string(deviceType),
		Name:         fmt.Sprintf("%s slave %d", deviceType, slaveId),
		ViaDevice:    fleet.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func FleetSensors(fleetDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Connection state
	sensors = append(sensors, GenericSensor{
		Device:         fleetDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(fleetDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(fleetDevice),
		Id:         SENSOR_ID_FLEET_TOTAL_SLAVES,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Known slaves",
		StateClass: STATE_CLASS_MEASUREMENT,
		UniqueId:   uniqueId(fleetDevice.Id, SENSOR_ID_FLEET_TOTAL_SLAVES),
		Icon:       "mdi:counter",
	})

	sensors = append(sensors, GenericSensor{
		Device:     IdDevice(fleetDevice),
		Id:         SENSOR_ID_FLEET_ONLINE_SLAVES,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Online slaves",
		StateClass: STATE_CLASS_MEASUREMENT,
		UniqueId:   uniqueId(fleetDevice.Id, SENSOR_ID_FLEET_ONLINE_SLAVES),
		Icon:       "mdi:lan-connect",
	})

	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(fleetDevice),
		Id:                SENSOR_ID_FLEET_TOTAL_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Total power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "kW",
		UniqueId:          uniqueId(fleetDevice.Id, SENSOR_ID_FLEET_TOTAL_POWER),
		DisplayPrecision:  precision(2),
	})

	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(fleetDevice),
		Id:                SENSOR_ID_FLEET_AVERAGE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Average power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "kW",
		UniqueId:          uniqueId(fleetDevice.Id, SENSOR_ID_FLEET_AVERAGE_POWER),
		DisplayPrecision:  precision(2),
	})

	return sensors
}

func SlaveSensors(slaveDevice Device, slaveId int, deviceType DeviceType) []GenericSensor {

	var sensors []GenericSensor

	// power, or state of charge for battery packs
	powerId := SlaveEntityId(slaveId, SENSOR_SUFFIX_POWER)
	power := GenericSensor{
		Device:            slaveDevice,
		Id:                powerId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: deviceType.Unit(),
		UniqueId:          uniqueId(slaveDevice.Id, powerId),
		DisplayPrecision:  precision(2),
	}
	if deviceType == DeviceTypeBMS {
		power.Name = "State of charge"
		power.DeviceClass = DEVICE_CLASS_BATTERY
	}
	sensors = append(sensors, power)

	statusId := SlaveEntityId(slaveId, SENSOR_SUFFIX_STATUS)
	sensors = append(sensors, GenericSensor{
		Device:      IdDevice(slaveDevice),
		Id:          statusId,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Online",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(slaveDevice.Id, statusId),
	})

	ambientId := SlaveEntityId(slaveId, SENSOR_SUFFIX_AMBIENT_TEMP)
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(slaveDevice),
		Id:                ambientId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Ambient temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		UniqueId:          uniqueId(slaveDevice.Id, ambientId),
		DisplayPrecision:  precision(1),
	})

	internalId := SlaveEntityId(slaveId, SENSOR_SUFFIX_INTERNAL_TEMP)
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(slaveDevice),
		Id:                internalId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Internal temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		UniqueId:          uniqueId(slaveDevice.Id, internalId),
		DisplayPrecision:  precision(1),
	})

	runtimeId := SlaveEntityId(slaveId, SENSOR_SUFFIX_RUNTIME)
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(slaveDevice),
		Id:                runtimeId,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Runtime",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_DURATION,
		UnitOfMeasurement: "s",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(slaveDevice.Id, runtimeId),
		EnabledByDefault:  optionalBool(false),
	})

	return sensors
}

func SlavePowerSwitch(slaveDevice Device, slaveId int) GenericSwitch {
	id := SlaveSwitchId(slaveId)
	return GenericSwitch{
		Device:   IdDevice(slaveDevice),
		Id:       id,
		Name:     "Power",
		UniqueId: uniqueId(slaveDevice.Id, id),
		Icon:     "mdi:power",
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
