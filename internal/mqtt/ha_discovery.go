package mqtt

import (
	"fmt"

	"github.com/berfenger/gridfleet/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	DisplayPrecision  *int              `json:"suggested_display_precision,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySensorTopic(prefix string, sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func HADiscoverySwitchTopic(prefix string, sensor domain.GenericSwitch) string {
	return fmt.Sprintf("%s/switch/%s/%s/config", prefix, sensor.Device.Id, sensor.Id)
}

func GenericSensorToHADiscoveryMessage(topics Topics, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = topics.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = topics.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = topics.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           topics.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		DisplayPrecision:  sensor.DisplayPrecision,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericSwitchToHADiscoveryMessage(topics Topics, _switch domain.GenericSwitch) HADiscoveryConfig {
	dev := device(_switch.Device)
	disConfig := HADiscoveryConfig{
		Device:       dev,
		StateTopic:   topics.SwitchStateTopic(_switch.Id),
		CommandTopic: topics.SwitchCommandTopic(_switch.Id),
		AvTopic:      topics.BridgeStateTopic(),
		Name:         _switch.Name,
		UniqueId:     _switch.UniqueId,
		Icon:         _switch.Icon,
		Platform:     "mqtt",
		PayloadOn:    MQTT_PAYLOAD_ON,
		PayloadOff:   MQTT_PAYLOAD_OFF,
	}
	return disConfig
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
