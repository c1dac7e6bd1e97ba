package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, duration, total_increasing
	DeviceClass       string // power, temperature, duration, connectivity
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
	// DisplayPrecision is the number of decimals shown by Home Assistant,
	// nil for integer sensors.
	DisplayPrecision *int
}

// GenericSwitch is a command entity. Its state is published from telemetry,
// never from the command itself.
type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

func precision(decimals int) *int {
	return &decimals
}
