package domain

import (
	"fmt"
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceTypeSolar   DeviceType = "Solar"
	DeviceTypeWind    DeviceType = "Wind"
	DeviceTypeBMS     DeviceType = "BMS"
	DeviceTypeUnknown DeviceType = "Unknown"
)

// device type register codes
const (
	DeviceCodeSolar = 1
	DeviceCodeWind  = 2
	DeviceCodeBMS   = 3
)

func DeviceTypeFromCode(code uint16) DeviceType {
	switch code {
	case DeviceCodeSolar:
		return DeviceTypeSolar
	case DeviceCodeWind:
		return DeviceTypeWind
	case DeviceCodeBMS:
		return DeviceTypeBMS
	default:
		return DeviceTypeUnknown
	}
}

func (d DeviceType) Code() uint16 {
	switch d {
	case DeviceTypeSolar:
		return DeviceCodeSolar
	case DeviceTypeWind:
		return DeviceCodeWind
	case DeviceTypeBMS:
		return DeviceCodeBMS
	default:
		return 0
	}
}

// Unit is the unit of the power figure reported by this device type.
func (d DeviceType) Unit() string {
	if d == DeviceTypeBMS {
		return "%"
	}
	return "kW"
}

func ParseDeviceType(s string) (DeviceType, error) {
	switch strings.ToLower(s) {
	case "solar":
		return DeviceTypeSolar, nil
	case "wind":
		return DeviceTypeWind, nil
	case "bms":
		return DeviceTypeBMS, nil
	default:
		return DeviceTypeUnknown, fmt.Errorf("unknown device type %q", s)
	}
}

type SlaveStatus string

const (
	SlaveStatusOnline  SlaveStatus = "Online"
	SlaveStatusOffline SlaveStatus = "Offline"
)

// status register codes
const (
	StatusCodeOffline = 0
	StatusCodeOnline  = 1
)

func SlaveStatusFromCode(code uint16) SlaveStatus {
	if code == StatusCodeOnline {
		return SlaveStatusOnline
	}
	return SlaveStatusOffline
}

func (s SlaveStatus) Code() uint16 {
	if s == SlaveStatusOnline {
		return StatusCodeOnline
	}
	return StatusCodeOffline
}

type Telemetry struct {
	SlaveId        int         `json:"slaveId"`
	DeviceType     DeviceType  `json:"deviceType"`
	Power          float64     `json:"power"`
	Status         SlaveStatus `json:"status"`
	AmbientTemp    float64     `json:"ambientTemp"`
	InternalTemp   float64     `json:"internalTemp"`
	RuntimeSeconds uint32      `json:"runtimeSeconds"`
	LastUpdate     time.Time   `json:"lastUpdate"`
}

type TypeStatistics struct {
	Count      int     `json:"count"`
	TotalPower float64 `json:"totalPower"`
}

type Statistics struct {
	TotalSlaves   int                           `json:"totalSlaves"`
	OnlineSlaves  int                           `json:"onlineSlaves"`
	OfflineSlaves int                           `json:"offlineSlaves"`
	TotalPower    float64                       `json:"totalPower"`
	AveragePower  float64                       `json:"averagePower"`
	ByType        map[DeviceType]TypeStatistics `json:"byType"`
}

// Snapshot is the combined telemetry set and statistics handed to the
// presentation layer. Telemetry is ordered by slave id.
type Snapshot struct {
	Telemetry  []Telemetry `json:"slaves"`
	Statistics Statistics  `json:"statistics"`
	Timestamp  time.Time   `json:"timestamp"`
}

func (s Snapshot) Find(slaveId int) (Telemetry, bool) {
	for _, t := range s.Telemetry {
		if t.SlaveId == slaveId {
			return t, true
		}
	}
	return Telemetry{}, false
}
