package util

import (
	"github.com/berfenger/gridfleet/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Master: config.MasterConfig{
			Host:                   "127.0.0.1",
			ModbusPort:             0,
			MaxSlaves:              10,
			SnapshotIntervalMillis: 1000,
			IdentityCheck:          config.IDENTITY_CHECK_OFF,
		},
		Slave: config.SlaveConfig{
			MasterHost:             "127.0.0.1",
			MasterPort:             5020,
			SlaveId:                1,
			DeviceType:             "solar",
			Powered:                true,
			UpdateIntervalMillis:   200,
			FirstReportDelayMillis: 100,
			ReconnectDelayMillis:   200,
			RetryPolicy:            config.RETRY_POLICY_FIXED,
			DeviceTimeoutMillis:    1000,
		},
		MQTT: config.MQTTConfig{
			Enable:            true,
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "gridfleet",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		HTTP: config.HTTPConfig{
			Port: 8080,
		},
	}
}
