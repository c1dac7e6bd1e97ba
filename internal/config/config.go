package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	IDENTITY_CHECK_OFF    = "off"
	IDENTITY_CHECK_STRICT = "strict"
	RETRY_POLICY_FIXED    = "fixed"
	RETRY_POLICY_EXP      = "exponential"

	// slave ids travel as the one-byte modbus unit id
	MAX_SLAVE_ID     = 255
	MAX_SLAVES_LIMIT = MAX_SLAVE_ID + 1
)

type Config struct {
	LogLevel zapcore.Level `mapstructure:"-"`
	Log      LogConfig     `mapstructure:"log"`
	Master   MasterConfig  `mapstructure:"master"`
	Slave    SlaveConfig   `mapstructure:"slave"`
	HTTP     HTTPConfig    `mapstructure:"http"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
}

type LogConfig struct {
	Format     string
	File       string
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type MasterConfig struct {
	Host                   string
	ModbusPort             uint    `mapstructure:"modbus_port"`
	MaxSlaves              int     `mapstructure:"max_slaves"`
	SnapshotIntervalMillis uint32  `mapstructure:"snapshot_interval_millis"`
	IdentityCheck          string  `mapstructure:"identity_check"`
	MaxConnections         int     `mapstructure:"max_connections"`
	FrameRateLimit         float64 `mapstructure:"frame_rate_limit"`
	FrameBurst             int     `mapstructure:"frame_burst"`
}

type SlaveConfig struct {
	MasterHost             string `mapstructure:"master_host"`
	MasterPort             uint   `mapstructure:"master_port"`
	SlaveId                int    `mapstructure:"slave_id"`
	DeviceType             string `mapstructure:"device_type"`
	Powered                bool   `mapstructure:"powered"`
	UpdateIntervalMillis   uint32 `mapstructure:"update_interval_millis"`
	FirstReportDelayMillis uint32 `mapstructure:"first_report_delay_millis"`
	ReconnectDelayMillis   uint32 `mapstructure:"reconnect_delay_millis"`
	MaxReconnectDelayMs    uint32 `mapstructure:"max_reconnect_delay_millis"`
	RetryPolicy            string `mapstructure:"retry_policy"`
	DeviceTimeoutMillis    uint32 `mapstructure:"device_timeout_millis"`
}

type HTTPConfig struct {
	Port uint
	Log  bool
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c MasterConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMillis) * time.Millisecond
}

func (c MasterConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ModbusPort)
}

func (c SlaveConfig) MasterAddr() string {
	return fmt.Sprintf("%s:%d", c.MasterHost, c.MasterPort)
}

func (c SlaveConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMillis) * time.Millisecond
}

func (c SlaveConfig) FirstReportDelay() time.Duration {
	return time.Duration(c.FirstReportDelayMillis) * time.Millisecond
}

func (c SlaveConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMillis) * time.Millisecond
}

func (c SlaveConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelayMs) * time.Millisecond
}

func (c SlaveConfig) DeviceTimeout() time.Duration {
	return time.Duration(c.DeviceTimeoutMillis) * time.Millisecond
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
