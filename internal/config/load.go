package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/berfenger/gridfleet/internal/core/domain"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "gridfleet"

// env names accepted for compatibility with existing deployments
var envAliases = map[string]string{
	"MODBUS_PORT":     "GRIDFLEET_MASTER_MODBUS_PORT",
	"PORT":            "GRIDFLEET_HTTP_PORT",
	"MASTER_HOST":     "GRIDFLEET_SLAVE_MASTER_HOST",
	"MASTER_PORT":     "GRIDFLEET_SLAVE_MASTER_PORT",
	"SLAVE_ID":        "GRIDFLEET_SLAVE_SLAVE_ID",
	"DEVICE_TYPE":     "GRIDFLEET_SLAVE_DEVICE_TYPE",
	"UPDATE_INTERVAL": "GRIDFLEET_SLAVE_UPDATE_INTERVAL_MILLIS",
}

// Load reads the configuration from defaults, an optional CONFIG_FILE and the
// environment, then validates it.
func Load() (*Config, error) {
	for alias, key := range envAliases {
		if value := os.Getenv(alias); value != "" && os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	v := viper.New()
	setConfigDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// Validate checks bounds and normalizes topics.
func (cfg *Config) Validate() error {
	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Master.MaxSlaves < 1 || cfg.Master.MaxSlaves > MAX_SLAVES_LIMIT {
		return fmt.Errorf("config param master.max_slaves should be in [1, %d]", MAX_SLAVES_LIMIT)
	}
	if cfg.Master.SnapshotIntervalMillis < 100 {
		return errors.New("config param master.snapshot_interval_millis should be >= 100")
	}
	switch cfg.Master.IdentityCheck {
	case IDENTITY_CHECK_OFF, IDENTITY_CHECK_STRICT:
	default:
		return fmt.Errorf("config param master.identity_check should be %q or %q", IDENTITY_CHECK_OFF, IDENTITY_CHECK_STRICT)
	}
	if cfg.Master.FrameRateLimit < 0 {
		return errors.New("config param master.frame_rate_limit should be >= 0")
	}
	if cfg.Slave.SlaveId < 0 || cfg.Slave.SlaveId > MAX_SLAVE_ID {
		return fmt.Errorf("config param slave.slave_id should be in [0, %d]", MAX_SLAVE_ID)
	}
	if _, err := domain.ParseDeviceType(cfg.Slave.DeviceType); err != nil {
		return fmt.Errorf("config param slave.device_type: %w", err)
	}
	if cfg.Slave.UpdateIntervalMillis < 100 {
		return errors.New("config param slave.update_interval_millis should be >= 100")
	}
	if cfg.Slave.ReconnectDelayMillis < 100 {
		return errors.New("config param slave.reconnect_delay_millis should be >= 100")
	}
	if cfg.Slave.DeviceTimeoutMillis < 100 {
		return errors.New("config param slave.device_timeout_millis should be >= 100")
	}
	switch cfg.Slave.RetryPolicy {
	case RETRY_POLICY_FIXED, RETRY_POLICY_EXP:
	default:
		return fmt.Errorf("config param slave.retry_policy should be %q or %q", RETRY_POLICY_FIXED, RETRY_POLICY_EXP)
	}
	return nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("master.host", "")
	v.SetDefault("master.modbus_port", 5020)
	v.SetDefault("master.max_slaves", 100)
	v.SetDefault("master.snapshot_interval_millis", 1000)
	v.SetDefault("master.identity_check", IDENTITY_CHECK_OFF)
	v.SetDefault("master.max_connections", 0)
	v.SetDefault("master.frame_rate_limit", 0)
	v.SetDefault("master.frame_burst", 20)
	v.SetDefault("slave.master_host", "localhost")
	v.SetDefault("slave.master_port", 5020)
	v.SetDefault("slave.slave_id", 1)
	v.SetDefault("slave.device_type", "solar")
	v.SetDefault("slave.powered", true)
	v.SetDefault("slave.update_interval_millis", 5000)
	v.SetDefault("slave.first_report_delay_millis", 1000)
	v.SetDefault("slave.reconnect_delay_millis", 5000)
	v.SetDefault("slave.max_reconnect_delay_millis", 60000)
	v.SetDefault("slave.retry_policy", RETRY_POLICY_FIXED)
	v.SetDefault("slave.device_timeout_millis", 5000)
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.log", false)
	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "gridfleet")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

func SafePrintConfig(cfg Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
