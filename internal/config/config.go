package config

import (
	"fmt"
	"os"
	"strings"

	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/logger"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration shared by the
// server, the device agent and the operator console.
type Config struct {
	MQTT       MQTTConfig           `yaml:"mqtt"`
	Topics     TopicsConfig         `yaml:"topics"`
	Device     DeviceConfig         `yaml:"device"`
	Server     ServerConfig         `yaml:"server"`
	Validation ValidationConfig     `yaml:"validation"`
	Faults     FaultThresholds      `yaml:"faults"`
	Storage    StorageConfig        `yaml:"storage"`
	Events     EventsConfig         `yaml:"events"`
	HA         HomeAssistantConfig  `yaml:"homeassistant"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	ClientID   string `yaml:"client_id"`
	RetryDelay int    `yaml:"retry_delay"` // Delay between connection attempts in milliseconds
	KeepAlive  int    `yaml:"keep_alive"`  // Seconds
	Timeout    int    `yaml:"timeout"`     // Upper bound for any blocking broker call, milliseconds
	QoS        byte   `yaml:"qos"`
}

// TopicsConfig names the broker topics. Prefix is joined to every name with "/".
type TopicsConfig struct {
	Prefix   string `yaml:"prefix"`
	Sensors  string `yaml:"sensors"`
	Commands string `yaml:"commands"`
	Status   string `yaml:"status"`
}

// DeviceConfig contains the device agent settings. Intervals are seconds
// unless noted.
type DeviceConfig struct {
	ID                  string `yaml:"id"`
	SensorReadInterval  int    `yaml:"sensor_read_interval"`
	PublishInterval     int    `yaml:"publish_interval"`
	PollInterval        int    `yaml:"poll_interval"` // Milliseconds
	ServoUpdateInterval int    `yaml:"servo_update_interval"`
	StatusInterval      int    `yaml:"status_interval"`
}

// ServerConfig contains the router/orchestrator settings
type ServerConfig struct {
	PollInterval    int     `yaml:"poll_interval"`    // Milliseconds
	PredictInterval int     `yaml:"predict_interval"` // Seconds between forecasts per device
	HTTPPort        int     `yaml:"http_port"`        // 0 disables the HTTP API
	RatedPowerW     float64 `yaml:"rated_power_w"`    // Panel capacity; 0 leaves the forecast model untrained
	GracePeriod     int     `yaml:"grace_period"`     // Seconds of broker errors before reporting offline
}

// ValidationConfig holds the physical range a reading must fall in to be published
type ValidationConfig struct {
	MaxVoltage     float64 `yaml:"max_voltage"`
	MaxCurrent     float64 `yaml:"max_current"`
	MinTemperature float64 `yaml:"min_temperature"`
	MaxTemperature float64 `yaml:"max_temperature"`
}

// FaultThresholds configures the rule-based fault detector
type FaultThresholds struct {
	LowVoltage      float64 `yaml:"low_voltage"`
	HighVoltage     float64 `yaml:"high_voltage"`
	MaxCurrent      float64 `yaml:"max_current"`
	WarnTemperature float64 `yaml:"warn_temperature"`
	MaxTemperature  float64 `yaml:"max_temperature"`
}

// StorageConfig configures the optional server-side stores
type StorageConfig struct {
	Redis  RedisConfig  `yaml:"redis"`
	Influx InfluxConfig `yaml:"influx"`
}

// RedisConfig configures the latest-prediction store
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// InfluxConfig configures the telemetry history sink
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// EventsConfig configures outbound event streams
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the fault alert stream
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HomeAssistantConfig configures MQTT discovery of the device entities
type HomeAssistantConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
}

// LoadConfig loads configuration from configPath or the first default
// location that exists, applies .env overrides and defaults, and validates.
func LoadConfig(configPath string) (*Config, error) {
	paths := []string{
		configPath,
		"/etc/pv-tracker/config.yaml",
		"./config.yaml",
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - Paths are the operator-supplied path or fixed defaults
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if usedPath == "" {
		return nil, fmt.Errorf("cannot read configuration file from any of the locations: %v. Last error: %w", paths, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", usedPath, err)
	}

	logger.LogInfo("✅ Configuration loaded successfully from %s", usedPath)
	return cfg, nil
}

// LoadConfigFromString loads configuration from a YAML string (for testing).
// Environment overrides are applied as in LoadConfig.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	return parse([]byte(yamlContent))
}

func parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	applyEnv(&config)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills every unset field with its documented default
func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "pv_tracker"
	}
	if c.MQTT.RetryDelay == 0 {
		c.MQTT.RetryDelay = 5000
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 60
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = 5000
	}

	if c.Topics.Prefix == "" {
		c.Topics.Prefix = "pv_tracker"
	}
	if c.Topics.Sensors == "" {
		c.Topics.Sensors = "sensors"
	}
	if c.Topics.Commands == "" {
		c.Topics.Commands = "commands"
	}
	if c.Topics.Status == "" {
		c.Topics.Status = "status"
	}

	if c.Device.ID == "" {
		c.Device.ID = "pv_tracker_001"
	}
	if c.Device.SensorReadInterval == 0 {
		c.Device.SensorReadInterval = 5
	}
	if c.Device.PublishInterval == 0 {
		c.Device.PublishInterval = 10
	}
	if c.Device.PollInterval == 0 {
		c.Device.PollInterval = 500
	}
	if c.Device.ServoUpdateInterval == 0 {
		c.Device.ServoUpdateInterval = 60
	}
	if c.Device.StatusInterval == 0 {
		c.Device.StatusInterval = 30
	}

	if c.Server.PollInterval == 0 {
		c.Server.PollInterval = 200
	}
	if c.Server.PredictInterval == 0 {
		c.Server.PredictInterval = 3600
	}
	if c.Server.GracePeriod == 0 {
		c.Server.GracePeriod = 15
	}

	if c.Validation == (ValidationConfig{}) {
		c.Validation = ValidationConfig{
			MaxVoltage:     25,
			MaxCurrent:     5,
			MinTemperature: -10,
			MaxTemperature: 100,
		}
	}
	if c.Faults == (FaultThresholds{}) {
		c.Faults = FaultThresholds{
			LowVoltage:      5,
			HighVoltage:     25,
			MaxCurrent:      3,
			WarnTemperature: 60,
			MaxTemperature:  80,
		}
	}

	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.TTLHours == 0 {
		c.Storage.Redis.TTLHours = 48
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "pv_tracker.fault_alerts"
	}

	if c.HA.DiscoveryPrefix == "" {
		c.HA.DiscoveryPrefix = "homeassistant"
	}
	if c.HA.Manufacturer == "" {
		c.HA.Manufacturer = "DIY"
	}
	if c.HA.Model == "" {
		c.HA.Model = "Single-axis PV tracker"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = logger.LogLevelInfo
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fieldError("mqtt.broker", "is not specified")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fieldError("mqtt.port", "must be between 1 and 65535")
	}
	if c.MQTT.QoS > 2 {
		return fieldError("mqtt.qos", "must be 0, 1 or 2")
	}
	if strings.ContainsAny(c.Device.ID, "/+#") {
		return fieldError("device.id", "must not contain '/', '+' or '#'")
	}
	if c.Device.PublishInterval < 0 || c.Device.SensorReadInterval < 0 {
		return fieldError("device", "intervals must not be negative")
	}
	if c.Server.PredictInterval < 0 {
		return fieldError("server.predict_interval", "must not be negative")
	}
	if c.Server.RatedPowerW < 0 {
		return fieldError("server.rated_power_w", "must not be negative")
	}
	if c.Validation.MaxVoltage <= 0 || c.Validation.MaxCurrent <= 0 {
		return fieldError("validation", "max_voltage and max_current must be positive")
	}
	if c.Validation.MinTemperature >= c.Validation.MaxTemperature {
		return fieldError("validation", "min_temperature must be below max_temperature")
	}
	if c.Faults.WarnTemperature > c.Faults.MaxTemperature {
		return fieldError("faults", "warn_temperature must not exceed max_temperature")
	}
	if c.Storage.Influx.Enabled && (c.Storage.Influx.URL == "" || c.Storage.Influx.Bucket == "") {
		return fieldError("storage.influx", "url and bucket are required when enabled")
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return fieldError("events.kafka.brokers", "at least one broker is required when enabled")
	}
	return nil
}

func fieldError(field, msg string) error {
	return errors.NewConfigError("validate", fmt.Errorf("%s", msg), field)
}
