package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pv-tracker-bridge/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
mqtt:
  broker: broker.local
`

func TestLoadConfigFromStringAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfigFromString(minimalYAML)
	require.NoError(t, err)

	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "pv_tracker", cfg.Topics.Prefix)
	assert.Equal(t, "sensors", cfg.Topics.Sensors)
	assert.Equal(t, "pv_tracker_001", cfg.Device.ID)
	assert.Equal(t, 5, cfg.Device.SensorReadInterval)
	assert.Equal(t, 10, cfg.Device.PublishInterval)
	assert.Equal(t, 3600, cfg.Server.PredictInterval)
	assert.Equal(t, ValidationConfig{MaxVoltage: 25, MaxCurrent: 5, MinTemperature: -10, MaxTemperature: 100}, cfg.Validation)
	assert.Equal(t, 3.0, cfg.Faults.MaxCurrent)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.BrokerURL())
	assert.Equal(t, 5*time.Second, cfg.MQTT.TimeoutDuration())
	assert.False(t, cfg.HA.Enabled)
	assert.Equal(t, "homeassistant", cfg.HA.DiscoveryPrefix)
}

func TestLoadConfigFromStringKeepsExplicitValues(t *testing.T) {
	cfg, err := LoadConfigFromString(`
mqtt:
  broker: 10.0.0.2
  port: 8883
  qos: 1
topics:
  prefix: farm
server:
  predict_interval: 600
  rated_power_w: 250
validation:
  max_voltage: 30
  max_current: 8
  min_temperature: -20
  max_temperature: 90
`)
	require.NoError(t, err)

	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "farm", cfg.Topics.Prefix)
	assert.Equal(t, 250.0, cfg.Server.RatedPowerW)
	assert.Equal(t, 30.0, cfg.Validation.MaxVoltage)
	assert.Equal(t, 10*time.Minute, NewServerSettings(cfg).PredictInterval)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing broker", "mqtt: {port: 1883}", "mqtt.broker"},
		{"wildcard device id", "mqtt: {broker: b}\ndevice: {id: 'pv/+'}", "device.id"},
		{"bad qos", "mqtt: {broker: b, qos: 3}", "mqtt.qos"},
		{"inverted temperatures", "mqtt: {broker: b}\nvalidation: {max_voltage: 25, max_current: 5, min_temperature: 50, max_temperature: 10}", "validation"},
		{"kafka without brokers", "mqtt: {broker: b}\nevents: {kafka: {enabled: true}}", "events.kafka.brokers"},
		{"influx without url", "mqtt: {broker: b}\nstorage: {influx: {enabled: true}}", "storage.influx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromString(tt.yaml)
			require.Error(t, err)

			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.False(t, errors.IsRecoverable(err))
		})
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("MQTT_USERNAME", "tracker")
	t.Setenv("MQTT_PASSWORD", "s3cret")
	t.Setenv("DEVICE_ID", "pv_tracker_042")

	cfg, err := LoadConfigFromString(minimalYAML)
	require.NoError(t, err)

	assert.Equal(t, "tracker", cfg.MQTT.Username)
	assert.Equal(t, "s3cret", cfg.MQTT.Password)
	assert.Equal(t, "pv_tracker_042", cfg.Device.ID)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INFLUX_TOKEN=abc123\n"), 0600))
	t.Setenv("INFLUX_TOKEN", "")
	os.Unsetenv("INFLUX_TOKEN")

	LoadEnvFile(path)
	cfg, err := LoadConfigFromString(minimalYAML)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Storage.Influx.Token)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "broker.local", cfg.MQTT.Broker)
}
