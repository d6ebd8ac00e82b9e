package config

import (
	"os"

	"pv-tracker-bridge/internal/logger"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path (".env" when empty) into the
// process environment. A missing file is not an error.
func LoadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		logger.LogDebug("No env file loaded from %s: %v", path, err)
	}
}

// applyEnv overrides secrets and deployment-specific fields from the environment
func applyEnv(c *Config) {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("DEVICE_ID"); v != "" {
		c.Device.ID = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		c.Storage.Influx.Token = v
	}
}
