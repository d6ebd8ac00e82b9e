package config

import (
	"fmt"
	"time"
)

// BrokerURL returns the broker address in paho form
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
}

// RetryDelayDuration returns the minimum time between connection attempts
func (m MQTTConfig) RetryDelayDuration() time.Duration {
	return time.Duration(m.RetryDelay) * time.Millisecond
}

// TimeoutDuration returns the bound applied to every blocking broker call
func (m MQTTConfig) TimeoutDuration() time.Duration {
	return time.Duration(m.Timeout) * time.Millisecond
}

// KeepAliveDuration returns the MQTT keep-alive period
func (m MQTTConfig) KeepAliveDuration() time.Duration {
	return time.Duration(m.KeepAlive) * time.Second
}

// DeviceSettings contains only the timing the device agent needs
type DeviceSettings struct {
	ID                  string
	SensorReadInterval  time.Duration
	PublishInterval     time.Duration
	PollInterval        time.Duration
	ServoUpdateInterval time.Duration
	StatusInterval      time.Duration
	RetryDelay          time.Duration
}

// NewDeviceSettings extracts device settings from full config
func NewDeviceSettings(cfg *Config) DeviceSettings {
	return DeviceSettings{
		ID:                  cfg.Device.ID,
		SensorReadInterval:  time.Duration(cfg.Device.SensorReadInterval) * time.Second,
		PublishInterval:     time.Duration(cfg.Device.PublishInterval) * time.Second,
		PollInterval:        time.Duration(cfg.Device.PollInterval) * time.Millisecond,
		ServoUpdateInterval: time.Duration(cfg.Device.ServoUpdateInterval) * time.Second,
		StatusInterval:      time.Duration(cfg.Device.StatusInterval) * time.Second,
		RetryDelay:          cfg.MQTT.RetryDelayDuration(),
	}
}

// ServerSettings contains only the timing the server loop needs
type ServerSettings struct {
	PollInterval    time.Duration
	PredictInterval time.Duration
	RetryDelay      time.Duration
	GracePeriod     time.Duration
	HTTPPort        int
}

// NewServerSettings extracts server settings from full config
func NewServerSettings(cfg *Config) ServerSettings {
	return ServerSettings{
		PollInterval:    time.Duration(cfg.Server.PollInterval) * time.Millisecond,
		PredictInterval: time.Duration(cfg.Server.PredictInterval) * time.Second,
		RetryDelay:      cfg.MQTT.RetryDelayDuration(),
		GracePeriod:     time.Duration(cfg.Server.GracePeriod) * time.Second,
		HTTPPort:        cfg.Server.HTTPPort,
	}
}
