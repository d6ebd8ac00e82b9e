package topics

import (
	"fmt"
	"strings"

	"pv-tracker-bridge/internal/config"
)

// Layout builds every broker topic from the configured names.
// Pattern: {prefix}/{name}[/{device_id}], or {name}[/{device_id}] with no prefix.
type Layout struct {
	Prefix   string
	Sensors  string
	Commands string
	Status   string
}

// NewLayout builds a layout from the topics configuration
func NewLayout(cfg config.TopicsConfig) Layout {
	return Layout{
		Prefix:   cfg.Prefix,
		Sensors:  cfg.Sensors,
		Commands: cfg.Commands,
		Status:   cfg.Status,
	}
}

func (l Layout) join(parts ...string) string {
	if l.Prefix != "" {
		parts = append([]string{l.Prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// SensorsTopic is the shared telemetry topic every device publishes to.
// Pattern: {prefix}/sensors
func (l Layout) SensorsTopic() string {
	return l.join(l.Sensors)
}

// CommandsTopic is the fleet-wide command topic.
// Pattern: {prefix}/commands
func (l Layout) CommandsTopic() string {
	return l.join(l.Commands)
}

// DeviceCommandsTopic addresses one device by topic suffix.
// Pattern: {prefix}/commands/{device_id}
func (l Layout) DeviceCommandsTopic(deviceID string) string {
	return l.join(l.Commands, deviceID)
}

// DeviceStatusTopic carries a device's status report and last will.
// Pattern: {prefix}/status/{device_id}
func (l Layout) DeviceStatusTopic(deviceID string) string {
	return l.join(l.Status, deviceID)
}

// StatusWildcard matches every device status topic.
// Pattern: {prefix}/status/+
func (l Layout) StatusWildcard() string {
	return l.join(l.Status, "+")
}

// ValidDeviceID reports whether id can be used as a topic level.
// Empty ids, separators and wildcards are rejected.
func ValidDeviceID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/+#")
}

// DeviceFromStatusTopic extracts the device id from a status topic
func (l Layout) DeviceFromStatusTopic(topic string) (string, bool) {
	return l.suffix(l.Status, topic)
}

// DeviceFromCommandsTopic extracts the device id from an addressed command topic
func (l Layout) DeviceFromCommandsTopic(topic string) (string, bool) {
	return l.suffix(l.Commands, topic)
}

func (l Layout) suffix(name, topic string) (string, bool) {
	base := l.join(name) + "/"
	if !strings.HasPrefix(topic, base) {
		return "", false
	}
	id := strings.TrimPrefix(topic, base)
	if !ValidDeviceID(id) {
		return "", false
	}
	return id, true
}

// Describe returns a one-line summary for startup logs
func (l Layout) Describe() string {
	return fmt.Sprintf("sensors=%s commands=%s status=%s",
		l.SensorsTopic(), l.DeviceCommandsTopic("{device_id}"), l.DeviceStatusTopic("{device_id}"))
}
