package homeassistant

// Source is the topic an entity reads its state from
type Source int

const (
	// FromTelemetry - the shared sensors topic, filtered by device_id
	FromTelemetry Source = iota
	// FromStatus - the device's retained status topic
	FromStatus
)

// Entity describes one sensor exposed to Home Assistant
type Entity struct {
	Key            string
	Name           string
	Field          string // JSON field in the state payload
	Unit           string
	DeviceClass    string
	StateClass     string
	EntityCategory string
	Source         Source
}

// Entities are announced for every tracker
var Entities = []Entity{
	{Key: "voltage", Name: "Voltage", Field: "voltage", Unit: "V", DeviceClass: "voltage", StateClass: "measurement"},
	{Key: "current", Name: "Current", Field: "current", Unit: "A", DeviceClass: "current", StateClass: "measurement"},
	{Key: "power", Name: "Power", Field: "power", Unit: "W", DeviceClass: "power", StateClass: "measurement"},
	{Key: "temperature", Name: "Temperature", Field: "temperature", Unit: "°C", DeviceClass: "temperature", StateClass: "measurement"},
	{Key: "humidity", Name: "Humidity", Field: "humidity", Unit: "%", DeviceClass: "humidity", StateClass: "measurement"},
	{Key: "servo_angle", Name: "Panel angle", Field: "servo_angle", Unit: "°", StateClass: "measurement", Source: FromStatus},
	{Key: "energy", Name: "Energy today", Field: "energy_wh", Unit: "Wh", DeviceClass: "energy", StateClass: "total_increasing", Source: FromStatus},
	{Key: "mode", Name: "Tracking mode", Field: "mode", EntityCategory: "diagnostic", Source: FromStatus},
	{Key: "status", Name: "Status", Field: "status", EntityCategory: "diagnostic", Source: FromStatus},
}
