package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/topics"
)

// Enqueuer is the part of connection.Manager used to announce entities.
// Discovery configs are retained, so queueing them while offline is enough.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload []byte, retained bool) bool
}

// Publisher announces one tracker's entities to Home Assistant
type Publisher struct {
	config config.HomeAssistantConfig
	layout topics.Layout
}

// NewPublisher creates a new discovery publisher
func NewPublisher(cfg config.HomeAssistantConfig, layout topics.Layout) *Publisher {
	return &Publisher{config: cfg, layout: layout}
}

// DiscoveryTopic returns the retained config topic of one entity
func (p *Publisher) DiscoveryTopic(deviceID, key string) string {
	return fmt.Sprintf("%s/sensor/%s_%s/config", p.config.DiscoveryPrefix, deviceID, key)
}

// SensorConfig builds the discovery payload of entity e for deviceID
func (p *Publisher) SensorConfig(deviceID string, e Entity) SensorConfig {
	state := p.layout.DeviceStatusTopic(deviceID)
	value := fmt.Sprintf("{{ value_json.%s }}", e.Field)
	if e.Source == FromTelemetry {
		// The sensors topic is shared by the whole fleet
		state = p.layout.SensorsTopic()
		value = fmt.Sprintf("{%% if value_json.device_id == '%s' %%}{{ value_json.%s }}{%% else %%}{{ this.state }}{%% endif %%}",
			deviceID, e.Field)
	}

	return SensorConfig{
		Name:              e.Name,
		UniqueID:          fmt.Sprintf("%s_%s", deviceID, e.Key),
		StateTopic:        state,
		UnitOfMeasurement: e.Unit,
		DeviceClass:       e.DeviceClass,
		StateClass:        e.StateClass,
		Device: DeviceInfo{
			Name:         deviceID,
			Identifiers:  []string{deviceID},
			Manufacturer: p.config.Manufacturer,
			Model:        p.config.Model,
		},
		ValueTemplate:        value,
		AvailabilityTopic:    p.layout.DeviceStatusTopic(deviceID),
		AvailabilityTemplate: "{{ 'online' if value_json.online else 'offline' }}",
		PayloadAvailable:     "online",
		PayloadNotAvailable:  "offline",
		EntityCategory:       e.EntityCategory,
	}
}

// PublishAllDiscoveries enqueues the discovery config of every tracker
// entity and returns how many were delivered immediately
func (p *Publisher) PublishAllDiscoveries(ctx context.Context, pub Enqueuer, deviceID string) (int, error) {
	delivered := 0
	for _, e := range Entities {
		payload, err := json.Marshal(p.SensorConfig(deviceID, e))
		if err != nil {
			return delivered, fmt.Errorf("error serializing %s configuration: %w", e.Key, err)
		}
		if pub.Enqueue(ctx, p.DiscoveryTopic(deviceID, e.Key), payload, true) {
			delivered++
		}
	}

	if delivered == len(Entities) {
		logger.LogInfo("📡 Published Home Assistant discovery for %s (%d entities)", deviceID, delivered)
	} else {
		logger.LogInfo("📡 Queued Home Assistant discovery for %s (%d of %d sent now)", deviceID, delivered, len(Entities))
	}
	return delivered, nil
}

// SensorConfig configuration for a Home Assistant sensor
type SensorConfig struct {
	Name                 string     `json:"name"`
	UniqueID             string     `json:"unique_id"`
	StateTopic           string     `json:"state_topic"`
	UnitOfMeasurement    string     `json:"unit_of_measurement,omitempty"`
	DeviceClass          string     `json:"device_class,omitempty"`
	StateClass           string     `json:"state_class,omitempty"`
	Device               DeviceInfo `json:"device"`
	ValueTemplate        string     `json:"value_template"`
	AvailabilityTopic    string     `json:"availability_topic"`
	AvailabilityTemplate string     `json:"availability_template,omitempty"`
	PayloadAvailable     string     `json:"payload_available"`
	PayloadNotAvailable  string     `json:"payload_not_available"`
	EntityCategory       string     `json:"entity_category,omitempty"`
}

// DeviceInfo information about the device
type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}
