package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/message"

	"github.com/segmentio/kafka-go"
)

// FaultAlertEvent is the record published to the alert stream
type FaultAlertEvent struct {
	Type      string                `json:"type"`
	DeviceID  string                `json:"device_id"`
	Timestamp float64               `json:"timestamp"`
	Faults    []message.Fault       `json:"faults"`
	Reading   message.SensorReading `json:"reading"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAlertSink forwards fault alerts to a Kafka topic keyed by device id,
// so all alerts of one device land on the same partition in order
type KafkaAlertSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaAlertSink creates a writer for cfg.Topic on cfg.Brokers
func NewKafkaAlertSink(cfg config.KafkaConfig) *KafkaAlertSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaAlertSink{writer: w, topic: cfg.Topic}
}

// PublishAlert writes one event for the faults found in r
func (s *KafkaAlertSink) PublishAlert(ctx context.Context, deviceID string, r message.SensorReading, faults []message.Fault) error {
	value, err := json.Marshal(FaultAlertEvent{
		Type:      message.TypeFaultAlert,
		DeviceID:  deviceID,
		Timestamp: r.Timestamp,
		Faults:    faults,
		Reading:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fault alert: %w", err)
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(deviceID), Value: value}); err != nil {
		return fmt.Errorf("kafka write to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer
func (s *KafkaAlertSink) Close() error {
	return s.writer.Close()
}
