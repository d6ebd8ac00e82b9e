package storage

import (
	"context"
	"fmt"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/message"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ReadingsMeasurement is the InfluxDB measurement for telemetry history
const ReadingsMeasurement = "pv_tracker_readings"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxWriter records every accepted reading in InfluxDB
type InfluxWriter struct {
	client influxdb2.Client
	api    pointWriter
}

// NewInfluxWriter creates a blocking write client. Call Close when done.
func NewInfluxWriter(cfg config.InfluxConfig) *InfluxWriter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxWriter{client: client, api: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}
}

// Health checks that InfluxDB is reachable and the token is valid
func (w *InfluxWriter) Health(ctx context.Context) error {
	_, err := w.client.Health(ctx)
	return err
}

// Close releases the InfluxDB client
func (w *InfluxWriter) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// ReadingPoint converts a reading to a line protocol point
func ReadingPoint(r message.SensorReading) *write.Point {
	return influxdb2.NewPointWithMeasurement(ReadingsMeasurement).
		AddTag("device_id", r.DeviceID).
		AddField("voltage", r.Voltage).
		AddField("current", r.Current).
		AddField("power", r.Power).
		AddField("temperature", r.Temperature).
		AddField("humidity", r.Humidity).
		AddField("servo_angle", r.ServoAngle).
		SetTime(r.Time())
}

// WriteReading stores one reading
func (w *InfluxWriter) WriteReading(ctx context.Context, r message.SensorReading) error {
	if err := w.api.WritePoint(ctx, ReadingPoint(r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}
