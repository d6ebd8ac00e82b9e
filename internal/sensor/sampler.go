package sensor

import (
	"context"
	"fmt"
	"math"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/message"
)

// Thresholds is the physical range a reading must fall in
type Thresholds struct {
	MaxVoltage     float64
	MaxCurrent     float64
	MinTemperature float64
	MaxTemperature float64
}

// NewThresholds converts the validation configuration
func NewThresholds(cfg config.ValidationConfig) Thresholds {
	return Thresholds{
		MaxVoltage:     cfg.MaxVoltage,
		MaxCurrent:     cfg.MaxCurrent,
		MinTemperature: cfg.MinTemperature,
		MaxTemperature: cfg.MaxTemperature,
	}
}

// Validate rejects NaN values and voltage, current or temperature outside
// their configured range. Bounds are inclusive.
func Validate(raw Raw, th Thresholds) error {
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"voltage", raw.Voltage, 0, th.MaxVoltage},
		{"current", raw.Current, 0, th.MaxCurrent},
		{"temperature", raw.Temperature, th.MinTemperature, th.MaxTemperature},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < c.min || c.value > c.max {
			return errors.NewValidationError(c.field, c.min, c.max, c.value)
		}
	}
	if math.IsNaN(raw.Humidity) || math.IsInf(raw.Humidity, 0) {
		return errors.NewValidationError("humidity", 0, 100, raw.Humidity)
	}
	return nil
}

// Sampler turns raw acquisitions into SensorReadings at a fixed cadence
type Sampler struct {
	source     Source
	thresholds Thresholds
	interval   time.Duration
	deviceID   string
	angle      func() float64
	clock      func() time.Time

	lastRead time.Time
}

// NewSampler creates a sampler. angle reports the current servo position
// and may be nil.
func NewSampler(source Source, th Thresholds, interval time.Duration, deviceID string, angle func() float64) *Sampler {
	if angle == nil {
		angle = func() float64 { return 0 }
	}
	return &Sampler{
		source:     source,
		thresholds: th,
		interval:   interval,
		deviceID:   deviceID,
		angle:      angle,
		clock:      time.Now,
	}
}

// SetClock replaces the time source (for testing)
func (s *Sampler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Snapshot returns a validated reading, errors.ErrNoDataYet while the read
// interval has not elapsed since the last accepted reading, a
// *errors.ValidationError for out-of-range values, or the source error.
// Only an accepted reading restarts the interval.
func (s *Sampler) Snapshot(ctx context.Context) (message.SensorReading, error) {
	now := s.clock()
	if !s.lastRead.IsZero() && now.Sub(s.lastRead) < s.interval {
		return message.SensorReading{}, errors.ErrNoDataYet
	}

	raw, err := s.source.Read(ctx)
	if err != nil {
		return message.SensorReading{}, fmt.Errorf("sensor read: %w", err)
	}
	if err := Validate(raw, s.thresholds); err != nil {
		return message.SensorReading{}, err
	}

	s.lastRead = now
	return message.SensorReading{
		Timestamp:   message.UnixSeconds(now),
		Voltage:     raw.Voltage,
		Current:     raw.Current,
		Power:       raw.Voltage * raw.Current,
		Temperature: raw.Temperature,
		Humidity:    raw.Humidity,
		ServoAngle:  s.angle(),
		DeviceID:    s.deviceID,
	}, nil
}
