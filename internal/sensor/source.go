package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Raw is an unvalidated sensor acquisition
type Raw struct {
	Voltage     float64
	Current     float64
	Temperature float64
	Humidity    float64
}

// Source acquires raw values from the power and environment sensors
type Source interface {
	Read(ctx context.Context) (Raw, error)
}

// Calibrator applies calibration parameters received from the operator
type Calibrator interface {
	Calibrate(params map[string]float64) error
}

// Calibration parameter names understood by SimulatedSource
const (
	ParamVoltageOffset     = "voltage_offset"
	ParamVoltageScale      = "voltage_scale"
	ParamCurrentOffset     = "current_offset"
	ParamCurrentScale      = "current_scale"
	ParamTemperatureOffset = "temperature_offset"
)

// SimulatedSource produces plausible panel readings following a daylight
// curve between 06:00 and 18:00 local time, with uniform noise.
type SimulatedSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock func() time.Time
	cal   map[string]float64
}

// NewSimulatedSource creates a simulated source. clock may be nil.
func NewSimulatedSource(seed int64, clock func() time.Time) *SimulatedSource {
	if clock == nil {
		clock = time.Now
	}
	return &SimulatedSource{
		rng:   rand.New(rand.NewSource(seed)),
		clock: clock,
		cal: map[string]float64{
			ParamVoltageScale: 1,
			ParamCurrentScale: 1,
		},
	}
}

// Read implements Source
func (s *SimulatedSource) Read(ctx context.Context) (Raw, error) {
	if err := ctx.Err(); err != nil {
		return Raw{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sun := Daylight(s.clock())
	raw := Raw{
		Voltage:     12 + 6*sun + s.noise(0.3),
		Current:     math.Max(0, 2.5*sun+s.noise(0.05)),
		Temperature: 18 + 14*sun + s.noise(0.5),
		Humidity:    65 - 25*sun + s.noise(2),
	}

	raw.Voltage = raw.Voltage*s.cal[ParamVoltageScale] + s.cal[ParamVoltageOffset]
	raw.Current = raw.Current*s.cal[ParamCurrentScale] + s.cal[ParamCurrentOffset]
	raw.Temperature += s.cal[ParamTemperatureOffset]
	return raw, nil
}

// Calibrate implements Calibrator. Unknown parameter names are rejected as a
// whole; known ones replace the previous value.
func (s *SimulatedSource) Calibrate(params map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, v := range params {
		switch name {
		case ParamVoltageOffset, ParamCurrentOffset, ParamTemperatureOffset:
		case ParamVoltageScale, ParamCurrentScale:
			if v <= 0 {
				return fmt.Errorf("calibration %s must be positive, got %g", name, v)
			}
		default:
			return fmt.Errorf("unknown calibration parameter %q", name)
		}
	}
	for name, v := range params {
		s.cal[name] = v
	}
	return nil
}

func (s *SimulatedSource) noise(amplitude float64) float64 {
	return (s.rng.Float64()*2 - 1) * amplitude
}

// Daylight returns the relative sun intensity in [0,1] for t's local hour
func Daylight(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	if hour <= 6 || hour >= 18 {
		return 0
	}
	return math.Sin(math.Pi * (hour - 6) / 12)
}
