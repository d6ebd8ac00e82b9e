package device

import (
	"fmt"
	"math"
	"sync"
	"time"

	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/sensor"
)

// Servo limits in degrees
const (
	MinAngle     = 0.0
	MaxAngle     = 180.0
	DefaultAngle = 90.0
)

// System status reported in StatusReport
const (
	StatusNormal = "normal"
	StatusFault  = "fault"
)

// DefaultFaultHold is how long a fault alert keeps the tracker in fault
// status when no further alert arrives
const DefaultFaultHold = 5 * time.Minute

// Tracker is the local actuator state of one device
type Tracker struct {
	mu sync.RWMutex

	angle      float64
	mode       string
	calibrator sensor.Calibrator
	prediction *message.Prediction
	faults     []message.Fault
	faultAt    time.Time
	faultHold  time.Duration
}

// NewTracker creates a tracker parked at 90 degrees in auto mode.
// calibrator may be nil when the sensor source cannot be calibrated.
func NewTracker(calibrator sensor.Calibrator) *Tracker {
	return &Tracker{
		angle:      DefaultAngle,
		mode:       message.ModeAuto,
		calibrator: calibrator,
		faultHold:  DefaultFaultHold,
	}
}

// SetFaultHold overrides DefaultFaultHold
func (t *Tracker) SetFaultHold(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faultHold = d
}

// Angle returns the current servo angle
func (t *Tracker) Angle() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.angle
}

// Mode returns auto or manual
func (t *Tracker) Mode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetAngle moves the servo, clamping to [MinAngle, MaxAngle]. It returns the
// angle actually applied.
func (t *Tracker) SetAngle(angle float64) (float64, error) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0, fmt.Errorf("invalid servo angle %v", angle)
	}
	angle = math.Max(MinAngle, math.Min(MaxAngle, angle))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.angle = angle
	return angle, nil
}

// SetMode switches between auto and manual
func (t *Tracker) SetMode(mode string) error {
	if mode != message.ModeAuto && mode != message.ModeManual {
		return fmt.Errorf("invalid mode %q (want %s or %s)", mode, message.ModeAuto, message.ModeManual)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	return nil
}

// Calibrate forwards calibration parameters to the sensor source
func (t *Tracker) Calibrate(params map[string]float64) error {
	if t.calibrator == nil {
		return fmt.Errorf("sensor source does not support calibration")
	}
	return t.calibrator.Calibrate(params)
}

// AutoTrack moves the servo to the sun angle for now when in auto mode.
// It reports whether the servo was moved.
func (t *Tracker) AutoTrack(now time.Time) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode != message.ModeAuto {
		return t.angle, false
	}
	t.angle = SunAngle(now)
	return t.angle, true
}

// SetPrediction stores the latest forecast received from the server
func (t *Tracker) SetPrediction(p message.Prediction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prediction = &p
}

// Prediction returns the latest forecast, or nil
func (t *Tracker) Prediction() *message.Prediction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.prediction
}

// SetFaults records the faults of an alert received at
func (t *Tracker) SetFaults(faults []message.Fault, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = append([]message.Fault(nil), faults...)
	t.faultAt = at
}

// ActiveFaults returns the kinds of faults still held at now
func (t *Tracker) ActiveFaults(now time.Time) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.faultActive(now) {
		return nil
	}
	kinds := make([]string, 0, len(t.faults))
	for _, f := range t.faults {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

// Status returns StatusFault while an alert is held, otherwise StatusNormal
func (t *Tracker) Status(now time.Time) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.faultActive(now) {
		return StatusFault
	}
	return StatusNormal
}

func (t *Tracker) faultActive(now time.Time) bool {
	return len(t.faults) > 0 && now.Sub(t.faultAt) < t.faultHold
}
