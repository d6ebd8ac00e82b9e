package message

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Command type discriminators as they appear on the wire
const (
	TypeSetAngle        = "set_angle"
	TypeSetMode         = "set_mode"
	TypeCalibrate       = "calibrate"
	TypePowerPrediction = "power_prediction"
	TypeFaultAlert      = "fault_alert"
)

// Tracker modes accepted by set_mode
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Message is the closed set of payloads carried on the sensors and commands
// topics. Only types in this package implement it.
type Message interface {
	isMessage()
}

// Command is a Message addressed to a device
type Command interface {
	Message
	CommandType() string
}

// SensorReading is one validated sensor snapshot published by a device.
// Timestamp is unix seconds.
type SensorReading struct {
	Timestamp   float64 `json:"timestamp"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	ServoAngle  float64 `json:"servo_angle"`
	DeviceID    string  `json:"device_id"`
}

// Time returns the reading timestamp as a time.Time
func (r SensorReading) Time() time.Time {
	return FromUnixSeconds(r.Timestamp)
}

// SetAngle moves the tracker servo
type SetAngle struct {
	Angle float64 `json:"angle"`
}

// SetMode switches between automatic sun tracking and manual positioning
type SetMode struct {
	Mode string `json:"mode"`
}

// Calibrate carries sensor calibration parameters, e.g. voltage_offset
type Calibrate struct {
	Params map[string]float64 `json:"params"`
}

// PowerPrediction delivers the next-day forecast to a device
type PowerPrediction struct {
	Prediction Prediction `json:"prediction"`
}

// FaultAlert delivers every fault detected in one reading
type FaultAlert struct {
	Faults []Fault `json:"faults"`
}

func (SensorReading) isMessage()   {}
func (SetAngle) isMessage()        {}
func (SetMode) isMessage()         {}
func (Calibrate) isMessage()       {}
func (PowerPrediction) isMessage() {}
func (FaultAlert) isMessage()      {}

// CommandType implements Command
func (SetAngle) CommandType() string { return TypeSetAngle }

// CommandType implements Command
func (SetMode) CommandType() string { return TypeSetMode }

// CommandType implements Command
func (Calibrate) CommandType() string { return TypeCalibrate }

// CommandType implements Command
func (PowerPrediction) CommandType() string { return TypePowerPrediction }

// CommandType implements Command
func (FaultAlert) CommandType() string { return TypeFaultAlert }

// Severity grades a fault
type Severity int

const (
	Warning Severity = iota
	Critical
)

// String returns the wire form of the severity
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity as its wire string
func (s Severity) MarshalJSON() ([]byte, error) {
	if s != Warning && s != Critical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "warning" or "critical"
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "warning":
		*s = Warning
	case "critical":
		*s = Critical
	default:
		return fmt.Errorf("invalid severity %q", str)
	}
	return nil
}

// Fault is one anomaly found in a reading
type Fault struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// HorizonPoint is one forecast step
type HorizonPoint struct {
	Timestamp      float64 `json:"timestamp"`
	PredictedPower float64 `json:"predicted_power"`
	Confidence     float64 `json:"confidence"`
}

// Prediction is an ordered power forecast. Timestamps are unix seconds.
type Prediction struct {
	GeneratedAt float64        `json:"generated_at"`
	Horizon     []HorizonPoint `json:"horizon"`
}

// PeakPower returns the largest predicted power in the horizon
func (p Prediction) PeakPower() float64 {
	peak := 0.0
	for _, h := range p.Horizon {
		peak = math.Max(peak, h.PredictedPower)
	}
	return peak
}

// TotalEnergyWh sums the horizon assuming evenly spaced steps
func (p Prediction) TotalEnergyWh() float64 {
	if len(p.Horizon) < 2 {
		return 0
	}
	step := (p.Horizon[1].Timestamp - p.Horizon[0].Timestamp) / 3600
	total := 0.0
	for _, h := range p.Horizon {
		total += h.PredictedPower * step
	}
	return total
}

// StatusReport is the periodic device heartbeat published on status/{device_id}.
// The broker publishes {"device_id": ..., "online": false} as last will.
type StatusReport struct {
	DeviceID     string   `json:"device_id"`
	Online       bool     `json:"online"`
	Timestamp    float64  `json:"timestamp,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	ServoAngle   float64  `json:"servo_angle"`
	Status       string   `json:"status,omitempty"`
	EnergyWh     float64  `json:"energy_wh"`
	ActiveFaults []string `json:"active_faults,omitempty"`
}

// UnixSeconds converts t to float unix seconds
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromUnixSeconds converts float unix seconds to a time.Time
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
