package faults

import (
	"fmt"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/message"
)

// Fault kinds reported by RuleDetector
const (
	KindLowVoltage      = "low_voltage"
	KindHighVoltage     = "high_voltage"
	KindHighCurrent     = "high_current"
	KindHighTemperature = "high_temperature"
	KindSensorError     = "sensor_error"
)

// RuleDetector flags readings against fixed electrical and thermal limits.
// Every rule is evaluated; one reading may yield several faults.
type RuleDetector struct {
	thresholds config.FaultThresholds
}

// NewRuleDetector creates a detector with the given thresholds
func NewRuleDetector(th config.FaultThresholds) *RuleDetector {
	return &RuleDetector{thresholds: th}
}

// DetectFaults returns the faults found in r, or nil when it is healthy
func (d *RuleDetector) DetectFaults(r message.SensorReading) ([]message.Fault, error) {
	th := d.thresholds
	var found []message.Fault

	switch {
	case r.Voltage < th.LowVoltage:
		found = append(found, message.Fault{
			Kind:     KindLowVoltage,
			Severity: message.Warning,
			Detail:   fmt.Sprintf("Low voltage detected: %.2fV (min %.2fV)", r.Voltage, th.LowVoltage),
		})
	case r.Voltage > th.HighVoltage:
		found = append(found, message.Fault{
			Kind:     KindHighVoltage,
			Severity: message.Critical,
			Detail:   fmt.Sprintf("High voltage detected: %.2fV (max %.2fV)", r.Voltage, th.HighVoltage),
		})
	}

	if r.Current > th.MaxCurrent {
		found = append(found, message.Fault{
			Kind:     KindHighCurrent,
			Severity: message.Critical,
			Detail:   fmt.Sprintf("High current detected: %.2fA (max %.2fA)", r.Current, th.MaxCurrent),
		})
	}

	switch {
	case r.Temperature > th.MaxTemperature:
		found = append(found, message.Fault{
			Kind:     KindHighTemperature,
			Severity: message.Critical,
			Detail:   fmt.Sprintf("High temperature: %.1fC (max %.1fC)", r.Temperature, th.MaxTemperature),
		})
	case r.Temperature > th.WarnTemperature:
		found = append(found, message.Fault{
			Kind:     KindHighTemperature,
			Severity: message.Warning,
			Detail:   fmt.Sprintf("High temperature: %.1fC (warn %.1fC)", r.Temperature, th.WarnTemperature),
		})
	}

	if r.Humidity < 0 || r.Humidity > 100 {
		found = append(found, message.Fault{
			Kind:     KindSensorError,
			Severity: message.Warning,
			Detail:   fmt.Sprintf("Humidity sensor error: %.1f%%", r.Humidity),
		})
	}

	return found, nil
}
