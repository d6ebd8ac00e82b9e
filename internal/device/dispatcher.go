package device

import (
	"context"
	"fmt"
	"time"

	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
)

// HandlerFunc applies one command locally
type HandlerFunc func(ctx context.Context, cmd message.Command) error

// Dispatcher routes commands to handlers keyed by wire type
type Dispatcher struct {
	handlers map[string]HandlerFunc
	log      logger.ILogger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(log logger.ILogger) *Dispatcher {
	if log == nil {
		log = logger.NewStandardLogger()
	}
	return &Dispatcher{handlers: make(map[string]HandlerFunc), log: log}
}

// Register sets the handler for a command type, replacing any previous one
func (d *Dispatcher) Register(commandType string, h HandlerFunc) {
	d.handlers[commandType] = h
}

// Dispatch runs the handler for cmd. A type without a handler is logged and
// ignored; it reports whether a handler ran successfully.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd message.Command) bool {
	h, ok := d.handlers[cmd.CommandType()]
	if !ok {
		d.log.LogWarn("⚠️ Ignoring command with no handler: %s", cmd.CommandType())
		return false
	}
	if err := h(ctx, cmd); err != nil {
		d.log.LogError("Command %s failed: %v", cmd.CommandType(), err)
		return false
	}
	return true
}

// RegisterTrackerHandlers wires every command type to tracker. clock stamps
// received fault alerts.
func RegisterTrackerHandlers(d *Dispatcher, tracker *Tracker, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}

	d.Register(message.TypeSetAngle, func(_ context.Context, cmd message.Command) error {
		c := cmd.(message.SetAngle)
		applied, err := tracker.SetAngle(c.Angle)
		if err != nil {
			return err
		}
		if applied != c.Angle {
			d.log.LogWarn("⚠️ Angle %.1f out of range, clamped to %.1f", c.Angle, applied)
		}
		d.log.LogInfo("🎯 Servo angle set to %.1f (%s mode)", applied, tracker.Mode())
		return nil
	})

	d.Register(message.TypeSetMode, func(_ context.Context, cmd message.Command) error {
		c := cmd.(message.SetMode)
		if err := tracker.SetMode(c.Mode); err != nil {
			return err
		}
		d.log.LogInfo("🔀 Mode changed to: %s", c.Mode)
		return nil
	})

	d.Register(message.TypeCalibrate, func(_ context.Context, cmd message.Command) error {
		c := cmd.(message.Calibrate)
		if err := tracker.Calibrate(c.Params); err != nil {
			return fmt.Errorf("calibration rejected: %w", err)
		}
		d.log.LogInfo("🔧 Calibration applied: %v", c.Params)
		return nil
	})

	d.Register(message.TypePowerPrediction, func(_ context.Context, cmd message.Command) error {
		c := cmd.(message.PowerPrediction)
		tracker.SetPrediction(c.Prediction)
		d.log.LogInfo("🔮 Prediction received: peak %.1fW, %.0fWh over %d steps",
			c.Prediction.PeakPower(), c.Prediction.TotalEnergyWh(), len(c.Prediction.Horizon))
		return nil
	})

	d.Register(message.TypeFaultAlert, func(_ context.Context, cmd message.Command) error {
		c := cmd.(message.FaultAlert)
		tracker.SetFaults(c.Faults, clock())
		for _, f := range c.Faults {
			d.log.LogWarn("🚨 FAULT [%s] %s: %s", f.Severity, f.Kind, f.Detail)
		}
		return nil
	})
}
