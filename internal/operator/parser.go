// Package operator parses console commands into wire commands addressed to
// one device.
package operator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/topics"
)

// Action tells the console what to do with a parsed line
type Action int

const (
	// Send publishes Command to DeviceID
	Send Action = iota
	// Help prints usage
	Help
	// Quit ends the session
	Quit
	// Empty is a blank line
	Empty
)

// Parsed is one console line
type Parsed struct {
	Action   Action
	DeviceID string
	Command  message.Command
}

// Usage is printed by the help command
const Usage = `Commands:
  angle <device_id> <degrees>          move the servo (0-180)
  mode <device_id> auto|manual         switch tracking mode
  calibrate <device_id> key=value ...  send calibration parameters
  help                                 show this help
  quit                                 exit`

// Completions lists the command words for line completion
var Completions = []string{"angle", "mode", "calibrate", "help", "quit"}

// Parse turns a console line into an action
func Parse(line string) (Parsed, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Parsed{Action: Empty}, nil
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "help", "?":
		return Parsed{Action: Help}, nil
	case "quit", "exit":
		return Parsed{Action: Quit}, nil
	case "angle":
		if len(args) != 2 {
			return Parsed{}, fmt.Errorf("usage: angle <device_id> <degrees>")
		}
		angle, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return Parsed{}, fmt.Errorf("invalid angle %q: %w", args[1], err)
		}
		if angle < 0 || angle > 180 {
			return Parsed{}, fmt.Errorf("angle %.1f out of range 0-180", angle)
		}
		return send(args[0], message.SetAngle{Angle: angle})
	case "mode":
		if len(args) != 2 {
			return Parsed{}, fmt.Errorf("usage: mode <device_id> auto|manual")
		}
		mode := strings.ToLower(args[1])
		if mode != message.ModeAuto && mode != message.ModeManual {
			return Parsed{}, fmt.Errorf("invalid mode %q", args[1])
		}
		return send(args[0], message.SetMode{Mode: mode})
	case "calibrate":
		if len(args) < 2 {
			return Parsed{}, fmt.Errorf("usage: calibrate <device_id> key=value ...")
		}
		params := make(map[string]float64, len(args)-1)
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return Parsed{}, fmt.Errorf("invalid parameter %q (want key=value)", kv)
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Parsed{}, fmt.Errorf("invalid value for %s: %w", key, err)
			}
			params[key] = v
		}
		return send(args[0], message.Calibrate{Params: params})
	default:
		return Parsed{}, fmt.Errorf("unknown command %q (type help)", fields[0])
	}
}

func send(deviceID string, cmd message.Command) (Parsed, error) {
	if !topics.ValidDeviceID(deviceID) {
		return Parsed{}, fmt.Errorf("invalid device id %q", deviceID)
	}
	return Parsed{Action: Send, DeviceID: deviceID, Command: cmd}, nil
}

// Describe renders a command for the console
func Describe(cmd message.Command) string {
	switch c := cmd.(type) {
	case message.SetAngle:
		return fmt.Sprintf("set_angle %.1f", c.Angle)
	case message.SetMode:
		return fmt.Sprintf("set_mode %s", c.Mode)
	case message.Calibrate:
		keys := make([]string, 0, len(c.Params))
		for k := range c.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%g", k, c.Params[k]))
		}
		return "calibrate " + strings.Join(parts, " ")
	default:
		return cmd.CommandType()
	}
}
