package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/topics"
)

var readingFields = []string{
	"timestamp", "voltage", "current", "power",
	"temperature", "humidity", "servo_angle", "device_id",
}

// Encode serializes a message as a flat JSON object. Commands carry their
// "type" discriminator; readings do not.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case SensorReading:
		return json.Marshal(v)
	case *SensorReading:
		return json.Marshal(v)
	case Command:
		return encodeCommand(v)
	case nil:
		return nil, fmt.Errorf("encode: nil message")
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
}

func encodeCommand(c Command) ([]byte, error) {
	type envelope struct {
		Type string `json:"type"`
	}
	env := envelope{Type: c.CommandType()}

	switch v := c.(type) {
	case SetAngle:
		return json.Marshal(struct {
			envelope
			SetAngle
		}{env, v})
	case SetMode:
		return json.Marshal(struct {
			envelope
			SetMode
		}{env, v})
	case Calibrate:
		if v.Params == nil {
			v.Params = map[string]float64{}
		}
		return json.Marshal(struct {
			envelope
			Calibrate
		}{env, v})
	case PowerPrediction:
		return json.Marshal(struct {
			envelope
			PowerPrediction
		}{env, v})
	case FaultAlert:
		if v.Faults == nil {
			v.Faults = []Fault{}
		}
		return json.Marshal(struct {
			envelope
			FaultAlert
		}{env, v})
	default:
		return nil, fmt.Errorf("encode: unsupported command %T", c)
	}
}

// Decode parses a wire message. An object with a "type" key is decoded as a
// Command, anything else as a SensorReading. Every failure is a
// *errors.DecodeError.
func Decode(data []byte) (Message, error) {
	fields, err := object(data)
	if err != nil {
		return nil, err
	}
	if _, ok := fields["type"]; ok {
		return decodeCommand(fields)
	}
	return decodeReading(fields)
}

// DecodeReading decodes a telemetry payload; commands are rejected
func DecodeReading(data []byte) (SensorReading, error) {
	fields, err := object(data)
	if err != nil {
		return SensorReading{}, err
	}
	if _, ok := fields["type"]; ok {
		return SensorReading{}, errors.NewDecodeError(errors.UnknownType, "type",
			fmt.Errorf("expected sensor reading, got a command"))
	}
	return decodeReading(fields)
}

// DecodeCommand decodes a command payload; readings are rejected
func DecodeCommand(data []byte) (Command, error) {
	fields, err := object(data)
	if err != nil {
		return nil, err
	}
	if _, ok := fields["type"]; !ok {
		return nil, errors.NewDecodeError(errors.MissingField, "type",
			fmt.Errorf("command has no type discriminator"))
	}
	return decodeCommand(fields)
}

func object(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.NewDecodeError(errors.Malformed, "", err)
	}
	if fields == nil {
		return nil, errors.NewDecodeError(errors.Malformed, "", fmt.Errorf("payload is not an object"))
	}
	return fields, nil
}

// requireFields treats an explicit null like an absent field
func requireFields(fields map[string]json.RawMessage, names ...string) error {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			return errors.NewDecodeError(errors.MissingField, name, fmt.Errorf("required field missing"))
		}
		if string(bytes.TrimSpace(raw)) == "null" {
			return errors.NewDecodeError(errors.MissingField, name, fmt.Errorf("required field is null"))
		}
	}
	return nil
}

func checkDeviceID(id string) error {
	if id == "" {
		return errors.NewDecodeError(errors.MissingField, "device_id", fmt.Errorf("device_id is empty"))
	}
	if !topics.ValidDeviceID(id) {
		return errors.NewDecodeError(errors.Malformed, "device_id", fmt.Errorf("device_id %q is not a valid topic level", id))
	}
	return nil
}

func field(fields map[string]json.RawMessage, name string, dst interface{}) error {
	if err := json.Unmarshal(fields[name], dst); err != nil {
		return errors.NewDecodeError(errors.Malformed, name, err)
	}
	return nil
}

func decodeReading(fields map[string]json.RawMessage) (SensorReading, error) {
	if err := requireFields(fields, readingFields...); err != nil {
		return SensorReading{}, err
	}

	var r SensorReading
	targets := map[string]interface{}{
		"timestamp":   &r.Timestamp,
		"voltage":     &r.Voltage,
		"current":     &r.Current,
		"power":       &r.Power,
		"temperature": &r.Temperature,
		"humidity":    &r.Humidity,
		"servo_angle": &r.ServoAngle,
		"device_id":   &r.DeviceID,
	}
	for _, name := range readingFields {
		if err := field(fields, name, targets[name]); err != nil {
			return SensorReading{}, err
		}
	}
	if err := checkDeviceID(r.DeviceID); err != nil {
		return SensorReading{}, err
	}
	return r, nil
}

func decodeCommand(fields map[string]json.RawMessage) (Command, error) {
	var typ string
	if err := field(fields, "type", &typ); err != nil {
		return nil, err
	}

	switch typ {
	case TypeSetAngle:
		var c SetAngle
		if err := decodeVariant(fields, "angle", &c.Angle); err != nil {
			return nil, err
		}
		return c, nil
	case TypeSetMode:
		var c SetMode
		if err := decodeVariant(fields, "mode", &c.Mode); err != nil {
			return nil, err
		}
		return c, nil
	case TypeCalibrate:
		var c Calibrate
		if err := decodeVariant(fields, "params", &c.Params); err != nil {
			return nil, err
		}
		return c, nil
	case TypePowerPrediction:
		var c PowerPrediction
		if err := decodeVariant(fields, "prediction", &c.Prediction); err != nil {
			return nil, err
		}
		return c, nil
	case TypeFaultAlert:
		var c FaultAlert
		if err := decodeVariant(fields, "faults", &c.Faults); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.NewDecodeError(errors.UnknownType, "type", fmt.Errorf("unknown command type %q", typ))
	}
}

func decodeVariant(fields map[string]json.RawMessage, name string, dst interface{}) error {
	if err := requireFields(fields, name); err != nil {
		return err
	}
	return field(fields, name, dst)
}

// EncodeStatus serializes a status report
func EncodeStatus(s StatusReport) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeStatus parses a status report; device_id is required
func DecodeStatus(data []byte) (StatusReport, error) {
	fields, err := object(data)
	if err != nil {
		return StatusReport{}, err
	}
	if err := requireFields(fields, "device_id"); err != nil {
		return StatusReport{}, err
	}
	var s StatusReport
	if err := json.Unmarshal(data, &s); err != nil {
		return StatusReport{}, errors.NewDecodeError(errors.Malformed, "", err)
	}
	if err := checkDeviceID(s.DeviceID); err != nil {
		return StatusReport{}, err
	}
	return s, nil
}
