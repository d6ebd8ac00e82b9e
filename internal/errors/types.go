package errors

import (
	"errors"
	"fmt"
)

// ErrNoDataYet is returned by the sensor sampler when the read interval has
// not elapsed since the last accepted reading. It is not a failure.
var ErrNoDataYet = errors.New("no data yet")

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic codes carried by the typed errors
const (
	CodeConfig       = 1
	CodeConnection   = 2
	CodeDecode       = 3
	CodeValidation   = 5
	CodeCollaborator = 6
	CodeGeneric      = 99
)

// PipelineError is the base error type for all telemetry pipeline errors
type PipelineError struct {
	Op       string        // Operation that failed
	Err      error         // Underlying error
	Severity ErrorSeverity // Error severity
	Code     int           // Diagnostic code
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) pipeline() *PipelineError {
	return e
}

// typed is satisfied by PipelineError and every error embedding it
type typed interface {
	error
	pipeline() *PipelineError
}

// ConnectionError represents a connect, publish or receive failure against
// the broker. Recoverable unless the broker refused the credentials.
type ConnectionError struct {
	PipelineError
	Broker string
	Topic  string
}

// NewConnectionError creates a new connection error
func NewConnectionError(op string, err error, broker string) *ConnectionError {
	return &ConnectionError{
		PipelineError: PipelineError{
			Op:       op,
			Err:      err,
			Severity: SeverityError,
			Code:     CodeConnection,
		},
		Broker: broker,
	}
}

// WithTopic sets the topic involved in the failure
func (e *ConnectionError) WithTopic(topic string) *ConnectionError {
	e.Topic = topic
	return e
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("[%s] MQTT broker '%s' (topic: %s): %s: %v",
			e.Severity, e.Broker, e.Topic, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] MQTT broker '%s': %s: %v",
		e.Severity, e.Broker, e.Op, e.Err)
}

// DecodeKind classifies why a wire message could not be decoded
type DecodeKind int

const (
	// Malformed - payload is not a well-formed object or a field has the wrong type
	Malformed DecodeKind = iota
	// UnknownType - the type discriminator names no known variant
	UnknownType
	// MissingField - a field required by the variant is absent
	MissingField
)

// String returns the string representation of the decode kind
func (k DecodeKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnknownType:
		return "unknown_type"
	case MissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// DecodeError represents a wire message that could not be decoded
type DecodeError struct {
	PipelineError
	Kind  DecodeKind
	Field string
}

// NewDecodeError creates a new decode error. field names the offending key
// for MissingField and UnknownType, and may be empty for Malformed.
func NewDecodeError(kind DecodeKind, field string, err error) *DecodeError {
	return &DecodeError{
		PipelineError: PipelineError{
			Op:       "decode",
			Err:      err,
			Severity: SeverityWarning,
			Code:     CodeDecode,
		},
		Kind:  kind,
		Field: field,
	}
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] Decode %s (field '%s'): %v", e.Severity, e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("[%s] Decode %s: %v", e.Severity, e.Kind, e.Err)
}

// ValidationError represents a sensor value outside its physical range
type ValidationError struct {
	PipelineError
	Field  string
	Min    float64
	Max    float64
	Actual float64
}

// NewValidationError creates a new validation error
func NewValidationError(field string, min, max, actual float64) *ValidationError {
	return &ValidationError{
		PipelineError: PipelineError{
			Op:       "validation",
			Err:      fmt.Errorf("validation failed"),
			Severity: SeverityWarning,
			Code:     CodeValidation,
		},
		Field:  field,
		Min:    min,
		Max:    max,
		Actual: actual,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Field '%s': expected [%g, %g], got %g",
		e.Severity, e.Field, e.Min, e.Max, e.Actual)
}

// CollaboratorError represents a failure (or panic) inside the fault
// detector, the forecast model or the forecast input source.
type CollaboratorError struct {
	PipelineError
	Collaborator string
	DeviceID     string
}

// NewCollaboratorError creates a new collaborator error
func NewCollaboratorError(collaborator string, err error, deviceID string) *CollaboratorError {
	return &CollaboratorError{
		PipelineError: PipelineError{
			Op:       collaborator,
			Err:      err,
			Severity: SeverityError,
			Code:     CodeCollaborator,
		},
		Collaborator: collaborator,
		DeviceID:     deviceID,
	}
}

// Error implements the error interface
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("[%s] Collaborator '%s' (device %s): %v",
		e.Severity, e.Collaborator, e.DeviceID, e.Err)
}

// ConfigError represents configuration errors
type ConfigError struct {
	PipelineError
	Field string
}

// NewConfigError creates a new configuration error
func NewConfigError(op string, err error, field string) *ConfigError {
	return &ConfigError{
		PipelineError: PipelineError{
			Op:       op,
			Err:      err,
			Severity: SeverityCritical, // Config errors are critical
			Code:     CodeConfig,
		},
		Field: field,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] Configuration field '%s': %s: %v",
			e.Severity, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] Configuration: %s: %v",
		e.Severity, e.Op, e.Err)
}
