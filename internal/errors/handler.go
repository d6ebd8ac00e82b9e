package errors

import (
	"context"
	"errors"

	"pv-tracker-bridge/internal/logger"
)

// ErrorCounter receives one increment per handled error, labelled by kind
type ErrorCounter interface {
	IncrementErrors(kind string)
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	log     logger.ILogger
	counter ErrorCounter
}

// NewErrorHandler creates a new error handler. counter may be nil.
func NewErrorHandler(log logger.ILogger, counter ErrorCounter) *ErrorHandler {
	if log == nil {
		log = logger.NewStandardLogger()
	}
	return &ErrorHandler{
		log:     log,
		counter: counter,
	}
}

// Handle logs err according to its type and severity. Nothing handled here
// terminates the process.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var (
		connErr   *ConnectionError
		decErr    *DecodeError
		valErr    *ValidationError
		collabErr *CollaboratorError
		cfgErr    *ConfigError
		baseErr   typed
	)

	switch {
	case errors.As(err, &connErr):
		h.logBySeverity(connErr.Severity, "MQTT", connErr)
		h.count("connection")
	case errors.As(err, &decErr):
		h.log.LogWarn("⚠️ Dropping message: %s", decErr.Error())
		h.count("decode")
	case errors.As(err, &valErr):
		h.log.LogDebug("Reading rejected: %s", valErr.Error())
		h.count("validation")
	case errors.As(err, &collabErr):
		h.logBySeverity(collabErr.Severity, "Collaborator", collabErr)
		h.count("collaborator")
	case errors.As(err, &cfgErr):
		h.log.LogError("🔴 CRITICAL Configuration Error: %s", cfgErr.Error())
		h.count("config")
	case errors.As(err, &baseErr):
		h.logBySeverity(baseErr.pipeline().Severity, "Pipeline", baseErr)
		h.count("pipeline")
	default:
		h.log.LogError("Untyped Error: %v", err)
		h.count("generic")
	}
}

func (h *ErrorHandler) logBySeverity(sev ErrorSeverity, component string, err error) {
	switch sev {
	case SeverityCritical:
		h.log.LogError("🔴 CRITICAL %s Error: %s", component, err.Error())
	case SeverityError:
		h.log.LogError("%s Error: %s", component, err.Error())
	case SeverityWarning:
		h.log.LogWarn("%s Warning: %s", component, err.Error())
	default:
		h.log.LogInfo("%s Info: %s", component, err.Error())
	}
}

func (h *ErrorHandler) count(kind string) {
	if h.counter != nil {
		h.counter.IncrementErrors(kind)
	}
}

// IsRecoverable returns true if the error is recoverable
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var t typed
	if errors.As(err, &t) {
		return t.pipeline().Severity != SeverityCritical
	}
	return true // Unknown errors are assumed recoverable
}

// GetDiagnosticCode extracts the diagnostic code from an error
func GetDiagnosticCode(err error) int {
	if err == nil {
		return 0
	}

	var t typed
	if errors.As(err, &t) {
		return t.pipeline().Code
	}
	return CodeGeneric
}

// IsDecodeKind reports whether err is a DecodeError of the given kind
func IsDecodeKind(err error, kind DecodeKind) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr) && decErr.Kind == kind
}
