package logger

import (
	"fmt"
	"sync"
)

// ILogger is the logging surface injected into pipeline components so tests
// can assert on what was logged.
type ILogger interface {
	LogInfo(format string, args ...interface{})
	LogWarn(format string, args ...interface{})
	LogError(format string, args ...interface{})
	LogDebug(format string, args ...interface{})
}

// StandardLogger implements ILogger using the global logger functions
type StandardLogger struct{}

// NewStandardLogger creates a logger that uses global logger functions
func NewStandardLogger() ILogger {
	return &StandardLogger{}
}

// LogInfo logs an info message
func (l *StandardLogger) LogInfo(format string, args ...interface{}) {
	LogInfo(format, args...)
}

// LogWarn logs a warning message
func (l *StandardLogger) LogWarn(format string, args ...interface{}) {
	LogWarn(format, args...)
}

// LogError logs an error message
func (l *StandardLogger) LogError(format string, args ...interface{}) {
	LogError(format, args...)
}

// LogDebug logs a debug message
func (l *StandardLogger) LogDebug(format string, args ...interface{}) {
	LogDebug(format, args...)
}

// MockLogger records formatted log lines for tests
type MockLogger struct {
	mu            sync.Mutex
	InfoMessages  []string
	WarnMessages  []string
	ErrorMessages []string
	DebugMessages []string
}

// NewMockLogger creates a new mock logger for testing
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// LogInfo records an info message
func (l *MockLogger) LogInfo(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.InfoMessages = append(l.InfoMessages, fmt.Sprintf(format, args...))
}

// LogWarn records a warning message
func (l *MockLogger) LogWarn(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.WarnMessages = append(l.WarnMessages, fmt.Sprintf(format, args...))
}

// LogError records an error message
func (l *MockLogger) LogError(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ErrorMessages = append(l.ErrorMessages, fmt.Sprintf(format, args...))
}

// LogDebug records a debug message
func (l *MockLogger) LogDebug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DebugMessages = append(l.DebugMessages, fmt.Sprintf(format, args...))
}

// Reset clears all recorded messages
func (l *MockLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.InfoMessages = nil
	l.WarnMessages = nil
	l.ErrorMessages = nil
	l.DebugMessages = nil
}

// HasWarnMessage checks if a warning message was logged
func (l *MockLogger) HasWarnMessage() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.WarnMessages) > 0
}

// HasErrorMessage checks if an error message was logged
func (l *MockLogger) HasErrorMessage() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ErrorMessages) > 0
}

// Errors returns a copy of the recorded error lines
func (l *MockLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ErrorMessages...)
}

// Warnings returns a copy of the recorded warning lines
func (l *MockLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.WarnMessages...)
}
