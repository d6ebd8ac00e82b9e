package recovery

import (
	"time"
)

// ErrorRecoveryManager decides when a run of broker errors has lasted long
// enough to report the connection offline, so brief reconnects do not make
// the health status oscillate.
type ErrorRecoveryManager struct {
	consecutiveErrors  int
	firstErrorTime     time.Time
	errorGracePeriod   time.Duration
	statusSetToOffline bool
	now                func() time.Time
}

// NewErrorRecoveryManager creates a new error recovery manager
func NewErrorRecoveryManager(gracePeriod time.Duration) *ErrorRecoveryManager {
	if gracePeriod == 0 {
		gracePeriod = 15 * time.Second
	}
	return &ErrorRecoveryManager{
		errorGracePeriod: gracePeriod,
		now:              time.Now,
	}
}

// SetClock replaces the time source (for testing)
func (m *ErrorRecoveryManager) SetClock(now func() time.Time) {
	m.now = now
}

// RecordError records an error occurrence and returns whether the grace period has expired
func (m *ErrorRecoveryManager) RecordError() bool {
	m.consecutiveErrors++
	if m.firstErrorTime.IsZero() {
		m.firstErrorTime = m.now()
	}
	return m.now().Sub(m.firstErrorTime) >= m.errorGracePeriod
}

// RecordSuccess resets error tracking after a successful operation
func (m *ErrorRecoveryManager) RecordSuccess() {
	m.consecutiveErrors = 0
	m.firstErrorTime = time.Time{}
	m.statusSetToOffline = false
}

// GetConsecutiveErrors returns the current count of consecutive errors
func (m *ErrorRecoveryManager) GetConsecutiveErrors() int {
	return m.consecutiveErrors
}

// ShouldMarkOffline returns true once per error run, after the grace period
func (m *ErrorRecoveryManager) ShouldMarkOffline() bool {
	if m.statusSetToOffline {
		return false
	}
	return !m.firstErrorTime.IsZero() && m.now().Sub(m.firstErrorTime) >= m.errorGracePeriod
}

// MarkAsOffline records that the offline status has been reported
func (m *ErrorRecoveryManager) MarkAsOffline() {
	m.statusSetToOffline = true
}

// IsInGracePeriod returns true while errors are occurring but the grace period has not expired
func (m *ErrorRecoveryManager) IsInGracePeriod() bool {
	if m.firstErrorTime.IsZero() {
		return false
	}
	return m.now().Sub(m.firstErrorTime) < m.errorGracePeriod
}

// Reset clears all error state
func (m *ErrorRecoveryManager) Reset() {
	m.RecordSuccess()
}

// GetTimeSinceFirstError returns duration since first error in current sequence
func (m *ErrorRecoveryManager) GetTimeSinceFirstError() time.Duration {
	if m.firstErrorTime.IsZero() {
		return 0
	}
	return m.now().Sub(m.firstErrorTime)
}
