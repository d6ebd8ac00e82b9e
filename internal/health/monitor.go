package health

import (
	"sync"
	"time"

	"pv-tracker-bridge/internal/recovery"
)

// Monitor tracks broker connectivity for a service and decides, with a grace
// period, when it is reported offline. It implements httpapi.HealthChecker.
type Monitor struct {
	isOnline        bool
	lastErrorTime   time.Time
	lastSuccessTime time.Time
	successCount    int
	errorCount      int
	errorManager    *recovery.ErrorRecoveryManager
	now             func() time.Time
	mu              sync.RWMutex
}

// NewMonitor creates a monitor that starts online
func NewMonitor(gracePeriod time.Duration) *Monitor {
	return &Monitor{
		isOnline:     true,
		errorManager: recovery.NewErrorRecoveryManager(gracePeriod),
		now:          time.Now,
	}
}

// SetClock replaces the time source (for testing)
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.errorManager.SetClock(now)
}

// IsOnline returns whether the broker is currently reported online
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// RecordSuccess records a successful broker cycle
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorManager.RecordSuccess()
	m.isOnline = true
	m.successCount++
	m.lastSuccessTime = m.now()
}

// RecordError records a failed broker cycle and returns whether the caller
// should now report the broker offline
func (m *Monitor) RecordError() (shouldMarkOffline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorCount++
	m.lastErrorTime = m.now()
	m.errorManager.RecordError()

	return m.errorManager.ShouldMarkOffline()
}

// MarkOffline explicitly marks the broker as offline
func (m *Monitor) MarkOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.isOnline = false
	m.errorManager.MarkAsOffline()
}

// MarkOnline explicitly marks the broker as online
func (m *Monitor) MarkOnline() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.isOnline = true
	m.errorManager.Reset()
}

// GetConsecutiveErrors returns the current count of consecutive errors
func (m *Monitor) GetConsecutiveErrors() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorManager.GetConsecutiveErrors()
}

// GetLastErrorTime returns the time of the last error
func (m *Monitor) GetLastErrorTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErrorTime
}

// GetLastSuccessTime returns the time of the last successful cycle
func (m *Monitor) GetLastSuccessTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccessTime
}

// GetErrorCount returns the number of failed cycles
func (m *Monitor) GetErrorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorCount
}

// GetSuccessCount returns the number of successful cycles
func (m *Monitor) GetSuccessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successCount
}

// ResetCounters clears the success and error counters, keeping the online state
func (m *Monitor) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCount = 0
	m.errorCount = 0
}

// IsInGracePeriod returns true if currently in error grace period
func (m *Monitor) IsInGracePeriod() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorManager.IsInGracePeriod()
}

// GetTimeSinceFirstError returns duration since first error in current sequence
func (m *Monitor) GetTimeSinceFirstError() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorManager.GetTimeSinceFirstError()
}
