package router

import (
	"sync"
	"time"
)

// ThrottleState records when each device last had a forecast dispatched.
// It is owned by one Router and lives for the process lifetime.
type ThrottleState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottleState creates an empty throttle state
func NewThrottleState() *ThrottleState {
	return &ThrottleState{last: make(map[string]time.Time)}
}

// Due reports whether a forecast may run for deviceID at now
func (t *ThrottleState) Due(deviceID string, now time.Time, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[deviceID]
	return !ok || now.Sub(last) >= interval
}

// Mark sets the last prediction time for deviceID
func (t *ThrottleState) Mark(deviceID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[deviceID] = at
}

// Last returns the last prediction time for deviceID
func (t *ThrottleState) Last(deviceID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[deviceID]
	return last, ok
}

// Snapshot returns a copy of all throttle entries
func (t *ThrottleState) Snapshot() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]time.Time, len(t.last))
	for id, at := range t.last {
		out[id] = at
	}
	return out
}
