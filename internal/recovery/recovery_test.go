package recovery

import (
	"errors"
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errSink = errors.New("influx unavailable")

// TestCircuitBreakerOpensAfterMaxFailures tests the closed -> open transition
func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	clock := &manualClock{t: time.Unix(1000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "influx", MaxFailures: 3, Timeout: 10 * time.Second, HalfOpenMaxTries: 2})
	cb.SetClock(clock.now)

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return errSink }); err != errSink {
			t.Fatalf("Expected sink error on call %d, got %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected OPEN after 3 failures, got %s", cb.GetState())
	}

	called := false
	err := cb.Call(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Function must not run while the circuit is open")
	}
}

// TestCircuitBreakerRecovers tests open -> half-open -> closed
func TestCircuitBreakerRecovers(t *testing.T) {
	clock := &manualClock{t: time.Unix(1000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "kafka", MaxFailures: 1, Timeout: 10 * time.Second, HalfOpenMaxTries: 2})
	cb.SetClock(clock.now)

	_ = cb.Call(func() error { return errSink })
	clock.advance(11 * time.Second)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected half-open trial call to run, got %v", err)
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("Expected HALF-OPEN, got %s", cb.GetState())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("Expected second trial call to run, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after successful trial calls, got %s", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenFailureReopens tests half-open -> open
func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{t: time.Unix(1000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "redis", MaxFailures: 1, Timeout: time.Second})
	cb.SetClock(clock.now)

	_ = cb.Call(func() error { return errSink })
	clock.advance(2 * time.Second)
	_ = cb.Call(func() error { return errSink })

	if cb.GetState() != StateOpen {
		t.Errorf("Expected OPEN after failed trial call, got %s", cb.GetState())
	}
	stats := cb.GetStats()
	if stats.Failures != 2 {
		t.Errorf("Expected 2 failures, got %d", stats.Failures)
	}
	t.Logf("Stats: %s", stats)

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after reset, got %s", cb.GetState())
	}
}

// TestErrorRecoveryGracePeriod tests the offline grace period
func TestErrorRecoveryGracePeriod(t *testing.T) {
	clock := &manualClock{t: time.Unix(1000, 0)}
	m := NewErrorRecoveryManager(15 * time.Second)
	m.SetClock(clock.now)

	if m.RecordError() {
		t.Error("Grace period must not expire on the first error")
	}
	if !m.IsInGracePeriod() {
		t.Error("Expected to be in grace period")
	}

	clock.advance(16 * time.Second)
	if !m.RecordError() {
		t.Error("Expected grace period to have expired")
	}
	if !m.ShouldMarkOffline() {
		t.Error("Expected ShouldMarkOffline after grace period")
	}
	m.MarkAsOffline()
	if m.ShouldMarkOffline() {
		t.Error("Offline must only be reported once per error run")
	}
	if m.GetConsecutiveErrors() != 2 {
		t.Errorf("Expected 2 consecutive errors, got %d", m.GetConsecutiveErrors())
	}

	m.RecordSuccess()
	if m.IsInGracePeriod() || m.GetConsecutiveErrors() != 0 {
		t.Error("Expected reset after success")
	}
}
