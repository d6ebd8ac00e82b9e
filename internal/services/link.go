package services

import (
	"context"
	"time"

	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/health"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/metrics"
)

// Link is the connection surface both services supervise
type Link interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Broker() string
}

// reconnector re-establishes the broker connection on the next cycle after
// a failure, no sooner than retryDelay after the previous attempt
type reconnector struct {
	link        Link
	retryDelay  time.Duration
	lastAttempt time.Time
	attempts    int

	health  *health.Monitor
	metrics metrics.Collector
	errs    *errors.ErrorHandler
	now     func() time.Time
}

func newReconnector(link Link, retryDelay time.Duration, monitor *health.Monitor,
	m metrics.Collector, errs *errors.ErrorHandler) *reconnector {
	return &reconnector{
		link:       link,
		retryDelay: retryDelay,
		health:     monitor,
		metrics:    m,
		errs:       errs,
		now:        time.Now,
	}
}

// ensure reports whether the link is connected, attempting a reconnect when
// the retry delay has passed. connected is true only when this call
// established the connection.
func (r *reconnector) ensure(ctx context.Context) (ok bool, connected bool) {
	if r.link.IsConnected() {
		return true, false
	}

	now := r.now()
	if !r.lastAttempt.IsZero() && now.Sub(r.lastAttempt) < r.retryDelay {
		return false, false
	}
	r.lastAttempt = now
	r.attempts++

	logger.LogDebug("🔄 Attempting to connect to MQTT broker %s (attempt %d)...", r.link.Broker(), r.attempts)
	if err := r.link.Connect(ctx); err != nil {
		r.errs.Handle(ctx, err)
		if !errors.IsRecoverable(err) {
			r.rejected(err)
			return false, false
		}
		r.failed(ctx)
		return false, false
	}

	logger.LogInfo("✅ Connected to MQTT broker %s after %d attempt(s)", r.link.Broker(), r.attempts)
	r.attempts = 0
	r.metrics.SetBrokerConnected(true)
	r.health.RecordSuccess()
	return true, true
}

// failed records a broker failure with grace period handling
func (r *reconnector) failed(ctx context.Context) {
	r.metrics.SetBrokerConnected(false)
	shouldMarkOffline := r.health.RecordError()

	if r.health.GetConsecutiveErrors() == 1 {
		logger.LogWarn("⚠️ First broker error detected, starting grace period")
	}
	if r.health.IsInGracePeriod() {
		logger.LogDebug("🕐 Error %d in grace period (%.1fs elapsed) - keeping status online",
			r.health.GetConsecutiveErrors(), r.health.GetTimeSinceFirstError().Seconds())
		return
	}
	if shouldMarkOffline {
		logger.LogError("📴 Broker unreachable for %.0fs, marking offline", r.health.GetTimeSinceFirstError().Seconds())
		r.health.MarkOffline()
	}
}

// rejected marks the broker offline at once. Retries continue so a fixed
// broker ACL is picked up without a restart.
func (r *reconnector) rejected(err error) {
	r.metrics.SetBrokerConnected(false)
	r.health.RecordError()
	if r.health.IsOnline() {
		logger.LogError("📴 Broker %s refused the connection (code %d), marking offline: %v",
			r.link.Broker(), errors.GetDiagnosticCode(err), err)
		r.health.MarkOffline()
	}
}

// succeeded records a healthy broker cycle
func (r *reconnector) succeeded() {
	if !r.health.IsOnline() {
		logger.LogInfo("✅ Broker recovered, marking online")
	}
	r.metrics.SetBrokerConnected(true)
	r.health.RecordSuccess()
}
