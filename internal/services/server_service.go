package services

import (
	"context"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/connection"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/health"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/metrics"
	"pv-tracker-bridge/internal/recovery"
	"pv-tracker-bridge/internal/router"
)

// ServerConnection is the connection surface the server loop uses
type ServerConnection interface {
	Link
	KeepAlive(ctx context.Context) ([]connection.Inbound, error)
}

// ServerService drives the server's cooperative loop: reconnect when
// needed, drain one inbound batch, route each message
type ServerService struct {
	conn     ServerConnection
	router   *router.Router
	health   *health.Monitor
	metrics  metrics.Collector
	link     *reconnector
	interval time.Duration

	routed          int
	lastSummaryTime time.Time
}

// NewServerService creates the server loop
func NewServerService(conn ServerConnection, r *router.Router, monitor *health.Monitor,
	m metrics.Collector, settings config.ServerSettings) *ServerService {
	errs := errors.NewErrorHandler(logger.NewStandardLogger(), m)
	return &ServerService{
		conn:            conn,
		router:          r,
		health:          monitor,
		metrics:         m,
		link:            newReconnector(conn, settings.RetryDelay, monitor, m, errs),
		interval:        settings.PollInterval,
		lastSummaryTime: time.Now(),
	}
}

// Run polls until ctx is cancelled
func (s *ServerService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.LogInfo("🔄 Server loop started with interval: %v", s.interval)
	s.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("🔄 Server loop stopped")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one reconnect, drain and route step. It returns the number of
// messages routed.
func (s *ServerService) Cycle(ctx context.Context) int {
	if ok, _ := s.link.ensure(ctx); !ok {
		return 0
	}

	batch, err := s.conn.KeepAlive(ctx)
	if err != nil {
		s.link.errs.Handle(ctx, err)
		s.link.failed(ctx)
		return 0
	}
	s.link.succeeded()

	for _, in := range batch {
		s.router.OnMessage(ctx, in.Topic, in.Payload)
	}
	s.routed += len(batch)

	if time.Since(s.lastSummaryTime) >= time.Minute {
		s.summarize()
	}
	return len(batch)
}

// summarize logs the last minute and resets the window counters
func (s *ServerService) summarize() {
	logger.LogInfo("📊 Summary - Routed: %d, Devices: %d, Errors: %d, Last 60s",
		s.routed, len(s.router.Devices()), s.health.GetErrorCount())
	for _, stats := range s.router.SinkStats() {
		switch stats.State {
		case recovery.StateOpen:
			logger.LogWarn("🔴 Sink %s", stats)
		case recovery.StateHalfOpen:
			logger.LogInfo("🟡 Sink %s", stats)
		default:
			logger.LogDebug("🟢 Sink %s", stats)
		}
	}
	s.lastSummaryTime = time.Now()
	s.routed = 0
	s.health.ResetCounters()
}
