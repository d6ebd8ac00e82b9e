package services

import (
	"context"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/device"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/health"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/metrics"
)

// DeviceService drives the device agent from a single goroutine: publish,
// poll, servo and status ticks are serialized by one select
type DeviceService struct {
	agent    *device.Agent
	link     *reconnector
	settings config.DeviceSettings
}

// NewDeviceService creates the device loop
func NewDeviceService(conn Link, agent *device.Agent, monitor *health.Monitor,
	m metrics.Collector, settings config.DeviceSettings) *DeviceService {
	errs := errors.NewErrorHandler(logger.NewStandardLogger(), m)
	return &DeviceService{
		agent:    agent,
		link:     newReconnector(conn, settings.RetryDelay, monitor, m, errs),
		settings: settings,
	}
}

// Run ticks until ctx is cancelled
func (s *DeviceService) Run(ctx context.Context) {
	publish := time.NewTicker(s.settings.PublishInterval)
	poll := time.NewTicker(s.settings.PollInterval)
	servo := time.NewTicker(s.settings.ServoUpdateInterval)
	status := time.NewTicker(s.settings.StatusInterval)
	defer publish.Stop()
	defer poll.Stop()
	defer servo.Stop()
	defer status.Stop()

	logger.LogInfo("🔄 Device %s started (publish %v, poll %v, servo %v, status %v)",
		s.settings.ID, s.settings.PublishInterval, s.settings.PollInterval,
		s.settings.ServoUpdateInterval, s.settings.StatusInterval)

	s.agent.Track()
	s.PollCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.LogDebug("🔄 Device loop stopped")
			return
		case <-publish.C:
			s.PublishCycle(ctx)
		case <-poll.C:
			s.PollCycle(ctx)
		case <-servo.C:
			s.agent.Track()
		case <-status.C:
			s.agent.ReportStatus(ctx)
		}
	}
}

// PublishCycle samples and publishes one reading
func (s *DeviceService) PublishCycle(ctx context.Context) device.Outcome {
	s.ensure(ctx)
	return s.agent.Tick(ctx)
}

// PollCycle reconnects if needed and drains one batch of commands
func (s *DeviceService) PollCycle(ctx context.Context) int {
	if !s.ensure(ctx) {
		return 0
	}

	applied, err := s.agent.Poll(ctx)
	if err != nil {
		s.link.errs.Handle(ctx, err)
		s.link.failed(ctx)
		return 0
	}
	s.link.succeeded()
	return applied
}

func (s *DeviceService) ensure(ctx context.Context) bool {
	ok, connected := s.link.ensure(ctx)
	if connected {
		// Replaces the retained offline will on the status topic.
		s.agent.ReportStatus(ctx)
	}
	return ok
}
