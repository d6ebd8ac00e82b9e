package device

import (
	"context"
	goerrors "errors"
	"time"

	"pv-tracker-bridge/internal/connection"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/metrics"
	"pv-tracker-bridge/internal/topics"
)

// Outcome is the result of one publish cycle
type Outcome int

const (
	// Skipped - no data yet, validation failed or the sensor read failed
	Skipped Outcome = iota
	// Published - the reading reached the broker
	Published
	// Dropped - the reading was valid but the broker was unreachable
	Dropped
)

// String returns the metrics label of the outcome
func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Published:
		return "published"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Connection is the part of connection.Manager the agent uses
type Connection interface {
	Publish(ctx context.Context, topic string, payload []byte) bool
	Enqueue(ctx context.Context, topic string, payload []byte, retained bool) bool
	KeepAlive(ctx context.Context) ([]connection.Inbound, error)
}

// Snapshotter yields a validated reading or errors.ErrNoDataYet
type Snapshotter interface {
	Snapshot(ctx context.Context) (message.SensorReading, error)
}

// AgentOptions configures an Agent
type AgentOptions struct {
	Logger  logger.ILogger
	Metrics metrics.Collector
	Clock   func() time.Time
}

// Agent is the device side of the pipeline: it publishes telemetry and
// applies commands addressed to this device
type Agent struct {
	deviceID   string
	layout     topics.Layout
	conn       Connection
	sampler    Snapshotter
	tracker    *Tracker
	energy     *EnergyMeter
	dispatcher *Dispatcher

	log     logger.ILogger
	metrics metrics.Collector
	errs    *errors.ErrorHandler
	now     func() time.Time
}

// NewAgent creates an agent. dispatcher should already have handlers registered.
func NewAgent(deviceID string, layout topics.Layout, conn Connection, sampler Snapshotter,
	tracker *Tracker, dispatcher *Dispatcher, opts AgentOptions) *Agent {
	if opts.Logger == nil {
		opts.Logger = logger.NewStandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNullMetrics()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Agent{
		deviceID:   deviceID,
		layout:     layout,
		conn:       conn,
		sampler:    sampler,
		tracker:    tracker,
		energy:     NewEnergyMeter(),
		dispatcher: dispatcher,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		errs:       errors.NewErrorHandler(opts.Logger, opts.Metrics),
		now:        opts.Clock,
	}
}

// Subscriptions returns the command topics this device listens on
func Subscriptions(layout topics.Layout, deviceID string) []string {
	return []string{layout.DeviceCommandsTopic(deviceID), layout.CommandsTopic()}
}

// Tick runs one Idle -> Sampling -> Skip|Publish cycle. It never blocks on
// an unreachable broker and never queues telemetry.
func (a *Agent) Tick(ctx context.Context) Outcome {
	outcome := a.tick(ctx)
	a.metrics.IncrementReadings(outcome.String())
	return outcome
}

func (a *Agent) tick(ctx context.Context) Outcome {
	reading, err := a.sampler.Snapshot(ctx)
	if err != nil {
		if !goerrors.Is(err, errors.ErrNoDataYet) {
			a.errs.Handle(ctx, err)
		}
		return Skipped
	}

	a.energy.Add(reading.Power, reading.Time())

	payload, err := message.Encode(reading)
	if err != nil {
		a.log.LogError("Failed to encode reading: %v", err)
		return Skipped
	}

	if !a.conn.Publish(ctx, a.layout.SensorsTopic(), payload) {
		a.log.LogDebug("Broker unreachable, dropping reading at %.0f", reading.Timestamp)
		return Dropped
	}

	logger.LogTrace("📊 V:%.2fV I:%.3fA P:%.2fW T:%.1fC H:%.1f%% Angle:%.0f Energy:%.1fWh",
		reading.Voltage, reading.Current, reading.Power, reading.Temperature, reading.Humidity,
		reading.ServoAngle, a.energy.TodayWh())
	return Published
}

// Poll drains one batch of inbound messages and dispatches each command.
// Undecodable messages are logged and skipped. It returns the number of
// commands applied; an error means the connection is down.
func (a *Agent) Poll(ctx context.Context) (int, error) {
	inbound, err := a.conn.KeepAlive(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, in := range inbound {
		a.metrics.IncrementMessages("command")
		cmd, err := message.DecodeCommand(in.Payload)
		if err != nil {
			var decErr *errors.DecodeError
			if goerrors.As(err, &decErr) {
				a.metrics.IncrementDecodeErrors(decErr.Kind.String())
			}
			a.errs.Handle(ctx, err)
			continue
		}
		a.log.LogDebug("📥 %s on %s", cmd.CommandType(), in.Topic)
		if a.dispatcher.Dispatch(ctx, cmd) {
			applied++
		}
	}
	return applied, nil
}

// Track runs one auto-tracking servo step
func (a *Agent) Track() {
	if angle, moved := a.tracker.AutoTrack(a.now()); moved {
		a.log.LogDebug("☀️ Auto-adjusted to angle: %.1f", angle)
	}
}

// Status builds the current status report
func (a *Agent) Status() message.StatusReport {
	now := a.now()
	return message.StatusReport{
		DeviceID:     a.deviceID,
		Online:       true,
		Timestamp:    message.UnixSeconds(now),
		Mode:         a.tracker.Mode(),
		ServoAngle:   a.tracker.Angle(),
		Status:       a.tracker.Status(now),
		EnergyWh:     a.energy.TodayWh(),
		ActiveFaults: a.tracker.ActiveFaults(now),
	}
}

// ReportStatus publishes the status report, or queues it in the connection
// outbox until the broker is reachable again
func (a *Agent) ReportStatus(ctx context.Context) bool {
	payload, err := message.EncodeStatus(a.Status())
	if err != nil {
		a.log.LogError("Failed to encode status: %v", err)
		return false
	}
	return a.conn.Enqueue(ctx, a.layout.DeviceStatusTopic(a.deviceID), payload, true)
}

// Tracker returns the agent's actuator state
func (a *Agent) Tracker() *Tracker {
	return a.tracker
}

// Energy returns the agent's energy meter
func (a *Agent) Energy() *EnergyMeter {
	return a.energy
}
