package router

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"time"

	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/forecast"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/metrics"
	"pv-tracker-bridge/internal/recovery"
	"pv-tracker-bridge/internal/topics"
)

// Collaborator names used in CollaboratorError and metrics labels
const (
	FaultDetectorName   = "fault_detector"
	ForecastName        = "forecast"
	PredictionStoreName = "prediction_store"
	AlertSinkName       = "alert_stream"
	HistoryName         = "history"
)

// Publisher sends a payload to the broker; false means it was not delivered
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) bool
}

// FaultDetector inspects one reading
type FaultDetector interface {
	DetectFaults(r message.SensorReading) ([]message.Fault, error)
}

// Predictor produces a next-day forecast, or nil when it has none
type Predictor interface {
	PredictNextDay(r message.SensorReading, in forecast.Input) (*message.Prediction, error)
}

// InputSource supplies the weather input for a forecast
type InputSource interface {
	ForecastInput(ctx context.Context, r message.SensorReading) (forecast.Input, error)
}

// PredictionStore keeps the latest dispatched prediction per device
type PredictionStore interface {
	Save(ctx context.Context, deviceID string, p message.Prediction) error
}

// AlertSink forwards fault alerts to an external event stream
type AlertSink interface {
	PublishAlert(ctx context.Context, deviceID string, r message.SensorReading, faults []message.Fault) error
}

// ReadingSink records telemetry history
type ReadingSink interface {
	WriteReading(ctx context.Context, r message.SensorReading) error
}

// Sinks are optional side outputs. They never affect command dispatch.
type Sinks struct {
	Predictions PredictionStore
	Alerts      AlertSink
	History     ReadingSink
}

// Options configures a Router
type Options struct {
	Layout           topics.Layout
	ForecastInterval time.Duration // Default: 1 hour
	SinkTimeout      time.Duration // Default: 2 seconds
	Sinks            Sinks
	Logger           logger.ILogger
	Metrics          metrics.Collector
	Clock            func() time.Time
}

// Result describes what one OnMessage call did
type Result struct {
	DeviceID           string
	Faults             []message.Fault
	FaultAlertSent     bool
	ForecastEvaluated  bool
	Prediction         *message.Prediction
	PredictionSent     bool
	Err                error
	CollaboratorErrors []error
}

// Router turns telemetry into commands for the originating device.
// OnMessage calls are serialized; Dispatch may be called concurrently.
type Router struct {
	mu sync.Mutex

	pub       Publisher
	detector  FaultDetector
	predictor Predictor
	input     InputSource

	layout      topics.Layout
	interval    time.Duration
	sinkTimeout time.Duration
	sinks       Sinks
	breakers    map[string]*recovery.CircuitBreaker

	throttle *ThrottleState
	devices  *registry

	log     logger.ILogger
	metrics metrics.Collector
	errs    *errors.ErrorHandler
	now     func() time.Time
}

var sinkNames = []string{PredictionStoreName, AlertSinkName, HistoryName}

// New creates a router. input may be nil, in which case the predictor
// receives an empty input.
func New(pub Publisher, detector FaultDetector, predictor Predictor, input InputSource, opts Options) *Router {
	if opts.ForecastInterval <= 0 {
		opts.ForecastInterval = time.Hour
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewStandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNullMetrics()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	breakers := make(map[string]*recovery.CircuitBreaker)
	for _, name := range sinkNames {
		breakers[name] = recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{
			Name:        name,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		})
	}

	return &Router{
		pub:         pub,
		detector:    detector,
		predictor:   predictor,
		input:       input,
		layout:      opts.Layout,
		interval:    opts.ForecastInterval,
		sinkTimeout: opts.SinkTimeout,
		sinks:       opts.Sinks,
		breakers:    breakers,
		throttle:    NewThrottleState(),
		devices:     newRegistry(),
		log:         opts.Logger,
		metrics:     opts.Metrics,
		errs:        errors.NewErrorHandler(opts.Logger, opts.Metrics),
		now:         opts.Clock,
	}
}

// Throttle exposes the per-device forecast throttle state
func (r *Router) Throttle() *ThrottleState {
	return r.throttle
}

// Devices returns every known device sorted by id
func (r *Router) Devices() []DeviceInfo {
	return r.devices.list()
}

// Device returns one known device
func (r *Router) Device(id string) (DeviceInfo, bool) {
	return r.devices.get(id)
}

// Breaker returns the circuit breaker guarding a sink
func (r *Router) Breaker(name string) *recovery.CircuitBreaker {
	return r.breakers[name]
}

// SinkStats returns the breaker statistics of every side output in a
// fixed order
func (r *Router) SinkStats() []recovery.CircuitBreakerStats {
	stats := make([]recovery.CircuitBreakerStats, 0, len(sinkNames))
	for _, name := range sinkNames {
		stats = append(stats, r.breakers[name].GetStats())
	}
	return stats
}

// OnMessage routes one inbound broker message
func (r *Router) OnMessage(ctx context.Context, topic string, payload []byte) Result {
	start := time.Now()
	defer func() { r.metrics.ObserveProcessingDuration(time.Since(start)) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	if topic == r.layout.SensorsTopic() {
		r.metrics.IncrementMessages("reading")
		return r.handleReading(ctx, payload)
	}
	if id, ok := r.layout.DeviceFromStatusTopic(topic); ok {
		r.metrics.IncrementMessages("status")
		return r.handleStatus(ctx, id, payload)
	}

	r.metrics.IncrementMessages("unknown")
	r.log.LogDebug("Ignoring message on unrouted topic %s", topic)
	return Result{Err: fmt.Errorf("unrouted topic %q", topic)}
}

func (r *Router) handleReading(ctx context.Context, payload []byte) Result {
	reading, err := message.DecodeReading(payload)
	if err != nil {
		r.dropUndecodable(ctx, err)
		return Result{Err: err}
	}

	now := r.now()
	res := Result{DeviceID: reading.DeviceID}

	// Fault alerts are dispatched before the forecast is considered.
	faults, err := r.detectFaults(reading)
	if err != nil {
		res.CollaboratorErrors = append(res.CollaboratorErrors, err)
		r.collaboratorFailed(ctx, FaultDetectorName, err)
	}
	res.Faults = faults
	r.devices.recordReading(reading, faults, now)

	if len(faults) > 0 {
		res.FaultAlertSent = r.Dispatch(ctx, reading.DeviceID, message.FaultAlert{Faults: faults})
		if res.FaultAlertSent {
			r.metrics.IncrementFaultAlerts()
		}
		r.log.LogWarn("⚠️ %d fault(s) on %s: %s", len(faults), reading.DeviceID, faults[0].Detail)
		if r.sinks.Alerts != nil {
			r.sink(ctx, AlertSinkName, reading.DeviceID, func(ctx context.Context) error {
				return r.sinks.Alerts.PublishAlert(ctx, reading.DeviceID, reading, faults)
			})
		}
	}

	if r.throttle.Due(reading.DeviceID, now, r.interval) {
		res.ForecastEvaluated = true
		prediction, err := r.predict(ctx, reading)
		switch {
		case err != nil:
			res.CollaboratorErrors = append(res.CollaboratorErrors, err)
			r.collaboratorFailed(ctx, ForecastName, err)
		case prediction == nil:
			r.log.LogDebug("No prediction available for %s", reading.DeviceID)
		default:
			res.Prediction = prediction
			res.PredictionSent = r.Dispatch(ctx, reading.DeviceID, message.PowerPrediction{Prediction: *prediction})
			if res.PredictionSent {
				r.metrics.IncrementPredictions()
			}
			// Not rolled back on publish failure: at most one forecast per window.
			r.throttle.Mark(reading.DeviceID, now)
			r.devices.recordPrediction(reading.DeviceID, now)
			if r.sinks.Predictions != nil {
				r.sink(ctx, PredictionStoreName, reading.DeviceID, func(ctx context.Context) error {
					return r.sinks.Predictions.Save(ctx, reading.DeviceID, *prediction)
				})
			}
		}
	}

	if r.sinks.History != nil {
		r.sink(ctx, HistoryName, reading.DeviceID, func(ctx context.Context) error {
			return r.sinks.History.WriteReading(ctx, reading)
		})
	}
	return res
}

func (r *Router) handleStatus(ctx context.Context, topicID string, payload []byte) Result {
	status, err := message.DecodeStatus(payload)
	if err != nil {
		r.dropUndecodable(ctx, err)
		return Result{DeviceID: topicID, Err: err}
	}
	if status.DeviceID != topicID {
		r.log.LogWarn("⚠️ Status for %s published on topic of %s, using topic id", status.DeviceID, topicID)
		status.DeviceID = topicID
	}

	r.devices.recordStatus(status, r.now())
	if !status.Online {
		r.log.LogWarn("📴 Device %s went offline", topicID)
	} else {
		r.log.LogDebug("Status from %s: mode=%s angle=%.1f status=%s", topicID, status.Mode, status.ServoAngle, status.Status)
	}
	return Result{DeviceID: topicID}
}

// Dispatch encodes cmd and publishes it to the device's command topic.
// It reports whether the broker accepted it.
func (r *Router) Dispatch(ctx context.Context, deviceID string, cmd message.Command) bool {
	if !topics.ValidDeviceID(deviceID) {
		r.log.LogWarn("⚠️ Refusing to send %s to invalid device id %q", cmd.CommandType(), deviceID)
		return false
	}
	payload, err := message.Encode(cmd)
	if err != nil {
		r.log.LogError("Failed to encode %s for %s: %v", cmd.CommandType(), deviceID, err)
		return false
	}

	topic := r.layout.DeviceCommandsTopic(deviceID)
	if !r.pub.Publish(ctx, topic, payload) {
		r.metrics.IncrementPublishFailures()
		r.log.LogWarn("⚠️ Could not publish %s to %s (broker unavailable)", cmd.CommandType(), topic)
		return false
	}
	r.log.LogDebug("📤 %s -> %s", cmd.CommandType(), topic)
	return true
}

func (r *Router) detectFaults(reading message.SensorReading) ([]message.Fault, error) {
	var faults []message.Fault
	err := guard(FaultDetectorName, reading.DeviceID, func() error {
		var err error
		faults, err = r.detector.DetectFaults(reading)
		return err
	})
	if err != nil {
		return nil, err
	}
	return faults, nil
}

func (r *Router) predict(ctx context.Context, reading message.SensorReading) (*message.Prediction, error) {
	var prediction *message.Prediction
	err := guard(ForecastName, reading.DeviceID, func() error {
		in := forecast.Input{GeneratedAt: r.now()}
		if r.input != nil {
			var err error
			if in, err = r.input.ForecastInput(ctx, reading); err != nil {
				return fmt.Errorf("forecast input: %w", err)
			}
		}
		var err error
		prediction, err = r.predictor.PredictNextDay(reading, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return prediction, nil
}

// sink runs a best-effort side output behind its circuit breaker
func (r *Router) sink(ctx context.Context, name, deviceID string, fn func(context.Context) error) {
	err := r.breakers[name].Call(func() error {
		sctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
		defer cancel()
		return guard(name, deviceID, func() error { return fn(sctx) })
	})
	if err == nil {
		return
	}
	if goerrors.Is(err, recovery.ErrCircuitOpen) {
		r.log.LogDebug("Skipping %s for %s: %v", name, deviceID, err)
		return
	}
	r.collaboratorFailed(ctx, name, err)
}

func (r *Router) collaboratorFailed(ctx context.Context, name string, err error) {
	r.metrics.IncrementCollaboratorErrors(name)
	r.errs.Handle(ctx, err)
}

func (r *Router) dropUndecodable(ctx context.Context, err error) {
	var decErr *errors.DecodeError
	if goerrors.As(err, &decErr) {
		r.metrics.IncrementDecodeErrors(decErr.Kind.String())
	}
	r.errs.Handle(ctx, err)
}

// guard runs fn, converting its error or panic into a CollaboratorError
func guard(name, deviceID string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			err = errors.NewCollaboratorError(name, err, deviceID)
		}
	}()
	return fn()
}
