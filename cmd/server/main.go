package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/connection"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/events"
	"pv-tracker-bridge/internal/faults"
	"pv-tracker-bridge/internal/forecast"
	"pv-tracker-bridge/internal/health"
	"pv-tracker-bridge/internal/httpapi"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/metrics"
	"pv-tracker-bridge/internal/router"
	"pv-tracker-bridge/internal/services"
	"pv-tracker-bridge/internal/storage"
	"pv-tracker-bridge/internal/topics"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// Application wires the server side of the pipeline: broker connection,
// router, optional sinks and the HTTP API
type Application struct {
	config   *config.Config
	settings config.ServerSettings
	layout   topics.Layout

	conn    *connection.Manager
	router  *router.Router
	health  *health.Monitor
	metrics *metrics.PrometheusMetrics
	service *services.ServerService

	predictions storage.PredictionStore
	redis       *storage.RedisStore
	influx      *storage.InfluxWriter
	kafka       *events.KafkaAlertSink

	closeLog func()
	wg       sync.WaitGroup
}

// NewApplication creates a new server instance
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	closeLog := logger.Setup(&cfg.Logging)
	logger.LogStartup("Logging initialized with level: %s", cfg.Logging.Level)

	app := &Application{
		config:   cfg,
		closeLog: closeLog,
		settings: config.NewServerSettings(cfg),
		layout:   topics.NewLayout(cfg.Topics),
		metrics:  metrics.NewPrometheusMetrics(),
	}
	app.health = health.NewMonitor(app.settings.GracePeriod)

	opts := connection.OptionsFromConfig(cfg.MQTT, "server", app.layout.SensorsTopic(), app.layout.StatusWildcard())
	app.conn = connection.NewManager(opts)

	sinks := app.openSinks(ctx)

	app.router = router.New(app.conn,
		faults.NewRuleDetector(cfg.Faults),
		forecast.NewBaselinePredictor(cfg.Server.RatedPowerW),
		forecast.NewClimatologySource(),
		router.Options{
			Layout:           app.layout,
			ForecastInterval: app.settings.PredictInterval,
			Sinks:            sinks,
			Metrics:          app.metrics,
		})

	app.service = services.NewServerService(app.conn, app.router, app.health, app.metrics, app.settings)
	return app, nil
}

// openSinks connects the enabled side stores. A store that cannot be reached
// at startup is skipped; predictions then fall back to memory.
func (app *Application) openSinks(ctx context.Context) router.Sinks {
	var sinks router.Sinks

	app.predictions = storage.NewMemoryStore()
	if app.config.Storage.Redis.Enabled {
		store, err := storage.NewRedisStore(ctx, app.config.Storage.Redis)
		if err != nil {
			logger.LogWarn("⚠️ Redis unavailable, keeping predictions in memory: %v", err)
		} else {
			logger.LogInfo("🗄️ Predictions stored in Redis at %s", app.config.Storage.Redis.Addr)
			app.redis = store
			app.predictions = store
		}
	}
	sinks.Predictions = app.predictions

	if app.config.Storage.Influx.Enabled {
		app.influx = storage.NewInfluxWriter(app.config.Storage.Influx)
		if err := app.influx.Health(ctx); err != nil {
			logger.LogWarn("⚠️ InfluxDB health check failed, writes will be retried per reading: %v", err)
		}
		logger.LogInfo("📈 Telemetry history written to %s/%s", app.config.Storage.Influx.URL, app.config.Storage.Influx.Bucket)
		sinks.History = app.influx
	}

	if app.config.Events.Kafka.Enabled {
		app.kafka = events.NewKafkaAlertSink(app.config.Events.Kafka)
		logger.LogInfo("📣 Fault alerts streamed to Kafka topic %s", app.config.Events.Kafka.Topic)
		sinks.Alerts = app.kafka
	}

	return sinks
}

// Start connects to the broker and starts the loops
func (app *Application) Start(ctx context.Context) error {
	logger.LogInfo("🚀 Starting PV tracker server (%s)...", Version)
	logger.LogInfo("📡 Topics: %s", app.layout.Describe())

	if err := app.conn.Connect(ctx); err != nil {
		// The service loop keeps retrying; start anyway
		logger.LogWarn("⚠️ Initial broker connection failed: %v", err)
		app.health.RecordError()
	} else {
		app.health.RecordSuccess()
	}
	app.metrics.SetBrokerConnected(app.conn.IsConnected())

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.service.Run(ctx)
	}()

	if app.settings.HTTPPort > 0 {
		handler := httpapi.Handler(httpapi.Deps{
			Health:      app.health,
			Devices:     app.router,
			Predictions: app.predictions,
			Commander:   app.router,
			Metrics:     app.metrics.Handler(),
			Version:     Version,
		})
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := httpapi.Serve(ctx, app.settings.HTTPPort, handler); err != nil {
				logger.LogError("HTTP server error: %v", err)
			}
		}()
	}

	logger.LogInfo("✅ PV tracker server started")
	return nil
}

// Stop waits for the loops to exit and releases every connection
func (app *Application) Stop() {
	logger.LogInfo("🛑 Stopping PV tracker server...")

	app.wg.Wait()
	app.conn.Disconnect()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			logger.LogWarn("⚠️ Error closing Redis: %v", err)
		}
	}
	if app.influx != nil {
		app.influx.Close()
	}
	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			logger.LogWarn("⚠️ Error closing Kafka writer: %v", err)
		}
	}

	logger.LogInfo("✅ PV tracker server stopped")
	app.closeLog()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	configPath := ""
	envPath := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--help" || arg == "-h":
			fmt.Printf("Usage: %s [config_path] [--env path]\n", os.Args[0])
			fmt.Printf("  config_path: Path to configuration file (optional)\n")
			fmt.Printf("  --env: Path to a .env file with secret overrides (default .env)\n")
			return
		case arg == "--env" && i+1 < len(args):
			i++
			envPath = args[i]
		case configPath == "":
			configPath = arg
		}
	}

	config.LoadEnvFile(envPath)

	app, err := NewApplication(ctx, configPath)
	if err != nil {
		logger.LogStartup("Application creation error: %v", err)
		os.Exit(errors.GetDiagnosticCode(err))
	}
	if err := app.Start(ctx); err != nil {
		logger.LogError("Application start error: %v", err)
		os.Exit(1)
	}

	<-sigChan
	logger.LogInfo("📢 Stop signal received...")

	cancel()
	done := make(chan struct{})
	go func() {
		app.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.LogWarn("⚠️ Shutdown timed out")
	}
}
