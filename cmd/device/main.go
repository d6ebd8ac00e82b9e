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
	"pv-tracker-bridge/internal/device"
	"pv-tracker-bridge/internal/health"
	"pv-tracker-bridge/internal/homeassistant"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/metrics"
	"pv-tracker-bridge/internal/sensor"
	"pv-tracker-bridge/internal/services"
	"pv-tracker-bridge/internal/topics"
)

// Application wires one tracker: simulated sensors, servo, command
// dispatcher and the broker connection
type Application struct {
	config   *config.Config
	settings config.DeviceSettings
	layout   topics.Layout

	conn    *connection.Manager
	agent   *device.Agent
	service *services.DeviceService
	ha      *homeassistant.Publisher

	closeLog func()
	wg       sync.WaitGroup
}

// NewApplication creates a new device instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	closeLog := logger.Setup(&cfg.Logging)
	logger.LogStartup("Logging initialized with level: %s", cfg.Logging.Level)

	settings := config.NewDeviceSettings(cfg)
	layout := topics.NewLayout(cfg.Topics)

	offline, err := message.EncodeStatus(message.StatusReport{DeviceID: settings.ID, Online: false})
	if err != nil {
		return nil, fmt.Errorf("error encoding offline status: %w", err)
	}

	opts := connection.OptionsFromConfig(cfg.MQTT, settings.ID, device.Subscriptions(layout, settings.ID)...)
	opts.Will = &connection.Will{
		Topic:    layout.DeviceStatusTopic(settings.ID),
		Payload:  offline,
		Retained: true,
	}
	conn := connection.NewManager(opts)

	source := sensor.NewSimulatedSource(time.Now().UnixNano(), nil)
	tracker := device.NewTracker(source)
	sampler := sensor.NewSampler(source, sensor.NewThresholds(cfg.Validation),
		settings.SensorReadInterval, settings.ID, tracker.Angle)

	dispatcher := device.NewDispatcher(logger.NewStandardLogger())
	device.RegisterTrackerHandlers(dispatcher, tracker, time.Now)

	collector := metrics.NewNullMetrics()
	agent := device.NewAgent(settings.ID, layout, conn, sampler, tracker, dispatcher,
		device.AgentOptions{Metrics: collector})

	app := &Application{
		config:   cfg,
		settings: settings,
		layout:   layout,
		conn:     conn,
		agent:    agent,
		service: services.NewDeviceService(conn, agent,
			health.NewMonitor(15*time.Second), collector, settings),
		closeLog: closeLog,
	}
	if cfg.HA.Enabled {
		app.ha = homeassistant.NewPublisher(cfg.HA, layout)
	}
	return app, nil
}

// Start connects to the broker and starts the device loop
func (app *Application) Start(ctx context.Context) error {
	logger.LogInfo("🚀 Starting PV tracker device %s...", app.settings.ID)
	logger.LogInfo("📡 Topics: %s", app.layout.Describe())

	if err := app.conn.Connect(ctx); err != nil {
		logger.LogWarn("⚠️ Initial broker connection failed, readings will be dropped until it recovers: %v", err)
	} else {
		app.agent.ReportStatus(ctx)
	}
	if app.ha != nil {
		if _, err := app.ha.PublishAllDiscoveries(ctx, app.conn, app.settings.ID); err != nil {
			logger.LogError("Error publishing Home Assistant discovery: %v", err)
		}
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.service.Run(ctx)
	}()

	logger.LogInfo("✅ PV tracker device %s started", app.settings.ID)
	return nil
}

// Stop reports the device offline and disconnects
func (app *Application) Stop() {
	logger.LogInfo("🛑 Stopping PV tracker device %s...", app.settings.ID)

	app.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := app.agent.Status()
	status.Online = false
	payload, err := message.EncodeStatus(status)
	if err == nil && !app.conn.Enqueue(ctx, app.layout.DeviceStatusTopic(app.settings.ID), payload, true) {
		logger.LogWarn("⚠️ Offline status not delivered; the broker will publish the last will")
	}
	app.conn.Disconnect()

	logger.LogInfo("✅ PV tracker device %s stopped", app.settings.ID)
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
			fmt.Printf("  --env: Path to a .env file with overrides such as DEVICE_ID (default .env)\n")
			return
		case arg == "--env" && i+1 < len(args):
			i++
			envPath = args[i]
		case configPath == "":
			configPath = arg
		}
	}

	config.LoadEnvFile(envPath)

	app, err := NewApplication(configPath)
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
	app.Stop()
}
