package main

import (
	"fmt"
	"os"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/topics"
)

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_config <config-file> [env-file]")
		os.Exit(1)
	}

	configPath := os.Args[1]
	if len(os.Args) > 2 {
		config.LoadEnvFile(os.Args[2])
	}
	fmt.Printf("📄 Loading config from: %s\n", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(errors.GetDiagnosticCode(err))
	}

	layout := topics.NewLayout(cfg.Topics)
	device := config.NewDeviceSettings(cfg)
	server := config.NewServerSettings(cfg)

	fmt.Printf("✅ Config loaded successfully!\n")
	fmt.Printf("   MQTT Broker: %s (client id %s, qos %d)\n", cfg.MQTT.BrokerURL(), cfg.MQTT.ClientID, cfg.MQTT.QoS)
	fmt.Printf("   Retry delay: %v, timeout: %v, keep-alive: %v\n",
		cfg.MQTT.RetryDelayDuration(), cfg.MQTT.TimeoutDuration(), cfg.MQTT.KeepAliveDuration())

	fmt.Printf("\n📡 Topics\n")
	fmt.Printf("   Sensors:  %s\n", layout.SensorsTopic())
	fmt.Printf("   Commands: %s\n", layout.CommandsTopic())
	fmt.Printf("   Status:   %s\n", layout.StatusWildcard())

	fmt.Printf("\n🔌 Device\n")
	fmt.Printf("   ID: %s (commands on %s)\n", device.ID, layout.DeviceCommandsTopic(device.ID))
	fmt.Printf("   Sensor read: %v, publish: %v, poll: %v\n",
		device.SensorReadInterval, device.PublishInterval, device.PollInterval)
	fmt.Printf("   Servo update: %v, status report: %v\n", device.ServoUpdateInterval, device.StatusInterval)

	fmt.Printf("\n🖥️ Server\n")
	fmt.Printf("   Poll: %v, forecast interval: %v, grace period: %v\n",
		server.PollInterval, server.PredictInterval, server.GracePeriod)
	if server.HTTPPort > 0 {
		fmt.Printf("   HTTP API: :%d\n", server.HTTPPort)
	} else {
		fmt.Printf("   HTTP API: disabled\n")
	}
	if cfg.Server.RatedPowerW > 0 {
		fmt.Printf("   Forecast model: rated %.0f W\n", cfg.Server.RatedPowerW)
	} else {
		fmt.Printf("   Forecast model: untrained (no predictions will be sent)\n")
	}

	fmt.Printf("\n📏 Validation: voltage 0-%g V, current 0-%g A, temperature %g-%g °C\n",
		cfg.Validation.MaxVoltage, cfg.Validation.MaxCurrent,
		cfg.Validation.MinTemperature, cfg.Validation.MaxTemperature)
	fmt.Printf("🚨 Faults: voltage %g-%g V, current > %g A, temperature warn %g / max %g °C\n",
		cfg.Faults.LowVoltage, cfg.Faults.HighVoltage, cfg.Faults.MaxCurrent,
		cfg.Faults.WarnTemperature, cfg.Faults.MaxTemperature)

	fmt.Printf("\n🗄️ Sinks\n")
	fmt.Printf("   Redis:  %s %s\n", enabled(cfg.Storage.Redis.Enabled), cfg.Storage.Redis.Addr)
	fmt.Printf("   Influx: %s %s\n", enabled(cfg.Storage.Influx.Enabled), cfg.Storage.Influx.URL)
	fmt.Printf("   Kafka:  %s %v\n", enabled(cfg.Events.Kafka.Enabled), cfg.Events.Kafka.Brokers)

	fmt.Printf("\n📝 Logging: level %s", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		fmt.Printf(", file %s", cfg.Logging.File)
	}
	fmt.Println()

	fmt.Println("\n✅ Configuration is valid!")
}
