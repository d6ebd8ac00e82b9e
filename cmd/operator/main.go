package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pv-tracker-bridge/internal/config"
	"pv-tracker-bridge/internal/connection"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/operator"
	"pv-tracker-bridge/internal/topics"

	"github.com/chzyer/readline"
)

// readlineWriter keeps log output from clobbering the prompt
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (int, error) {
	w.rl.Clean()
	n, err := os.Stderr.Write(p)
	w.rl.Refresh()
	return n, err
}

// Console sends operator commands to devices and prints status changes
type Console struct {
	layout topics.Layout
	conn   *connection.Manager
	rl     *readline.Instance
}

func historyFile() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "pv-tracker")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "operator_history")
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(operator.Completions))
	for _, word := range operator.Completions {
		items = append(items, readline.PcItem(word))
	}
	return readline.NewPrefixCompleter(items...)
}

// send publishes one command, reconnecting once if the broker is gone
func (c *Console) send(ctx context.Context, deviceID string, cmd message.Command) error {
	payload, err := message.Encode(cmd)
	if err != nil {
		return err
	}
	topic := c.layout.DeviceCommandsTopic(deviceID)

	if c.conn.Publish(ctx, topic, payload) {
		return nil
	}
	if err := c.conn.Connect(ctx); err != nil {
		return fmt.Errorf("broker unavailable: %w", err)
	}
	if !c.conn.Publish(ctx, topic, payload) {
		return fmt.Errorf("publish to %s failed", topic)
	}
	return nil
}

// watch drains status reports between prompts
func (c *Console) watch(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := c.conn.KeepAlive(ctx)
			if err != nil {
				continue
			}
			for _, msg := range msgs {
				status, err := message.DecodeStatus(msg.Payload)
				if err != nil {
					logger.LogDebug("Ignoring status on %s: %v", msg.Topic, err)
					continue
				}
				state := "offline"
				if status.Online {
					state = fmt.Sprintf("online mode=%s angle=%.1f status=%s energy=%.1fWh",
						status.Mode, status.ServoAngle, status.Status, status.EnergyWh)
				}
				logger.LogInfo("📟 %s %s", status.DeviceID, state)
			}
		}
	}
}

// Run reads lines until quit, EOF or Ctrl+C
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	fmt.Println("PV tracker operator console (type 'help' for commands)")

	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel()
			return
		}
		if err != nil {
			return
		}

		parsed, err := operator.Parse(line)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			continue
		}

		switch parsed.Action {
		case operator.Empty:
		case operator.Help:
			fmt.Println(operator.Usage)
		case operator.Quit:
			return
		case operator.Send:
			sendCtx, sendCancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.send(sendCtx, parsed.DeviceID, parsed.Command)
			sendCancel()
			if err != nil {
				fmt.Printf("❌ %s to %s: %v\n", operator.Describe(parsed.Command), parsed.DeviceID, err)
				continue
			}
			fmt.Printf("✅ %s sent to %s\n", operator.Describe(parsed.Command), parsed.DeviceID)
		}
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	configPath := ""
	envPath := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--help" || arg == "-h":
			fmt.Printf("Usage: %s [config_path] [--env path]\n", os.Args[0])
			fmt.Printf("  config_path: Path to configuration file (optional)\n")
			fmt.Printf("  --env: Path to a .env file with broker credentials (default .env)\n")
			return
		case arg == "--env" && i+1 < len(args):
			i++
			envPath = args[i]
		case configPath == "":
			configPath = arg
		}
	}

	config.LoadEnvFile(envPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.LogStartup("Error loading configuration: %v", err)
		os.Exit(1)
	}
	closeLog := logger.Setup(&cfg.Logging)
	defer closeLog()

	layout := topics.NewLayout(cfg.Topics)
	conn := connection.NewManager(connection.OptionsFromConfig(cfg.MQTT, "operator", layout.StatusWildcard()))
	if err := conn.Connect(ctx); err != nil {
		logger.LogWarn("⚠️ Broker not reachable yet, commands will retry: %v", err)
	}
	defer conn.Disconnect()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "pv> ",
		HistoryFile:  historyFile(),
		AutoComplete: completer(),
	})
	if err != nil {
		logger.LogError("Readline init failed: %v", err)
		os.Exit(1)
	}
	defer func() {
		_ = rl.Close()
		log.SetOutput(os.Stderr)
	}()
	if cfg.Logging.File == "" {
		log.SetOutput(&readlineWriter{rl: rl})
	}
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	console := &Console{layout: layout, conn: conn, rl: rl}
	go console.watch(ctx)
	console.Run(ctx, cancel)
}
