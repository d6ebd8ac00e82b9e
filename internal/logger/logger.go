package logger

import (
	"log"
	"os"
	"strings"
)

// LogLevel constants
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

var levelOrder = []string{LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug, LogLevelTrace}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GlobalLogging is the active logging configuration used by the Log* helpers
var GlobalLogging *LoggingConfig

// Setup installs cfg as the global configuration and redirects the standard
// logger to cfg.File when one is configured. The returned function closes the
// file, if any.
func Setup(cfg *LoggingConfig) func() {
	if cfg.Level == "" {
		cfg.Level = LogLevelInfo
	}
	GlobalLogging = cfg
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.File == "" {
		return func() {}
	}

	// 0600: logs may contain broker credentials in debug mode
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.Printf("Failed to open log file %s: %v", cfg.File, err)
		return func() {}
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

// shouldLog checks if a message should be logged based on current level
func shouldLog(currentLevel, messageLevel string) bool {
	currentIndex := -1
	messageIndex := -1

	for i, level := range levelOrder {
		if level == currentLevel {
			currentIndex = i
		}
		if level == messageLevel {
			messageIndex = i
		}
	}

	// Unknown levels never hide a message
	if currentIndex == -1 || messageIndex == -1 {
		return true
	}

	return messageIndex <= currentIndex
}

func enabled(level string) bool {
	return GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), level)
}

// LogStartup logs startup messages that should always be visible regardless of log level
func LogStartup(format string, args ...interface{}) {
	log.Printf("🔧 "+format, args...)
}

// LogError logs error messages
func LogError(format string, args ...interface{}) {
	if enabled(LogLevelError) {
		log.Printf("❌ "+format, args...)
	}
}

// LogWarn logs warning messages
func LogWarn(format string, args ...interface{}) {
	if enabled(LogLevelWarn) {
		log.Printf("⚠️ "+format, args...)
	}
}

// LogInfo logs info messages
func LogInfo(format string, args ...interface{}) {
	if enabled(LogLevelInfo) {
		log.Printf("ℹ️ "+format, args...)
	}
}

// LogDebug logs debug messages
func LogDebug(format string, args ...interface{}) {
	if enabled(LogLevelDebug) {
		log.Printf("🔧 "+format, args...)
	}
}

// LogTrace logs trace messages
func LogTrace(format string, args ...interface{}) {
	if enabled(LogLevelTrace) {
		log.Printf("🔍 "+format, args...)
	}
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return enabled(LogLevelDebug)
}

// IsTraceEnabled checks if trace logging is enabled
func IsTraceEnabled() bool {
	return enabled(LogLevelTrace)
}
