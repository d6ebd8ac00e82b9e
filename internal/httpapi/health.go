package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status          string    `json:"status"`            // "healthy", "degraded", "unhealthy"
	Timestamp       time.Time `json:"timestamp"`         // Current timestamp
	Uptime          string    `json:"uptime"`            // Application uptime
	BrokerOnline    bool      `json:"broker_online"`     // Broker connection status
	LastSuccessPoll string    `json:"last_success_poll"` // Time since last successful broker cycle
	ErrorCount      int       `json:"error_count"`       // Failed broker cycles
	SuccessCount    int       `json:"success_count"`     // Successful broker cycles
	Devices         int       `json:"devices"`           // Devices seen since start
	Version         string    `json:"version,omitempty"` // Application version (optional)
}

// HealthChecker interface for providing health information
type HealthChecker interface {
	IsOnline() bool
	GetLastSuccessTime() time.Time
	GetErrorCount() int
	GetSuccessCount() int
}

// HealthHandler provides HTTP health check endpoint
type HealthHandler struct {
	startTime     time.Time
	healthChecker HealthChecker
	devices       func() int
	version       string
	now           func() time.Time
}

// NewHealthHandler creates a new health check handler. devices may be nil.
func NewHealthHandler(healthChecker HealthChecker, devices func() int, version string) *HealthHandler {
	if devices == nil {
		devices = func() int { return 0 }
	}
	return &HealthHandler{
		startTime:     time.Now(),
		healthChecker: healthChecker,
		devices:       devices,
		version:       version,
		now:           time.Now,
	}
}

// ServeHTTP implements http.Handler interface for /health endpoint
func (hh *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := hh.getHealthStatus()

	statusCode := http.StatusOK
	if status.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode health status: %v", err), http.StatusInternalServerError)
	}
}

// getHealthStatus determines current health status
func (hh *HealthHandler) getHealthStatus() HealthStatus {
	now := hh.now()

	isOnline := hh.healthChecker.IsOnline()
	lastSuccess := hh.healthChecker.GetLastSuccessTime()
	errorCount := hh.healthChecker.GetErrorCount()
	successCount := hh.healthChecker.GetSuccessCount()

	lastPollStr := "never"
	if !lastSuccess.IsZero() {
		timeSince := now.Sub(lastSuccess)
		switch {
		case timeSince < time.Minute:
			lastPollStr = fmt.Sprintf("%d seconds ago", int(timeSince.Seconds()))
		case timeSince < time.Hour:
			lastPollStr = fmt.Sprintf("%d minutes ago", int(timeSince.Minutes()))
		default:
			lastPollStr = fmt.Sprintf("%d hours ago", int(timeSince.Hours()))
		}
	}

	status := "healthy"
	if !isOnline {
		status = "unhealthy"
	} else if total := errorCount + successCount; errorCount > 0 && total > 0 {
		errorRate := float64(errorCount) / float64(total) * 100.0
		if errorRate > 50.0 {
			status = "unhealthy"
		} else if errorRate > 20.0 {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:          status,
		Timestamp:       now,
		Uptime:          formatDuration(now.Sub(hh.startTime)),
		BrokerOnline:    isOnline,
		LastSuccessPoll: lastPollStr,
		ErrorCount:      errorCount,
		SuccessCount:    successCount,
		Devices:         hh.devices(),
		Version:         hh.version,
	}
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours %d minutes", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%d days %d hours", int(d.Hours())/24, int(d.Hours())%24)
	}
}
