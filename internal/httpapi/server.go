package httpapi

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"pv-tracker-bridge/internal/errors"
	"pv-tracker-bridge/internal/logger"
	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/router"
	"pv-tracker-bridge/internal/storage"
	"pv-tracker-bridge/internal/topics"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const maxCommandBody = 64 << 10

// DeviceDirectory lists the devices the server has seen
type DeviceDirectory interface {
	Devices() []router.DeviceInfo
	Device(id string) (router.DeviceInfo, bool)
}

// PredictionReader loads the latest prediction of a device
type PredictionReader interface {
	Latest(ctx context.Context, deviceID string) (message.Prediction, error)
}

// Commander publishes a command to one device
type Commander interface {
	Dispatch(ctx context.Context, deviceID string, cmd message.Command) bool
}

// Deps are the components served over HTTP. Metrics may be nil.
type Deps struct {
	Health      HealthChecker
	Devices     DeviceDirectory
	Predictions PredictionReader
	Commander   Commander
	Metrics     http.Handler
	Version     string
}

type api struct {
	deps Deps
}

// NewRouter builds the HTTP routes
func NewRouter(deps Deps) *mux.Router {
	a := &api{deps: deps}
	r := mux.NewRouter()

	r.Handle("/health", NewHealthHandler(deps.Health, func() int { return len(deps.Devices.Devices()) }, deps.Version)).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}

	// Registered on the root router so a method mismatch answers 405
	r.HandleFunc("/api/devices", a.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{id}", a.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{id}/prediction", a.getPrediction).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{id}/commands", a.postCommand).Methods(http.MethodPost)

	r.HandleFunc("/", index).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with panic recovery and access logging
func Handler(deps Deps) http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(logger.IsDebugEnabled()))(NewRouter(deps))
	return handlers.LoggingHandler(accessLog{}, recovered)
}

// accessLog sends access lines to the debug log
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	logger.LogDebug("🌐 %s", strings.TrimSpace(string(p)))
	return len(p), nil
}

// Serve runs the HTTP server until ctx is cancelled
func Serve(ctx context.Context, port int, h http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.Default(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (a *api) listDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Devices.Devices())
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := a.deps.Devices.Device(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown device %q", id), "")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *api) getPrediction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := a.deps.Predictions.Latest(r.Context(), id)
	switch {
	case goerrors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no prediction for %q", id), "")
	case err != nil:
		logger.LogError("Prediction lookup for %s failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, "prediction store unavailable", "")
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// operatorCommands are the command types an operator may send
var operatorCommands = map[string]bool{
	message.TypeSetAngle:  true,
	message.TypeSetMode:   true,
	message.TypeCalibrate: true,
}

func (a *api) postCommand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !topics.ValidDeviceID(id) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid device id %q", id), "")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", "")
		return
	}

	cmd, err := message.DecodeCommand(body)
	if err != nil {
		kind := ""
		var decErr *errors.DecodeError
		if goerrors.As(err, &decErr) {
			kind = decErr.Kind.String()
		}
		writeError(w, http.StatusBadRequest, err.Error(), kind)
		return
	}
	if !operatorCommands[cmd.CommandType()] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("command %s is not accepted from operators", cmd.CommandType()), "")
		return
	}

	if !a.deps.Commander.Dispatch(r.Context(), id, cmd) {
		writeError(w, http.StatusServiceUnavailable, "broker unavailable", "")
		return
	}
	logger.LogInfo("🕹️ Operator %s -> %s", cmd.CommandType(), id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published", "device_id": id, "type": cmd.CommandType()})
}

func index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html>
<head><title>PV Tracker Bridge</title></head>
<body>
<h1>PV Tracker Bridge</h1>
<ul>
<li><a href="/health">Health Check</a></li>
<li><a href="/metrics">Metrics</a></li>
<li><a href="/api/devices">Devices</a></li>
</ul>
</body>
</html>`)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogError("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg, kind string) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = kind
	}
	writeJSON(w, code, body)
}
