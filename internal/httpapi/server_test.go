package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pv-tracker-bridge/internal/message"
	"pv-tracker-bridge/internal/router"
	"pv-tracker-bridge/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealth struct {
	online    bool
	errors    int
	successes int
	last      time.Time
}

func (h *fakeHealth) IsOnline() bool                { return h.online }
func (h *fakeHealth) GetLastSuccessTime() time.Time { return h.last }
func (h *fakeHealth) GetErrorCount() int            { return h.errors }
func (h *fakeHealth) GetSuccessCount() int          { return h.successes }

type fakeDirectory struct {
	devices []router.DeviceInfo
}

func (d *fakeDirectory) Devices() []router.DeviceInfo { return d.devices }

func (d *fakeDirectory) Device(id string) (router.DeviceInfo, bool) {
	for _, dev := range d.devices {
		if dev.ID == id {
			return dev, true
		}
	}
	return router.DeviceInfo{}, false
}

type dispatched struct {
	deviceID string
	cmd      message.Command
}

type fakeCommander struct {
	up   bool
	sent []dispatched
}

func (c *fakeCommander) Dispatch(_ context.Context, id string, cmd message.Command) bool {
	if !c.up {
		return false
	}
	c.sent = append(c.sent, dispatched{deviceID: id, cmd: cmd})
	return true
}

type apiFixture struct {
	handler   http.Handler
	health    *fakeHealth
	commander *fakeCommander
	store     *storage.MemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		health:    &fakeHealth{online: true, successes: 10, last: time.Now()},
		commander: &fakeCommander{up: true},
		store:     storage.NewMemoryStore(),
	}
	dir := &fakeDirectory{devices: []router.DeviceInfo{{ID: "pv_tracker_001", Online: true}}}
	f.handler = Handler(Deps{
		Health:      f.health,
		Devices:     dir,
		Predictions: f.store,
		Commander:   f.commander,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("pv_tracker_messages_received_total 1\n"))
		}),
		Version: "test",
	})
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.BrokerOnline)
	assert.Equal(t, 1, status.Devices)
	assert.Equal(t, "test", status.Version)

	f.health.errors = 3
	f.health.successes = 7
	rec = f.do(http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)

	f.health.online = false
	rec = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pv_tracker_messages_received_total")
}

func TestDeviceEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var devices []router.DeviceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "pv_tracker_001", devices[0].ID)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/devices/pv_tracker_001", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/devices/ghost", "").Code)
}

func TestPredictionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/devices/pv_tracker_001/prediction", "").Code)

	p := message.Prediction{GeneratedAt: 1000, Horizon: []message.HorizonPoint{{Timestamp: 4600, PredictedPower: 80, Confidence: 0.9}}}
	require.NoError(t, f.store.Save(context.Background(), "pv_tracker_001", p))

	rec := f.do(http.MethodGet, "/api/devices/pv_tracker_001/prediction", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got message.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, p, got)
}

func TestPostCommand(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/devices/pv_tracker_001/commands", `{"type":"set_angle","angle":30}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.commander.sent, 1)
	assert.Equal(t, "pv_tracker_001", f.commander.sent[0].deviceID)
	assert.Equal(t, message.SetAngle{Angle: 30}, f.commander.sent[0].cmd)

	f.commander.up = false
	rec = f.do(http.MethodPost, "/api/devices/pv_tracker_001/commands", `{"type":"set_mode","mode":"manual"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPostCommandRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body string
		kind string
	}{
		{"malformed", `{"type":`, "malformed"},
		{"unknown type", `{"type":"reboot"}`, "unknown_type"},
		{"missing payload", `{"type":"set_angle"}`, "missing_field"},
		{"server only", `{"type":"fault_alert","faults":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/devices/pv_tracker_001/commands", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.kind, body["kind"])
		})
	}
	assert.Empty(t, f.commander.sent)
}

func TestPostCommandRejectsInvalidDeviceID(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/devices/%2B/commands", "/api/devices/%23/commands"} {
		rec := f.do(http.MethodPost, path, `{"type":"set_angle","angle":30}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Empty(t, f.commander.sent)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodDelete, "/api/devices", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/devices/pv_tracker_001/commands", "").Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42 seconds", formatDuration(42*time.Second))
	assert.Equal(t, "5 minutes", formatDuration(5*time.Minute))
	assert.Equal(t, "3 hours 20 minutes", formatDuration(3*time.Hour+20*time.Minute))
	assert.Equal(t, "2 days 1 hours", formatDuration(49*time.Hour))
}
