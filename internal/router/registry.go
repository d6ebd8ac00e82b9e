package router

import (
	"sort"
	"sync"
	"time"

	"pv-tracker-bridge/internal/message"
)

// DeviceInfo is what the server knows about one device
type DeviceInfo struct {
	ID             string                 `json:"device_id"`
	Online         bool                   `json:"online"`
	LastSeen       time.Time              `json:"last_seen"`
	LastReading    *message.SensorReading `json:"last_reading,omitempty"`
	LastStatus     *message.StatusReport  `json:"last_status,omitempty"`
	LastPrediction time.Time              `json:"last_prediction"`
	ActiveFaults   []message.Fault        `json:"active_faults,omitempty"`
}

type registry struct {
	mu      sync.RWMutex
	devices map[string]*DeviceInfo
}

func newRegistry() *registry {
	return &registry{devices: make(map[string]*DeviceInfo)}
}

func (r *registry) entry(id string) *DeviceInfo {
	d, ok := r.devices[id]
	if !ok {
		d = &DeviceInfo{ID: id}
		r.devices[id] = d
	}
	return d
}

func (r *registry) recordReading(reading message.SensorReading, faults []message.Fault, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.entry(reading.DeviceID)
	d.Online = true
	d.LastSeen = at
	d.LastReading = &reading
	d.ActiveFaults = faults
}

func (r *registry) recordStatus(status message.StatusReport, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.entry(status.DeviceID)
	d.Online = status.Online
	d.LastSeen = at
	d.LastStatus = &status
}

func (r *registry) recordPrediction(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(id).LastPrediction = at
}

func copyInfo(d *DeviceInfo) DeviceInfo {
	out := *d
	out.ActiveFaults = append([]message.Fault(nil), d.ActiveFaults...)
	return out
}

func (r *registry) list() []DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, copyInfo(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *registry) get(id string) (DeviceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return DeviceInfo{}, false
	}
	return copyInfo(d), true
}
