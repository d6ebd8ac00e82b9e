package device

import (
	"sync"
	"time"
)

// EnergyMeter integrates power readings into energy produced today (Wh)
type EnergyMeter struct {
	mu   sync.Mutex
	wh   float64
	last time.Time
}

// NewEnergyMeter creates a meter at zero
func NewEnergyMeter() *EnergyMeter {
	return &EnergyMeter{}
}

// Add integrates powerW over the time since the previous sample. The total
// resets when at falls on a new local day.
func (m *EnergyMeter) Add(powerW float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last.IsZero() || !at.After(m.last) {
		if m.last.IsZero() {
			m.last = at
		}
		return
	}
	if !sameDay(m.last, at) {
		m.wh = 0
		m.last = at
		return
	}

	m.wh += powerW * at.Sub(m.last).Hours()
	m.last = at
}

// TodayWh returns the energy produced since local midnight
func (m *EnergyMeter) TodayWh() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wh
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
