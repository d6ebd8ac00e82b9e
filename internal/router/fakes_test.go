package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"pv-tracker-bridge/internal/forecast"
	"pv-tracker-bridge/internal/message"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	down bool
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return false
	}
	p.sent = append(p.sent, published{topic: topic, payload: payload})
	return true
}

func (p *fakePublisher) commands() []message.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []message.Command
	for _, s := range p.sent {
		cmd, err := message.DecodeCommand(s.payload)
		if err == nil {
			out = append(out, cmd)
		}
	}
	return out
}

type detectorFunc func(message.SensorReading) ([]message.Fault, error)

func (f detectorFunc) DetectFaults(r message.SensorReading) ([]message.Fault, error) { return f(r) }

type predictorFunc func(message.SensorReading, forecast.Input) (*message.Prediction, error)

func (f predictorFunc) PredictNextDay(r message.SensorReading, in forecast.Input) (*message.Prediction, error) {
	return f(r, in)
}

func noFaults(message.SensorReading) ([]message.Fault, error) { return nil, nil }

type countingPredictor struct {
	calls int
}

func (p *countingPredictor) PredictNextDay(r message.SensorReading, _ forecast.Input) (*message.Prediction, error) {
	p.calls++
	return &message.Prediction{
		GeneratedAt: r.Timestamp,
		Horizon: []message.HorizonPoint{
			{Timestamp: r.Timestamp + 3600, PredictedPower: 42.5, Confidence: 0.8},
		},
	}, nil
}

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

type fakeStore struct {
	saved map[string]message.Prediction
	err   error
}

func (s *fakeStore) Save(_ context.Context, id string, p message.Prediction) error {
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]message.Prediction)
	}
	s.saved[id] = p
	return nil
}

type fakeAlerts struct {
	alerts int
}

func (a *fakeAlerts) PublishAlert(context.Context, string, message.SensorReading, []message.Fault) error {
	a.alerts++
	return nil
}

type fakeHistory struct {
	calls int
}

func (h *fakeHistory) WriteReading(context.Context, message.SensorReading) error {
	h.calls++
	return errors.New("influx write timeout")
}
