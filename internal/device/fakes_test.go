package device

import (
	"context"
	"errors"
	"time"

	"pv-tracker-bridge/internal/connection"
	"pv-tracker-bridge/internal/sensor"
)

type sent struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeConn struct {
	up       bool
	sent     []sent
	queued   []sent
	inbound  []connection.Inbound
	aliveErr error
}

func (c *fakeConn) Publish(_ context.Context, topic string, payload []byte) bool {
	if !c.up {
		return false
	}
	c.sent = append(c.sent, sent{topic: topic, payload: payload})
	return true
}

func (c *fakeConn) Enqueue(ctx context.Context, topic string, payload []byte, retained bool) bool {
	if c.up {
		c.sent = append(c.sent, sent{topic: topic, payload: payload, retained: retained})
		return true
	}
	c.queued = append(c.queued, sent{topic: topic, payload: payload, retained: retained})
	return false
}

func (c *fakeConn) KeepAlive(context.Context) ([]connection.Inbound, error) {
	if c.aliveErr != nil {
		return nil, c.aliveErr
	}
	batch := c.inbound
	c.inbound = nil
	return batch, nil
}

type scriptedSource struct {
	reads []sensor.Raw
	err   error
}

func (s *scriptedSource) Read(context.Context) (sensor.Raw, error) {
	if s.err != nil {
		return sensor.Raw{}, s.err
	}
	if len(s.reads) == 0 {
		return sensor.Raw{}, errors.New("no more reads")
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r, nil
}

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingCalibrator struct {
	params map[string]float64
	err    error
}

func (c *recordingCalibrator) Calibrate(params map[string]float64) error {
	if c.err != nil {
		return c.err
	}
	c.params = params
	return nil
}
