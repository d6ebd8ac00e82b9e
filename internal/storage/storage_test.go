package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"pv-tracker-bridge/internal/message"

	"github.com/go-redis/redis/v8"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePrediction() message.Prediction {
	return message.Prediction{
		GeneratedAt: 1000,
		Horizon: []message.HorizonPoint{
			{Timestamp: 4600, PredictedPower: 120.5, Confidence: 0.8},
			{Timestamp: 8200, PredictedPower: 180, Confidence: 0.8},
		},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Latest(ctx, "pv_tracker_001")
	assert.ErrorIs(t, err, ErrNotFound)

	p := samplePrediction()
	require.NoError(t, s.Save(ctx, "pv_tracker_001", p))
	p.Horizon[0].PredictedPower = 0

	got, err := s.Latest(ctx, "pv_tracker_001")
	require.NoError(t, err)
	assert.Equal(t, 120.5, got.Horizon[0].PredictedPower, "stored copy is independent of the caller's slice")
}

type fakeRedis struct {
	values map[string]string
	ttl    map[string]time.Duration
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := newRedisStore(fake, 48*time.Hour)

	_, err := s.Latest(ctx, "pv_tracker_001")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "pv_tracker_001", samplePrediction()))
	assert.Contains(t, fake.values, "prediction:pv_tracker_001")
	assert.Equal(t, 48*time.Hour, fake.ttl["prediction:pv_tracker_001"])

	got, err := s.Latest(ctx, "pv_tracker_001")
	require.NoError(t, err)
	assert.Equal(t, samplePrediction(), got)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.True(t, fake.closed)
}

func TestRedisStoreErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := newRedisStore(fake, time.Hour)

	fake.values[Key("broken")] = "{not json"
	_, err := s.Latest(ctx, "broken")
	assert.ErrorContains(t, err, "corrupt prediction")

	fake.err = errors.New("connection refused")
	assert.Error(t, s.Save(ctx, "pv_tracker_001", samplePrediction()))
	_, err = s.Latest(ctx, "pv_tracker_001")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Ping(ctx))
}

type fakePointWriter struct {
	points []*write.Point
	err    error
}

func (f *fakePointWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, point...)
	return nil
}

func TestInfluxWriter(t *testing.T) {
	fake := &fakePointWriter{}
	w := &InfluxWriter{api: fake}
	r := message.SensorReading{
		Timestamp: 1000, Voltage: 12, Current: 1.5, Power: 18,
		Temperature: 25, Humidity: 40, ServoAngle: 90, DeviceID: "pv_tracker_001",
	}

	require.NoError(t, w.WriteReading(context.Background(), r))
	require.Len(t, fake.points, 1)

	line := write.PointToLineProtocol(fake.points[0], time.Second)
	assert.Contains(t, line, "pv_tracker_readings,device_id=pv_tracker_001 ")
	assert.Contains(t, line, "power=18")
	assert.Contains(t, line, "servo_angle=90")
	assert.Equal(t, int64(1000), fake.points[0].Time().Unix())

	fake.err = errors.New("unauthorized")
	assert.ErrorContains(t, w.WriteReading(context.Background(), r), "influx write")
	w.Close()
}
