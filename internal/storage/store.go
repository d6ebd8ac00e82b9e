package storage

import (
	"context"
	"errors"
	"sync"

	"pv-tracker-bridge/internal/message"
)

// ErrNotFound is returned when no prediction is stored for a device
var ErrNotFound = errors.New("prediction not found")

// PredictionStore keeps the latest dispatched prediction per device
type PredictionStore interface {
	Save(ctx context.Context, deviceID string, p message.Prediction) error
	Latest(ctx context.Context, deviceID string) (message.Prediction, error)
}

// Compile-time verification that both stores satisfy PredictionStore
var (
	_ PredictionStore = (*MemoryStore)(nil)
	_ PredictionStore = (*RedisStore)(nil)
)

// MemoryStore is the in-process store used when Redis is disabled
type MemoryStore struct {
	mu          sync.RWMutex
	predictions map[string]message.Prediction
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{predictions: make(map[string]message.Prediction)}
}

// Save replaces the stored prediction for deviceID
func (s *MemoryStore) Save(_ context.Context, deviceID string, p message.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := append([]message.HorizonPoint(nil), p.Horizon...)
	s.predictions[deviceID] = message.Prediction{GeneratedAt: p.GeneratedAt, Horizon: horizon}
	return nil
}

// Latest returns the stored prediction for deviceID or ErrNotFound
func (s *MemoryStore) Latest(_ context.Context, deviceID string) (message.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[deviceID]
	if !ok {
		return message.Prediction{}, ErrNotFound
	}
	return p, nil
}
