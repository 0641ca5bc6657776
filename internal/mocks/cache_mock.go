package mocks

import (
	"context"
	"sync"
	"time"
)

// MockCache records invalidations. Get always misses.
type MockCache struct {
	mu sync.Mutex

	InvalidateCalls []string
	InvalidateErr   error
	SetCalls        []string
}

func NewMockCache() *MockCache {
	return &MockCache{InvalidateCalls: make([]string, 0)}
}

func (m *MockCache) Invalidate(ctx context.Context, keyOrPattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidateCalls = append(m.InvalidateCalls, keyOrPattern)
	return m.InvalidateErr
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, key)
	return nil
}
