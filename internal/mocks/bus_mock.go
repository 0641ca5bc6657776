package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-order-engine/internal/eventbus"
)

// MockBus records published envelopes and never delivers them.
type MockBus struct {
	mu sync.Mutex

	PublishCalls   []eventbus.Envelope
	PublishErr     error
	SubscribeCalls []string
}

func NewMockBus() *MockBus {
	return &MockBus{PublishCalls: make([]eventbus.Envelope, 0)}
}

func (m *MockBus) Publish(ctx context.Context, env eventbus.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, env)
	return m.PublishErr
}

func (m *MockBus) Subscribe(eventType string, h eventbus.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscribeCalls = append(m.SubscribeCalls, eventType)
}

func (m *MockBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// EventTypes lists the event types published so far, in order.
func (m *MockBus) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.PublishCalls))
	for i, env := range m.PublishCalls {
		types[i] = env.EventType
	}
	return types
}

// Published returns the envelopes of one event type.
func (m *MockBus) Published(eventType string) []eventbus.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []eventbus.Envelope
	for _, env := range m.PublishCalls {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}
