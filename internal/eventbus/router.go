package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Router maps event types to handlers. It is the delivery core shared by
// every Bus implementation and by the Lambda projector.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string][]Handler)}
}

func (r *Router) Subscribe(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
}

// Dispatch runs every handler registered for env.EventType in registration
// order. An event nobody subscribed to is not an error.
func (r *Router) Dispatch(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	handlers := r.handlers[env.EventType]
	r.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RetryPolicy bounds redelivery of a failing envelope.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Backoff: 200 * time.Millisecond}

// Deliver dispatches env, retrying with linear backoff. It returns the last
// handler error once attempts are exhausted, or ctx.Err() if cancelled
// while waiting.
func (r *Router) Deliver(ctx context.Context, env Envelope, policy RetryPolicy, log logrus.FieldLogger) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = r.Dispatch(ctx, env); err == nil {
			return nil
		}
		log.WithFields(logrus.Fields{
			"event_id":   env.ID,
			"event_type": env.EventType,
			"aggregate":  env.AggregateID,
			"attempt":    attempt,
		}).WithError(err).Warn("event delivery failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff * time.Duration(attempt)):
		}
	}
	return err
}
