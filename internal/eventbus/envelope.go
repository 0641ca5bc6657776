// Package eventbus carries domain events from the write side to the
// read-model projections.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Envelope wraps one domain event with the metadata projections need.
// Version is the aggregate version at commit.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	OccurredOn    time.Time       `json:"occurred_on"`
	Version       int             `json:"version"`
}

func NewEnvelope(aggregateID, aggregateType, eventType string, version int, occurredOn time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", eventType)
	}
	return Envelope{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          data,
		OccurredOn:    occurredOn.UTC(),
		Version:       version,
	}, nil
}

// Decode unmarshals the payload into dest.
func (e Envelope) Decode(dest any) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return errors.Wrapf(err, "decode %s %s", e.EventType, e.ID)
	}
	return nil
}

type Handler func(ctx context.Context, env Envelope) error

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Subscriber interface {
	Subscribe(eventType string, h Handler)
}

// Bus delivers published envelopes to subscribers until ctx is done.
type Bus interface {
	Publisher
	Subscriber
	Run(ctx context.Context) error
}
