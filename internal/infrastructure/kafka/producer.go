package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/example/ec-order-engine/internal/eventbus"
)

const eventTypeHeader = "event-type"

// Producer writes envelopes keyed by aggregate id, so every event of one
// aggregate lands on the same partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, env eventbus.Envelope) error {
	msg, err := toMessage(env)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s %s", env.EventType, env.ID)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func toMessage(env eventbus.Envelope) (kafka.Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal envelope")
	}
	return kafka.Message{
		Key:     []byte(env.AggregateID),
		Value:   data,
		Time:    env.OccurredOn,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(env.EventType)}},
	}, nil
}

// DecodeMessage turns a record value back into an envelope.
func DecodeMessage(value []byte) (eventbus.Envelope, error) {
	var env eventbus.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return env, errors.Wrap(err, "unmarshal envelope")
	}
	if env.ID == "" || env.EventType == "" || env.AggregateID == "" {
		return env, errors.Errorf("envelope missing required fields: id=%q event_type=%q aggregate_id=%q",
			env.ID, env.EventType, env.AggregateID)
	}
	return env, nil
}
