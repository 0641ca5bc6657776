package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/eventbus"
)

// Bus is the Kafka-backed eventbus.Bus. Handlers are retried under the
// bus policy before the offset is committed; an envelope that still fails
// is logged and skipped.
type Bus struct {
	*eventbus.Router
	producer *Producer
	consumer *Consumer
	policy   eventbus.RetryPolicy
	log      logrus.FieldLogger
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Retry   eventbus.RetryPolicy
}

func NewBus(cfg Config, log logrus.FieldLogger) *Bus {
	log = log.WithField("component", "kafka-bus")
	b := &Bus{
		Router:   eventbus.NewRouter(),
		producer: NewProducer(cfg.Brokers, cfg.Topic),
		policy:   cfg.Retry,
		log:      log,
	}
	if cfg.GroupID != "" {
		b.consumer = NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID, log)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, env eventbus.Envelope) error {
	return b.producer.Publish(ctx, env)
}

// Run consumes until ctx is done. A publish-only bus (no group id) just
// waits for ctx.
func (b *Bus) Run(ctx context.Context) error {
	if b.consumer == nil {
		<-ctx.Done()
		return nil
	}
	return b.consumer.Consume(ctx, b.handle)
}

func (b *Bus) handle(ctx context.Context, msg kafka.Message) error {
	env, err := DecodeMessage(msg.Value)
	if err != nil {
		// A malformed record will never decode; skip it.
		b.log.WithField("offset", msg.Offset).WithError(err).Error("discarding malformed record")
		return nil
	}
	return b.Deliver(ctx, env, b.policy, b.log)
}

func (b *Bus) Close() error {
	var err error
	if b.consumer != nil {
		err = b.consumer.Close()
	}
	if perr := b.producer.Close(); err == nil {
		err = perr
	}
	return err
}
