package eventbus

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrBusFull = errors.New("event bus queue is full")

const defaultQueueSize = 1024

// MemoryBus delivers envelopes in-process. Envelopes of one aggregate always
// land on the same worker, so they are handled in publication order.
type MemoryBus struct {
	*Router
	shards []chan Envelope
	policy RetryPolicy
	log    logrus.FieldLogger
}

type MemoryOption func(*MemoryBus)

func WithRetryPolicy(p RetryPolicy) MemoryOption {
	return func(b *MemoryBus) { b.policy = p }
}

func WithWorkers(n, queueSize int) MemoryOption {
	return func(b *MemoryBus) {
		b.shards = make([]chan Envelope, n)
		for i := range b.shards {
			b.shards[i] = make(chan Envelope, queueSize)
		}
	}
}

func NewMemoryBus(log logrus.FieldLogger, opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		Router: NewRouter(),
		policy: DefaultRetryPolicy,
		log:    log.WithField("component", "memory-bus"),
	}
	WithWorkers(4, defaultQueueSize)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish enqueues env without blocking.
func (b *MemoryBus) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.shardFor(env.AggregateID) <- env:
		return nil
	default:
		return ErrBusFull
	}
}

func (b *MemoryBus) shardFor(aggregateID string) chan Envelope {
	h := fnv.New32a()
	_, _ = h.Write([]byte(aggregateID))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

// Run starts one worker per shard and blocks until ctx is done.
func (b *MemoryBus) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range b.shards {
		log := b.log.WithField("worker", i)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case env := <-shard:
					if err := b.Deliver(ctx, env, b.policy, log); err != nil && ctx.Err() == nil {
						log.WithFields(logrus.Fields{
							"event_id":   env.ID,
							"event_type": env.EventType,
						}).WithError(err).Error("dropping event after exhausting retries")
					}
				}
			}
		})
	}
	return g.Wait()
}
