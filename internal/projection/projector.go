// Package projection keeps the read models in the search index up to date.
//
// Every handler follows the same failure contract. An index that declines
// a document is a soft failure: it is logged as a warning and the handler
// returns nil. An index error is a hard failure: it is logged and returned
// unchanged so the bus can redeliver. Cache invalidation runs only after a
// successful write and its errors are logged, never returned.
package projection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
)

type indexer struct {
	index search.Index
	cache cache.Invalidator
}

func (ix indexer) write(ctx context.Context, log logrus.FieldLogger, doc search.Document, invalidate ...string) error {
	log = log.WithFields(logrus.Fields{
		"collection": doc.Collection,
		"document":   doc.ID,
		"version":    doc.Version,
	})

	ok, err := ix.index.IndexDocument(ctx, doc)
	if err != nil {
		log.WithError(err).Error("failed to index document")
		return err
	}
	if !ok {
		log.Warn("index rejected document, read model left stale")
		return nil
	}

	for _, key := range invalidate {
		if err := ix.cache.Invalidate(ctx, key); err != nil {
			log.WithField("key", key).WithError(err).Warn("cache invalidation failed")
		}
	}
	return nil
}

func eventLogger(log logrus.FieldLogger, env eventbus.Envelope) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{
		"event_id":   env.ID,
		"event_type": env.EventType,
		"aggregate":  env.AggregateID,
	})
}

// decode reports a malformed payload as a hard failure.
func decode(log logrus.FieldLogger, env eventbus.Envelope, dest any) error {
	if err := env.Decode(dest); err != nil {
		log.WithError(err).Error("failed to decode event")
		return err
	}
	return nil
}

// Projectors groups the per-aggregate handlers.
type Projectors struct {
	Orders    *OrderProjector
	Products  *ProductProjector
	Customers *CustomerProjector
}

func New(index search.Index, invalidator cache.Invalidator, log logrus.FieldLogger) *Projectors {
	ix := indexer{index: index, cache: invalidator}
	log = log.WithField("component", "projector")
	return &Projectors{
		Orders:    &OrderProjector{indexer: ix, log: log.WithField("projection", "order")},
		Products:  &ProductProjector{indexer: ix, log: log.WithField("projection", "product")},
		Customers: &CustomerProjector{indexer: ix, log: log.WithField("projection", "customer")},
	}
}

// Register subscribes every handler to its event types.
func (p *Projectors) Register(sub eventbus.Subscriber) {
	sub.Subscribe(order.EventOrderPlaced, p.Orders.HandleOrderPlaced)
	sub.Subscribe(order.EventOrderStatusChanged, p.Orders.HandleStatusChanged)
	sub.Subscribe(order.EventOrderCancelled, p.Orders.HandleStatusChanged)
	sub.Subscribe(product.EventProductCreated, p.Products.HandleProductCreated)
	sub.Subscribe(product.EventProductStockChanged, p.Products.HandleStockChanged)
	sub.Subscribe(customer.EventCustomerRegistered, p.Customers.HandleCustomerRegistered)
}
