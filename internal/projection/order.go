package projection

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/readmodel"
)

type OrderProjector struct {
	indexer
	log logrus.FieldLogger
}

func (p *OrderProjector) HandleOrderPlaced(ctx context.Context, env eventbus.Envelope) error {
	log := eventLogger(p.log, env)

	var e order.OrderPlaced
	if err := decode(log, env, &e); err != nil {
		return err
	}

	doc := readmodel.OrderReadModel{
		ID:              e.OrderID,
		CustomerID:      e.CustomerID,
		Customer:        p.customerSummary(ctx, log, e.CustomerID),
		Status:          string(order.StatusPending),
		TotalAmount:     e.TotalAmount,
		Currency:        e.Currency,
		ItemCount:       e.ItemCount,
		Items:           make([]readmodel.OrderItemReadModel, 0, len(e.Items)),
		ShippingAddress: e.ShippingAddress,
		PlacedAt:        e.OccurredOn,
		UpdatedAt:       e.OccurredOn,
		Version:         env.Version,
	}
	for _, item := range e.Items {
		doc.Items = append(doc.Items, readmodel.OrderItemReadModel{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	return p.write(ctx, log, search.Document{
		Collection: readmodel.CollectionOrders,
		ID:         e.OrderID,
		Version:    env.Version,
		Body:       doc,
	}, cache.OrderKey(e.OrderID), cache.CustomerOrdersPattern(e.CustomerID))
}

// customerSummary embeds what the index knows about the customer. The
// order document is still written when the lookup fails.
func (p *OrderProjector) customerSummary(ctx context.Context, log logrus.FieldLogger, customerID string) *readmodel.CustomerSummary {
	var c readmodel.CustomerReadModel
	found, _, err := p.index.Get(ctx, readmodel.CollectionCustomers, customerID, &c)
	if err != nil {
		log.WithError(err).Warn("customer lookup failed, embedding id only")
	}
	if err != nil || !found {
		return &readmodel.CustomerSummary{ID: customerID}
	}
	return c.Summary()
}

// HandleStatusChanged serves both OrderStatusChanged and OrderCancelled.
func (p *OrderProjector) HandleStatusChanged(ctx context.Context, env eventbus.Envelope) error {
	log := eventLogger(p.log, env)

	var e order.OrderStatusChanged
	if err := decode(log, env, &e); err != nil {
		return err
	}

	var doc readmodel.OrderReadModel
	found, _, err := p.index.Get(ctx, readmodel.CollectionOrders, e.OrderID, &doc)
	if err != nil {
		log.WithError(err).Error("failed to load order document")
		return err
	}
	if !found {
		log.Warn("order document not indexed yet, status change skipped")
		return nil
	}

	applyStatus(&doc, e)
	doc.Version = env.Version

	return p.write(ctx, log, search.Document{
		Collection: readmodel.CollectionOrders,
		ID:         e.OrderID,
		Version:    env.Version,
		Body:       doc,
	}, cache.OrderKey(e.OrderID), cache.CustomerOrdersPattern(doc.CustomerID))
}

func applyStatus(doc *readmodel.OrderReadModel, e order.OrderStatusChanged) {
	at := e.OccurredOn
	doc.Status = string(e.NewStatus)
	doc.UpdatedAt = at
	switch e.NewStatus {
	case order.StatusConfirmed:
		doc.ConfirmedAt = &at
	case order.StatusShipped:
		doc.ShippedAt = &at
	case order.StatusDelivered:
		doc.DeliveredAt = &at
	case order.StatusCancelled:
		doc.CancelledAt = &at
		doc.CancellationReason = e.Reason
		doc.StockRestored = e.StockRestored
	}
}
