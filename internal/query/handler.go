// Package query serves read documents from the search index, reading
// through the response cache. Results are eventually consistent with the
// write side.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/readmodel"
)

const (
	DefaultTTL       = 5 * time.Minute
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Handler struct {
	index search.Index
	cache cache.Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewHandler(index search.Index, store cache.Store, ttl time.Duration, log logrus.FieldLogger) *Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Handler{
		index: index,
		cache: store,
		ttl:   ttl,
		log:   log.WithField("component", "query"),
	}
}

// Orders
func (h *Handler) GetOrder(ctx context.Context, id string) (*readmodel.OrderReadModel, error) {
	var doc readmodel.OrderReadModel
	if err := h.getDocument(ctx, cache.OrderKey(id), readmodel.CollectionOrders, id, apperr.KindOrder, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListCustomerOrders scans the most recent orders and keeps the customer's.
func (h *Handler) ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]readmodel.OrderReadModel, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("%s:orders:%d", cache.CustomerKey(customerID), limit)

	var orders []readmodel.OrderReadModel
	if h.cached(ctx, key, &orders) {
		return orders, nil
	}

	raws, err := h.index.List(ctx, readmodel.CollectionOrders, MaxListLimit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders = make([]readmodel.OrderReadModel, 0)
	for _, raw := range raws {
		var o readmodel.OrderReadModel
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, errors.Wrap(err, "decode order document")
		}
		if o.CustomerID == customerID {
			orders = append(orders, o)
		}
		if len(orders) == limit {
			break
		}
	}

	h.store(ctx, key, orders)
	return orders, nil
}

// Products
func (h *Handler) GetProduct(ctx context.Context, id string) (*readmodel.ProductReadModel, error) {
	var doc readmodel.ProductReadModel
	if err := h.getDocument(ctx, cache.ProductKey(id), readmodel.CollectionProducts, id, apperr.KindProduct, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (h *Handler) ListProducts(ctx context.Context, limit int) ([]readmodel.ProductReadModel, error) {
	limit = clampLimit(limit)
	key := fmt.Sprintf("products:list:%d", limit)

	var products []readmodel.ProductReadModel
	if h.cached(ctx, key, &products) {
		return products, nil
	}

	raws, err := h.index.List(ctx, readmodel.CollectionProducts, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products = make([]readmodel.ProductReadModel, 0, len(raws))
	for _, raw := range raws {
		var p readmodel.ProductReadModel
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.Wrap(err, "decode product document")
		}
		products = append(products, p)
	}

	h.store(ctx, key, products)
	return products, nil
}

// Customers
func (h *Handler) GetCustomer(ctx context.Context, id string) (*readmodel.CustomerReadModel, error) {
	var doc readmodel.CustomerReadModel
	if err := h.getDocument(ctx, cache.CustomerKey(id), readmodel.CollectionCustomers, id, apperr.KindCustomer, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// getDocument reads key from the cache, falling back to the index. Misses
// are not cached.
func (h *Handler) getDocument(ctx context.Context, key, collection, id, kind string, dest any) error {
	if h.cached(ctx, key, dest) {
		return nil
	}
	found, _, err := h.index.Get(ctx, collection, id, dest)
	if err != nil {
		return errors.Wrapf(err, "get %s %s", collection, id)
	}
	if !found {
		return apperr.NotFound(kind, id)
	}
	h.store(ctx, key, dest)
	return nil
}

// cached reports a usable hit. Cache faults only degrade to the index.
func (h *Handler) cached(ctx context.Context, key string, dest any) bool {
	data, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		h.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

func (h *Handler) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		h.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	if err := h.cache.Set(ctx, key, data, h.ttl); err != nil {
		h.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
