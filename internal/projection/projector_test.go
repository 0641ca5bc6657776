package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/mocks"
	"github.com/example/ec-order-engine/internal/readmodel"
)

var t0 = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

func newTestProjectors() (*Projectors, *mocks.MockIndex, *mocks.MockCache, *test.Hook) {
	log, hook := test.NewNullLogger()
	index := mocks.NewMockIndex()
	cache := mocks.NewMockCache()
	return New(index, cache, log), index, cache, hook
}

func makeEnvelope(t *testing.T, aggregateID, aggregateType, eventType string, version int, data any) eventbus.Envelope {
	t.Helper()
	env, err := eventbus.NewEnvelope(aggregateID, aggregateType, eventType, version, t0, data)
	require.NoError(t, err)
	return env
}

func productCreated(t *testing.T) eventbus.Envelope {
	return makeEnvelope(t, "prod-1", product.AggregateType, product.EventProductCreated, 1, product.ProductCreated{
		ProductID:         "prod-1",
		Name:              "Desk Lamp",
		Price:             decimal.RequireFromString("24.99"),
		Currency:          "USD",
		SKU:               "LAMP-1",
		StockQuantity:     4,
		MinimumStockLevel: 5,
		OccurredOn:        t0,
	})
}

func orderPlaced(t *testing.T) eventbus.Envelope {
	return makeEnvelope(t, "order-1", order.AggregateType, order.EventOrderPlaced, 1, order.OrderPlaced{
		OrderID:         "order-1",
		CustomerID:      "cust-1",
		TotalAmount:     decimal.RequireFromString("49.98"),
		Currency:        "USD",
		ItemCount:       1,
		ShippingAddress: "1 Main St",
		Items: []order.PlacedItem{
			{ProductID: "prod-1", ProductName: "Desk Lamp", Quantity: 2, LineTotal: decimal.RequireFromString("49.98")},
		},
		OccurredOn: t0,
	})
}

func levels(hook *test.Hook) []logrus.Level {
	var out []logrus.Level
	for _, e := range hook.AllEntries() {
		out = append(out, e.Level)
	}
	return out
}

// ============================================
// Soft / Hard Failure Tests
// ============================================

func TestProductCreated_Indexed(t *testing.T) {
	p, index, cache, hook := newTestProjectors()

	err := p.Products.HandleProductCreated(context.Background(), productCreated(t))

	require.NoError(t, err)
	var doc readmodel.ProductReadModel
	version, ok := index.Document(readmodel.CollectionProducts, "prod-1", &doc)
	require.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Equal(t, "Desk Lamp", doc.Name)
	assert.Equal(t, "24.99", doc.Price.String())
	assert.True(t, doc.LowStock)
	assert.True(t, doc.InStock)
	assert.Equal(t, []string{"products:prod-1", "products:list*"}, cache.InvalidateCalls)
	assert.Empty(t, hook.AllEntries())
}

func TestProductCreated_SoftFailureLogsWarning(t *testing.T) {
	p, index, cache, hook := newTestProjectors()
	index.Reject()

	err := p.Products.HandleProductCreated(context.Background(), productCreated(t))

	assert.NoError(t, err)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "prod-1", hook.LastEntry().Data["document"])
	assert.Empty(t, cache.InvalidateCalls)
}

func TestProductCreated_HardFailureReturnsSameError(t *testing.T) {
	p, index, cache, hook := newTestProjectors()
	unreachable := errors.New("index unreachable")
	index.IndexErr = unreachable

	err := p.Products.HandleProductCreated(context.Background(), productCreated(t))

	assert.Same(t, unreachable, err)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, unreachable, hook.LastEntry().Data[logrus.ErrorKey])
	assert.Empty(t, cache.InvalidateCalls)
}

func TestCacheFailureIsOnlyLogged(t *testing.T) {
	p, _, cache, hook := newTestProjectors()
	cache.InvalidateErr = errors.New("redis down")

	err := p.Products.HandleProductCreated(context.Background(), productCreated(t))

	assert.NoError(t, err)
	assert.Len(t, cache.InvalidateCalls, 2)
	assert.Equal(t, []logrus.Level{logrus.WarnLevel, logrus.WarnLevel}, levels(hook))
}

func TestMalformedPayloadIsHardFailure(t *testing.T) {
	p, index, _, hook := newTestProjectors()
	env := productCreated(t)
	env.Data = []byte(`{"product_id": 12`)

	err := p.Products.HandleProductCreated(context.Background(), env)

	assert.Error(t, err)
	assert.Empty(t, index.IndexCalls)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

// ============================================
// Order Projection Tests
// ============================================

func TestOrderPlaced_EmbedsCustomerSummary(t *testing.T) {
	p, index, cache, _ := newTestProjectors()
	index.SetDocument(search.Document{
		Collection: readmodel.CollectionCustomers,
		ID:         "cust-1",
		Version:    1,
		Body:       readmodel.CustomerReadModel{ID: "cust-1", FullName: "Ada Lovelace", Email: "ada@example.com"},
	})

	require.NoError(t, p.Orders.HandleOrderPlaced(context.Background(), orderPlaced(t)))

	var doc readmodel.OrderReadModel
	_, ok := index.Document(readmodel.CollectionOrders, "order-1", &doc)
	require.True(t, ok)
	assert.Equal(t, "Pending", doc.Status)
	assert.Equal(t, "49.98", doc.TotalAmount.String())
	require.NotNil(t, doc.Customer)
	assert.Equal(t, "Ada Lovelace", doc.Customer.Name)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, 2, doc.Items[0].Quantity)
	assert.Equal(t, []string{"orders:order-1", "customers:cust-1:orders*"}, cache.InvalidateCalls)
}

func TestOrderPlaced_UnknownCustomerStillIndexed(t *testing.T) {
	p, index, _, _ := newTestProjectors()

	require.NoError(t, p.Orders.HandleOrderPlaced(context.Background(), orderPlaced(t)))

	var doc readmodel.OrderReadModel
	_, ok := index.Document(readmodel.CollectionOrders, "order-1", &doc)
	require.True(t, ok)
	assert.Equal(t, &readmodel.CustomerSummary{ID: "cust-1"}, doc.Customer)
}

func TestOrderPlaced_RedeliveryIsIdempotent(t *testing.T) {
	p, index, _, _ := newTestProjectors()
	env := orderPlaced(t)

	require.NoError(t, p.Orders.HandleOrderPlaced(context.Background(), env))
	var first readmodel.OrderReadModel
	index.Document(readmodel.CollectionOrders, "order-1", &first)

	require.NoError(t, p.Orders.HandleOrderPlaced(context.Background(), env))
	var second readmodel.OrderReadModel
	index.Document(readmodel.CollectionOrders, "order-1", &second)

	assert.Equal(t, first, second)
}

func TestOrderCancelled_UpdatesDocument(t *testing.T) {
	p, index, _, _ := newTestProjectors()
	ctx := context.Background()
	require.NoError(t, p.Orders.HandleOrderPlaced(ctx, orderPlaced(t)))

	at := t0.Add(time.Hour)
	env := makeEnvelope(t, "order-1", order.AggregateType, order.EventOrderCancelled, 2, order.OrderStatusChanged{
		OrderID:        "order-1",
		PreviousStatus: order.StatusPending,
		NewStatus:      order.StatusCancelled,
		Reason:         "changed mind",
		StockRestored:  true,
		OccurredOn:     at,
	})
	require.NoError(t, p.Orders.HandleStatusChanged(ctx, env))

	var doc readmodel.OrderReadModel
	version, _ := index.Document(readmodel.CollectionOrders, "order-1", &doc)
	assert.Equal(t, 2, version)
	assert.Equal(t, "Cancelled", doc.Status)
	assert.Equal(t, "changed mind", doc.CancellationReason)
	assert.True(t, doc.StockRestored)
	require.NotNil(t, doc.CancelledAt)
	assert.True(t, at.Equal(*doc.CancelledAt))
}

func TestStatusChanged_MissingDocumentIsSoft(t *testing.T) {
	p, index, _, hook := newTestProjectors()
	env := makeEnvelope(t, "order-9", order.AggregateType, order.EventOrderStatusChanged, 2, order.OrderStatusChanged{
		OrderID:   "order-9",
		NewStatus: order.StatusConfirmed,
	})

	err := p.Orders.HandleStatusChanged(context.Background(), env)

	assert.NoError(t, err)
	assert.Empty(t, index.IndexCalls)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestStatusChanged_LookupErrorIsHard(t *testing.T) {
	p, index, _, _ := newTestProjectors()
	lookup := errors.New("timeout")
	index.GetErr = lookup
	env := makeEnvelope(t, "order-1", order.AggregateType, order.EventOrderStatusChanged, 2, order.OrderStatusChanged{
		OrderID:   "order-1",
		NewStatus: order.StatusShipped,
	})

	err := p.Orders.HandleStatusChanged(context.Background(), env)

	assert.Same(t, lookup, err)
}

// ============================================
// Product Stock & Customer Tests
// ============================================

func TestStockChanged_RefreshesStock(t *testing.T) {
	p, index, _, _ := newTestProjectors()
	ctx := context.Background()
	require.NoError(t, p.Products.HandleProductCreated(ctx, productCreated(t)))

	env := makeEnvelope(t, "prod-1", product.AggregateType, product.EventProductStockChanged, 2, product.ProductStockChanged{
		ProductID:         "prod-1",
		StockQuantity:     0,
		MinimumStockLevel: 5,
		OccurredOn:        t0.Add(time.Minute),
	})
	require.NoError(t, p.Products.HandleStockChanged(ctx, env))

	var doc readmodel.ProductReadModel
	version, _ := index.Document(readmodel.CollectionProducts, "prod-1", &doc)
	assert.Equal(t, 2, version)
	assert.Equal(t, 0, doc.StockQuantity)
	assert.False(t, doc.InStock)
	assert.Equal(t, "Desk Lamp", doc.Name)
}

func TestCustomerRegistered(t *testing.T) {
	p, index, cache, _ := newTestProjectors()
	env := makeEnvelope(t, "cust-1", customer.AggregateType, customer.EventCustomerRegistered, 1, customer.CustomerRegistered{
		CustomerID: "cust-1",
		Email:      "ada@example.com",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		OccurredOn: t0,
	})

	require.NoError(t, p.Customers.HandleCustomerRegistered(context.Background(), env))

	var doc readmodel.CustomerReadModel
	_, ok := index.Document(readmodel.CollectionCustomers, "cust-1", &doc)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", doc.FullName)
	assert.Equal(t, []string{"customers:cust-1"}, cache.InvalidateCalls)
}

// ============================================
// Registration Tests
// ============================================

func TestRegister_SubscribesAllEvents(t *testing.T) {
	p, _, _, _ := newTestProjectors()
	bus := mocks.NewMockBus()

	p.Register(bus)

	assert.ElementsMatch(t, []string{
		order.EventOrderPlaced,
		order.EventOrderStatusChanged,
		order.EventOrderCancelled,
		product.EventProductCreated,
		product.EventProductStockChanged,
		customer.EventCustomerRegistered,
	}, bus.SubscribeCalls)
}

func TestRegister_EndToEndThroughRouter(t *testing.T) {
	log, hook := test.NewNullLogger()
	index := search.NewMemoryIndex()
	p := New(index, mocks.NewMockCache(), log)
	router := eventbus.NewRouter()
	p.Register(router)
	ctx := context.Background()

	require.NoError(t, router.Dispatch(ctx, orderPlaced(t)))
	stale := makeEnvelope(t, "order-1", order.AggregateType, order.EventOrderPlaced, 0, order.OrderPlaced{OrderID: "order-1"})
	require.NoError(t, router.Dispatch(ctx, stale))

	var doc readmodel.OrderReadModel
	found, version, err := index.Get(ctx, readmodel.CollectionOrders, "order-1", &doc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, version)
	assert.Equal(t, "USD", doc.Currency)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
