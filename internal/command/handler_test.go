package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/money"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
	"github.com/example/ec-order-engine/internal/mocks"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler *Handler
	store   *store.MemoryStore
	bus     *mocks.MockBus
	hook    *test.Hook
}

func newTestProduct(t *testing.T, id string, stock, minimum int, price string) *product.Product {
	t.Helper()
	p, err := product.New(id, product.Params{
		Name:              "Product " + id,
		Price:             money.MustNew(price, "USD"),
		SKU:               "SKU-" + id,
		StockQuantity:     stock,
		MinimumStockLevel: minimum,
	}, t0)
	require.NoError(t, err)
	return p
}

func newTestHandler(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	c, err := customer.New("cust-1", customer.Params{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "seeded",
	}, t0)
	require.NoError(t, err)
	s.Seed([]*product.Product{
		newTestProduct(t, "prod-a", 10, 2, "10.00"),
		newTestProduct(t, "prod-b", 5, 1, "4.50"),
	}, []*customer.Customer{c})

	bus := mocks.NewMockBus()
	log, hook := test.NewNullLogger()

	seq := 0
	clock := t0
	base := []Option{
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
	}
	h := NewHandler(s, bus, auth.NewHasher(0), log, append(base, opts...)...)
	return &testEnv{handler: h, store: s, bus: bus, hook: hook}
}

func line(productID string, qty int, price, discount string) OrderLine {
	return OrderLine{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
		Currency:  "USD",
		Discount:  decimal.RequireFromString(discount),
	}
}

func placeCmd(lines ...OrderLine) PlaceOrder {
	return PlaceOrder{
		CustomerID:      "cust-1",
		ShippingAddress: "1 Analytical Way",
		BillingAddress:  "1 Analytical Way",
		Items:           lines,
	}
}

func (e *testEnv) stock(t *testing.T, productID string) int {
	t.Helper()
	st, ok := e.store.Product(productID)
	require.True(t, ok)
	return st.StockQuantity
}

func (e *testEnv) warnings() []string {
	var out []string
	for _, entry := range e.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			out = append(out, entry.Message)
		}
	}
	return out
}

type failingUoW struct{ calls int }

func (f *failingUoW) Begin(ctx context.Context) (store.Session, error) {
	f.calls++
	return nil, errors.New("storage must not be touched")
}

// ============================================
// Place Order Tests
// ============================================

func TestPlaceOrder_DeductsStockAndTotals(t *testing.T) {
	env := newTestHandler(t)

	o, err := env.handler.PlaceOrder(context.Background(), placeCmd(
		line("prod-a", 2, "10.00", "1.50"),
		line("prod-b", 3, "4.50", "0"),
	))

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status())
	assert.Equal(t, "32.00 USD", o.Total().String()) // 2*10 - 1.50 + 3*4.50
	assert.Equal(t, "Product prod-a", o.Items()[0].ProductName)
	assert.Equal(t, 8, env.stock(t, "prod-a"))
	assert.Equal(t, 2, env.stock(t, "prod-b"))

	stored, ok := env.store.Order(o.ID())
	require.True(t, ok)
	assert.Equal(t, order.StatusPending, stored.Status)

	assert.Equal(t, []string{
		order.EventOrderPlaced,
		product.EventProductStockChanged,
		product.EventProductStockChanged,
	}, env.bus.EventTypes())
	placed := env.bus.Published(order.EventOrderPlaced)[0]
	assert.Equal(t, o.ID(), placed.AggregateID)
	assert.Equal(t, 1, placed.Version)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	env := newTestHandler(t)

	o, err := env.handler.PlaceOrder(context.Background(), placeCmd(line("prod-b", 6, "4.50", "0")))

	assert.Nil(t, o)
	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)
	assert.Equal(t, "prod-b", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, env.stock(t, "prod-b"))
	assert.Zero(t, env.store.OrderCount())
	assert.Empty(t, env.bus.PublishCalls)
}

func TestPlaceOrder_CumulativeQuantityPerProduct(t *testing.T) {
	env := newTestHandler(t)

	_, err := env.handler.PlaceOrder(context.Background(), placeCmd(
		line("prod-a", 6, "10.00", "0"),
		line("prod-b", 1, "4.50", "0"),
		line("prod-a", 5, "10.00", "0"),
	))

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 11, stockErr.Requested)
	assert.Equal(t, 10, env.stock(t, "prod-a"))
	assert.Equal(t, 5, env.stock(t, "prod-b"))
}

func TestPlaceOrder_MissingReferences(t *testing.T) {
	env := newTestHandler(t)

	cmd := placeCmd(line("prod-a", 1, "10.00", "0"))
	cmd.CustomerID = "ghost"
	_, err := env.handler.PlaceOrder(context.Background(), cmd)
	assert.True(t, apperr.IsNotFoundKind(err, apperr.KindCustomer))

	_, err = env.handler.PlaceOrder(context.Background(), placeCmd(
		line("prod-a", 1, "10.00", "0"),
		line("prod-zzz", 1, "1.00", "0"),
	))
	assert.True(t, apperr.IsNotFoundKind(err, apperr.KindProduct))
	assert.EqualError(t, err, "Product prod-zzz not found")
	assert.Equal(t, 10, env.stock(t, "prod-a"))
}

func TestPlaceOrder_ValidationBeforeStorage(t *testing.T) {
	tests := []struct {
		name  string
		cmd   PlaceOrder
		field string
	}{
		{"no customer", PlaceOrder{ShippingAddress: "s", BillingAddress: "b", Items: []OrderLine{line("p", 1, "1", "0")}}, "customer_id"},
		{"no items", placeCmd(), "items"},
		{"zero quantity", placeCmd(line("p", 0, "1", "0")), "items[0].quantity"},
		{"zero price", placeCmd(line("p", 1, "0", "0")), "items[0].unit_price"},
		{"negative discount", placeCmd(line("p", 1, "1", "-1")), "items[0].discount"},
		{"discount above subtotal", placeCmd(line("p", 2, "1", "2.01")), "items[0].discount"},
		{"bad currency", placeCmd(OrderLine{ProductID: "p", Quantity: 1, UnitPrice: decimal.NewFromInt(1), Currency: "US"}), "items[0].currency"},
		{"mixed currencies", placeCmd(line("p", 1, "1", "0"), OrderLine{ProductID: "q", Quantity: 1, UnitPrice: decimal.NewFromInt(1), Currency: "EUR"}), "items[1].currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uow := &failingUoW{}
			h := NewHandler(uow, mocks.NewMockBus(), auth.NewHasher(0), logrus.New())

			_, err := h.PlaceOrder(context.Background(), tt.cmd)

			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, uow.calls)
		})
	}
}

func TestPlaceOrder_TrustPolicyLogsPriceMismatch(t *testing.T) {
	env := newTestHandler(t)

	o, err := env.handler.PlaceOrder(context.Background(), placeCmd(line("prod-a", 1, "9.00", "0")))

	require.NoError(t, err)
	assert.Equal(t, "9.00 USD", o.Total().String())
	assert.Contains(t, env.warnings(), "requested unit price differs from catalog price")
}

func TestPlaceOrder_CatalogPolicyRejectsPriceMismatch(t *testing.T) {
	env := newTestHandler(t, WithPricePolicy(PriceCatalog))

	_, err := env.handler.PlaceOrder(context.Background(), placeCmd(line("prod-a", 1, "9.00", "0")))

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 10, env.stock(t, "prod-a"))

	o, err := env.handler.PlaceOrder(context.Background(), placeCmd(line("prod-a", 1, "10.00", "0")))
	require.NoError(t, err)
	assert.Equal(t, "10.00 USD", o.Total().String())
}

func TestPlaceOrder_PublishFailureIsLoggedOnly(t *testing.T) {
	env := newTestHandler(t)
	env.bus.PublishErr = errors.New("broker down")

	o, err := env.handler.PlaceOrder(context.Background(), placeCmd(line("prod-a", 1, "10.00", "0")))

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, 9, env.stock(t, "prod-a"))
	assert.Contains(t, env.warnings(), "failed to publish event")
}

// ============================================
// Cancellation Tests
// ============================================

func TestScenario_PlaceConfirmCancelRestoresStock(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()

	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 2, "10.00", "0")))
	require.NoError(t, err)
	assert.Equal(t, 8, env.stock(t, "prod-a"))
	assert.Equal(t, order.StatusPending, o.Status())

	o, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "Confirmed"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status())

	o, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), Reason: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status())
	assert.Equal(t, "customer request", o.CancellationReason())
	assert.Equal(t, 10, env.stock(t, "prod-a"))

	cancelled := env.bus.Published(order.EventOrderCancelled)
	require.Len(t, cancelled, 1)
	var payload order.OrderStatusChanged
	require.NoError(t, cancelled[0].Decode(&payload))
	assert.True(t, payload.StockRestored)
	assert.Equal(t, order.StatusConfirmed, payload.PreviousStatus)
	assert.Len(t, env.bus.Published(product.EventProductStockChanged), 2)
}

func TestScenario_CancelShippedKeepsStock(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()

	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 3, "10.00", "0")))
	require.NoError(t, err)
	assert.Equal(t, 7, env.stock(t, "prod-a"))

	for _, status := range []string{"Confirmed", "Shipped"} {
		_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: status})
		require.NoError(t, err)
	}

	o, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), Reason: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status())
	assert.Equal(t, 7, env.stock(t, "prod-a"))

	var payload order.OrderStatusChanged
	require.NoError(t, env.bus.Published(order.EventOrderCancelled)[0].Decode(&payload))
	assert.False(t, payload.StockRestored)
	assert.Len(t, env.bus.Published(product.EventProductStockChanged), 1)
}

func TestScenario_CancelPendingRestoresEveryLine(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()

	o, err := env.handler.PlaceOrder(ctx, placeCmd(
		line("prod-a", 2, "10.00", "0"),
		line("prod-b", 1, "4.50", "0"),
	))
	require.NoError(t, err)
	assert.Equal(t, 8, env.stock(t, "prod-a"))
	assert.Equal(t, 4, env.stock(t, "prod-b"))

	_, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), Reason: "changed mind"})
	require.NoError(t, err)

	assert.Equal(t, 10, env.stock(t, "prod-a"))
	assert.Equal(t, 5, env.stock(t, "prod-b"))
}

func TestCancelOrder_TerminalStatusesRejected(t *testing.T) {
	for _, final := range []string{"Delivered", "Cancelled"} {
		t.Run(final, func(t *testing.T) {
			env := newTestHandler(t)
			ctx := context.Background()

			o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 2, "10.00", "0")))
			require.NoError(t, err)
			path := []string{"Confirmed", "Shipped", "Delivered"}
			if final == "Cancelled" {
				path = []string{"Cancelled"}
			}
			for _, status := range path {
				_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: status})
				require.NoError(t, err)
			}
			before, _ := env.store.Order(o.ID())
			stockBefore := env.stock(t, "prod-a")
			published := len(env.bus.PublishCalls)

			_, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), Reason: "too late"})

			var stateErr *order.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.ErrorIs(t, err, order.ErrInvalidState)
			assert.Equal(t, order.Status(final), stateErr.Current)
			assert.Equal(t, order.StatusCancelled, stateErr.Attempted)

			after, _ := env.store.Order(o.ID())
			assert.Equal(t, before, after)
			assert.Equal(t, stockBefore, env.stock(t, "prod-a"))
			assert.Len(t, env.bus.PublishCalls, published)
		})
	}
}

func TestCancelOrder_ForeignCustomerIsNotFound(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 1, "10.00", "0")))
	require.NoError(t, err)

	_, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), CustomerID: "cust-2"})

	assert.True(t, apperr.IsNotFoundKind(err, apperr.KindOrder))
	st, _ := env.store.Order(o.ID())
	assert.Equal(t, order.StatusPending, st.Status)

	_, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID(), CustomerID: "cust-1"})
	require.NoError(t, err)
}

func TestCancelOrder_MissingProductIsSkipped(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(
		line("prod-a", 2, "10.00", "0"),
		line("prod-b", 1, "4.50", "0"),
	))
	require.NoError(t, err)

	sess, err := env.store.Begin(ctx)
	require.NoError(t, err)
	sess.Products().Delete("prod-b")
	_, err = sess.SaveChanges(ctx)
	require.NoError(t, err)

	o, err = env.handler.CancelOrder(ctx, CancelOrder{OrderID: o.ID()})

	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status())
	assert.Equal(t, 10, env.stock(t, "prod-a"))
	assert.Contains(t, env.warnings(), "product missing, stock not restored")
}

func TestCancelOrder_UnknownOrder(t *testing.T) {
	env := newTestHandler(t)

	_, err := env.handler.CancelOrder(context.Background(), CancelOrder{OrderID: "nope"})

	assert.EqualError(t, err, "Order nope not found")
}

// ============================================
// Status Update Tests
// ============================================

func TestUpdateOrderStatus_PendingAlwaysRejected(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 1, "10.00", "0")))
	require.NoError(t, err)

	for _, status := range []string{"Confirmed", "Shipped", "Delivered"} {
		before, _ := env.store.Order(o.ID())

		_, err := env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "Pending"})

		assert.ErrorIs(t, err, order.ErrRevertToPending)
		after, _ := env.store.Order(o.ID())
		assert.Equal(t, before, after)

		_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: status})
		require.NoError(t, err)
	}
}

func TestUpdateOrderStatus_PendingCheckedBeforeStorage(t *testing.T) {
	uow := &failingUoW{}
	h := NewHandler(uow, mocks.NewMockBus(), auth.NewHasher(0), logrus.New())

	_, err := h.UpdateOrderStatus(context.Background(), UpdateOrderStatus{NewStatus: "pending"})

	assert.ErrorIs(t, err, order.ErrRevertToPending)
	assert.EqualError(t, err, "order status cannot be reverted to Pending")
	assert.Zero(t, uow.calls)
}

func TestUpdateOrderStatus_Invalid(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 1, "10.00", "0")))
	require.NoError(t, err)

	_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "Lost"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "Delivered"})
	assert.EqualError(t, err, "cannot transition order from Pending to Delivered")
}

func TestUpdateOrderStatus_PublishesStatusChanged(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 1, "10.00", "0")))
	require.NoError(t, err)

	_, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "confirmed"})
	require.NoError(t, err)

	events := env.bus.Published(order.EventOrderStatusChanged)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Version)
	var payload order.OrderStatusChanged
	require.NoError(t, events[0].Decode(&payload))
	assert.Equal(t, order.StatusPending, payload.PreviousStatus)
	assert.Equal(t, order.StatusConfirmed, payload.NewStatus)
}

func TestUpdateOrderStatus_CancelledRunsCancellation(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	o, err := env.handler.PlaceOrder(ctx, placeCmd(line("prod-a", 4, "10.00", "0")))
	require.NoError(t, err)

	o, err = env.handler.UpdateOrderStatus(ctx, UpdateOrderStatus{OrderID: o.ID(), NewStatus: "Cancelled", Reason: "ops"})

	require.NoError(t, err)
	assert.Equal(t, "ops", o.CancellationReason())
	assert.Equal(t, 10, env.stock(t, "prod-a"))
	assert.Len(t, env.bus.Published(order.EventOrderCancelled), 1)
}

// ============================================
// Catalog and Customer Tests
// ============================================

func TestCreateProduct(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()
	cmd := CreateProduct{
		Name:          "Lamp",
		Price:         decimal.RequireFromString("19.99"),
		Currency:      "usd",
		SKU:           "lamp-1",
		StockQuantity: 3,
	}

	p, err := env.handler.CreateProduct(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, "LAMP-1", p.SKU())
	assert.Equal(t, "19.99 USD", p.Price().String())
	assert.Equal(t, []string{product.EventProductCreated}, env.bus.EventTypes())

	_, err = env.handler.CreateProduct(ctx, cmd)
	var vErr *apperr.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "sku", vErr.Field)
}

func TestCreateProduct_Invalid(t *testing.T) {
	env := newTestHandler(t)

	tests := []struct {
		name  string
		cmd   CreateProduct
		field string
	}{
		{"no name", CreateProduct{Price: decimal.NewFromInt(1), Currency: "USD", SKU: "x"}, "name"},
		{"no sku", CreateProduct{Name: "n", Price: decimal.NewFromInt(1), Currency: "USD"}, "sku"},
		{"zero price", CreateProduct{Name: "n", Currency: "USD", SKU: "x"}, "price"},
		{"bad currency", CreateProduct{Name: "n", Price: decimal.NewFromInt(1), Currency: "dollars", SKU: "x"}, "currency"},
		{"negative stock", CreateProduct{Name: "n", Price: decimal.NewFromInt(1), Currency: "USD", SKU: "x", StockQuantity: -1}, "stock_quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.handler.CreateProduct(context.Background(), tt.cmd)
			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestRegisterCustomer_AndAuthenticate(t *testing.T) {
	env := newTestHandler(t)
	ctx := context.Background()

	c, err := env.handler.RegisterCustomer(ctx, RegisterCustomer{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "Grace@Example.com",
		Phone:     "+1 555-010-9999",
		Password:  "cobol-rules",
	})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", c.Email())
	assert.NotEqual(t, "cobol-rules", c.PasswordHash())
	assert.Equal(t, []string{customer.EventCustomerRegistered}, env.bus.EventTypes())

	got, err := env.handler.Authenticate(ctx, Authenticate{Email: "GRACE@example.com", Password: "cobol-rules"})
	require.NoError(t, err)
	assert.Equal(t, c.ID(), got.ID())

	_, err = env.handler.Authenticate(ctx, Authenticate{Email: "grace@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.handler.Authenticate(ctx, Authenticate{Email: "nobody@example.com", Password: "cobol-rules"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterCustomer_Rejections(t *testing.T) {
	env := newTestHandler(t)
	valid := RegisterCustomer{FirstName: "A", LastName: "B", Email: "new@example.com", Password: "long-enough"}

	tests := []struct {
		name   string
		mutate func(c *RegisterCustomer)
		field  string
	}{
		{"duplicate email", func(c *RegisterCustomer) { c.Email = "ADA@example.com" }, "email"},
		{"bad email", func(c *RegisterCustomer) { c.Email = "not-an-email" }, "email"},
		{"short password", func(c *RegisterCustomer) { c.Password = "short" }, "password"},
		{"bad phone", func(c *RegisterCustomer) { c.Phone = "12" }, "phone"},
		{"missing name", func(c *RegisterCustomer) { c.FirstName = " " }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mutate(&cmd)

			_, err := env.handler.RegisterCustomer(context.Background(), cmd)

			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
	assert.Empty(t, env.bus.PublishCalls)
}

func TestParsePricePolicy(t *testing.T) {
	p, err := ParsePricePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PriceTrust, p)

	p, err = ParsePricePolicy(" Catalog ")
	require.NoError(t, err)
	assert.Equal(t, PriceCatalog, p)

	_, err = ParsePricePolicy("haggle")
	assert.Error(t, err)
}
