// Package command holds the write-side coordinators. Each command runs in
// one unit of work and publishes its domain events only after commit.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/money"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// PricePolicy decides what happens when a requested unit price differs
// from the catalog price.
type PricePolicy string

const (
	// PriceTrust keeps the requested price and logs the mismatch.
	PriceTrust PricePolicy = "trust"
	// PriceCatalog rejects the command.
	PriceCatalog PricePolicy = "catalog"
)

func ParsePricePolicy(s string) (PricePolicy, error) {
	switch p := PricePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PriceTrust:
		return PriceTrust, nil
	case PriceCatalog:
		return PriceCatalog, nil
	default:
		return "", fmt.Errorf("unknown price policy %q", s)
	}
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

type Handler struct {
	uow     store.UnitOfWork
	bus     eventbus.Publisher
	hasher  PasswordHasher
	log     logrus.FieldLogger
	now     func() time.Time
	newID   func() string
	pricing PricePolicy
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(h *Handler) { h.newID = newID }
}

func WithPricePolicy(p PricePolicy) Option {
	return func(h *Handler) { h.pricing = p }
}

func NewHandler(uow store.UnitOfWork, bus eventbus.Publisher, hasher PasswordHasher, log logrus.FieldLogger, opts ...Option) *Handler {
	h := &Handler{
		uow:     uow,
		bus:     bus,
		hasher:  hasher,
		log:     log.WithField("component", "command"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
		pricing: PriceTrust,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ============================================
// Order placement
// ============================================

// PlaceOrder creates a Pending order and deducts stock for every line in
// one commit. Products are locked in ascending id order.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	if _, err := sess.Customers().GetByID(ctx, cmd.CustomerID); err != nil {
		return nil, err
	}

	requested := make(map[string]int)
	for _, line := range cmd.Items {
		requested[line.ProductID] += line.Quantity
	}
	ids := sortedKeys(requested)

	products := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		p, err := sess.Products().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !p.HasStock(requested[id]) {
			return nil, &product.InsufficientStockError{
				ProductID: id,
				Available: p.StockQuantity(),
				Requested: requested[id],
			}
		}
		products[id] = p
	}

	items := make([]order.Item, 0, len(cmd.Items))
	for i, line := range cmd.Items {
		p := products[line.ProductID]
		price, err := h.unitPrice(i, line, p)
		if err != nil {
			return nil, err
		}
		discount, err := money.New(line.Discount, price.Currency())
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("items[%d].discount", i), err.Error())
		}
		name := p.Name()
		if name == "" {
			name = line.ProductName
		}
		item, err := order.NewItem(p.ID(), name, line.Quantity, price, discount)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	now := h.now()
	o, err := order.New(h.newID(), cmd.CustomerID, cmd.ShippingAddress, cmd.BillingAddress, items, now)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := products[id].Deduct(requested[id], now); err != nil {
			return nil, err
		}
		sess.Products().Update(products[id])
	}
	sess.Orders().Add(o)

	if _, err := sess.SaveChanges(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "commit order placement")
	}

	h.log.WithFields(logrus.Fields{
		"order_id":    o.ID(),
		"customer_id": o.CustomerID(),
		"total":       o.Total().String(),
	}).Info("order placed")

	h.publish(ctx, o.ID(), order.AggregateType, order.EventOrderPlaced, o.Version(), o.CreatedAt(), order.NewOrderPlaced(o))
	for _, id := range ids {
		h.publishStock(ctx, products[id])
	}
	return o, nil
}

func (h *Handler) unitPrice(i int, line OrderLine, p *product.Product) (money.Money, error) {
	field := fmt.Sprintf("items[%d].unit_price", i)
	requested, err := money.New(line.UnitPrice, line.Currency)
	if err != nil {
		return money.Money{}, apperr.Validation(field, err.Error())
	}
	if requested.Equal(p.Price()) {
		return requested, nil
	}
	if h.pricing == PriceCatalog {
		return money.Money{}, apperr.Validation(field, fmt.Sprintf("does not match catalog price %s", p.Price()))
	}
	h.log.WithFields(logrus.Fields{
		"product_id": p.ID(),
		"requested":  requested.String(),
		"catalog":    p.Price().String(),
	}).Warn("requested unit price differs from catalog price")
	return requested, nil
}

// ============================================
// Cancellation and status changes
// ============================================

// CancelOrder cancels an order and restores stock when it had not shipped.
// A CustomerID that does not own the order is reported as not found.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return nil, apperr.Validation("order_id", "is required")
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	o, err := sess.Orders().GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if cmd.CustomerID != "" && o.CustomerID() != cmd.CustomerID {
		return nil, apperr.NotFound(apperr.KindOrder, cmd.OrderID)
	}
	return h.cancel(ctx, sess, o, cmd.Reason)
}

// UpdateOrderStatus advances an order. Pending is rejected before the
// order is loaded; Cancelled runs the cancellation path.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	target, err := order.ParseStatus(cmd.NewStatus)
	if err == nil && target == order.StatusPending {
		return nil, order.ErrRevertToPending
	}
	if err != nil {
		return nil, apperr.Validation("new_status", err.Error())
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		return nil, apperr.Validation("order_id", "is required")
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	o, err := sess.Orders().GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if target == order.StatusCancelled {
		return h.cancel(ctx, sess, o, cmd.Reason)
	}

	previous := o.Status()
	if err := o.TransitionTo(target, cmd.Reason, h.now()); err != nil {
		return nil, err
	}
	sess.Orders().Update(o)

	if _, err := sess.SaveChanges(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "commit status change")
	}

	h.log.WithFields(logrus.Fields{
		"order_id": o.ID(),
		"from":     previous,
		"to":       o.Status(),
	}).Info("order status changed")

	eventType, payload := order.NewStatusChanged(o, previous, false)
	h.publish(ctx, o.ID(), order.AggregateType, eventType, o.Version(), o.UpdatedAt(), payload)
	return o, nil
}

func (h *Handler) cancel(ctx context.Context, sess store.Session, o *order.Order, reason string) (*order.Order, error) {
	previous := o.Status()
	now := h.now()
	if err := o.Cancel(reason, now); err != nil {
		return nil, err
	}

	restoreStock := previous == order.StatusPending || previous == order.StatusConfirmed
	var restored []*product.Product
	if restoreStock {
		quantities := make(map[string]int)
		for _, item := range o.Items() {
			quantities[item.ProductID] += item.Quantity
		}
		for _, id := range sortedKeys(quantities) {
			p, err := sess.Products().GetByID(ctx, id)
			if apperr.IsNotFoundKind(err, apperr.KindProduct) {
				h.log.WithFields(logrus.Fields{
					"order_id":   o.ID(),
					"product_id": id,
					"quantity":   quantities[id],
				}).Warn("product missing, stock not restored")
				continue
			}
			if err != nil {
				return nil, err
			}
			if err := p.Restore(quantities[id], now); err != nil {
				return nil, err
			}
			sess.Products().Update(p)
			restored = append(restored, p)
		}
	}
	sess.Orders().Update(o)

	if _, err := sess.SaveChanges(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "commit cancellation")
	}

	h.log.WithFields(logrus.Fields{
		"order_id":       o.ID(),
		"from":           previous,
		"stock_restored": restoreStock,
	}).Info("order cancelled")

	eventType, payload := order.NewStatusChanged(o, previous, restoreStock)
	h.publish(ctx, o.ID(), order.AggregateType, eventType, o.Version(), o.UpdatedAt(), payload)
	for _, p := range restored {
		h.publishStock(ctx, p)
	}
	return o, nil
}

// ============================================
// Catalog and customers
// ============================================

func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	price, err := money.New(cmd.Price, cmd.Currency)
	if err != nil {
		return nil, apperr.Validation("currency", err.Error())
	}
	p, err := product.New(h.newID(), product.Params{
		Name:              cmd.Name,
		Description:       cmd.Description,
		Price:             price,
		SKU:               cmd.SKU,
		StockQuantity:     cmd.StockQuantity,
		MinimumStockLevel: cmd.MinimumStockLevel,
		Featured:          cmd.Featured,
		CategoryID:        cmd.CategoryID,
	}, h.now())
	if err != nil {
		return nil, productValidation(err)
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	sess.Products().Add(p)
	if _, err := sess.SaveChanges(ctx); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Validation("sku", "already in use")
		}
		return nil, pkgerrors.Wrap(err, "commit product")
	}

	h.log.WithFields(logrus.Fields{"product_id": p.ID(), "sku": p.SKU()}).Info("product created")
	h.publish(ctx, p.ID(), product.AggregateType, product.EventProductCreated, p.Version(), p.CreatedAt(), product.NewProductCreated(p))
	return p, nil
}

func productValidation(err error) error {
	switch {
	case errors.Is(err, product.ErrInvalidName):
		return apperr.Validation("name", err.Error())
	case errors.Is(err, product.ErrInvalidSKU):
		return apperr.Validation("sku", err.Error())
	case errors.Is(err, product.ErrInvalidPrice):
		return apperr.Validation("price", err.Error())
	case errors.Is(err, product.ErrInvalidStockLevel):
		return apperr.Validation("stock_quantity", err.Error())
	default:
		return err
	}
}

// RegisterCustomer hashes the password before the unit of work begins.
func (h *Handler) RegisterCustomer(ctx context.Context, cmd RegisterCustomer) (*customer.Customer, error) {
	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, apperr.Validation("password", err.Error())
	}
	c, err := customer.New(h.newID(), customer.Params{
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Email:     cmd.Email,
		Phone:     cmd.Phone,
		Addresses: cmd.Addresses,
		Preferences: customer.Preferences{
			Newsletter:        cmd.Newsletter,
			PreferredCurrency: cmd.PreferredCurrency,
		},
		PasswordHash: hash,
	}, h.now())
	if err != nil {
		return nil, customerValidation(err)
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	_, err = sess.Customers().GetByEmail(ctx, c.Email())
	switch {
	case err == nil:
		return nil, apperr.Validation("email", "already registered")
	case !apperr.IsNotFoundKind(err, apperr.KindCustomer):
		return nil, err
	}

	sess.Customers().Add(c)
	if _, err := sess.SaveChanges(ctx); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Validation("email", "already registered")
		}
		return nil, pkgerrors.Wrap(err, "commit customer")
	}

	h.log.WithField("customer_id", c.ID()).Info("customer registered")
	h.publish(ctx, c.ID(), customer.AggregateType, customer.EventCustomerRegistered, c.Version(), c.CreatedAt(), customer.NewRegistered(c))
	return c, nil
}

func customerValidation(err error) error {
	switch {
	case errors.Is(err, customer.ErrInvalidName):
		return apperr.Validation("name", err.Error())
	case errors.Is(err, customer.ErrInvalidEmail):
		return apperr.Validation("email", err.Error())
	case errors.Is(err, customer.ErrInvalidPhone):
		return apperr.Validation("phone", err.Error())
	case errors.Is(err, customer.ErrInvalidCurrency):
		return apperr.Validation("preferred_currency", err.Error())
	default:
		return err
	}
}

// Authenticate returns the customer whose credentials match.
func (h *Handler) Authenticate(ctx context.Context, cmd Authenticate) (*customer.Customer, error) {
	email, err := customer.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Rollback()

	c, err := sess.Customers().GetByEmail(ctx, email)
	if apperr.IsNotFoundKind(err, apperr.KindCustomer) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !h.hasher.Check(cmd.Password, c.PasswordHash()) {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

// ============================================
// Publication
// ============================================

// publish never fails the command: the write is already committed.
func (h *Handler) publish(ctx context.Context, aggregateID, aggregateType, eventType string, version int, at time.Time, payload any) {
	log := h.log.WithFields(logrus.Fields{
		"aggregate_id": aggregateID,
		"event_type":   eventType,
	})
	env, err := eventbus.NewEnvelope(aggregateID, aggregateType, eventType, version, at, payload)
	if err != nil {
		log.WithError(err).Error("failed to build event")
		return
	}
	if err := h.bus.Publish(ctx, env); err != nil {
		log.WithError(err).Warn("failed to publish event")
	}
}

func (h *Handler) publishStock(ctx context.Context, p *product.Product) {
	h.publish(ctx, p.ID(), product.AggregateType, product.EventProductStockChanged, p.Version(), p.UpdatedAt(), product.NewStockChanged(p))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
