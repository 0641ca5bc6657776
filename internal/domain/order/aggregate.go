package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/money"
)

const AggregateType = "Order"

var (
	ErrEmptyOrder       = errors.New("order must have at least one item")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrInvalidDiscount  = errors.New("discount must be between zero and the line subtotal")
	ErrMixedCurrencies  = errors.New("all order items must share one currency")
	ErrMissingReference = errors.New("order requires an id and a customer")
)

// Item is one order line. It is owned by its Order and has no lifecycle of its own.
type Item struct {
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Money `json:"unit_price"`
	Discount    money.Money `json:"discount"`
}

// NewItem validates a line. discount must be in the unit price's currency.
func NewItem(productID, productName string, quantity int, unitPrice, discount money.Money) (Item, error) {
	if productID == "" {
		return Item{}, apperr.Validation("productId", "is required")
	}
	if quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if !discount.SameCurrency(unitPrice) {
		return Item{}, fmt.Errorf("%w: discount in %s, price in %s", money.ErrCurrencyMismatch, discount.Currency(), unitPrice.Currency())
	}
	if discount.IsNegative() {
		return Item{}, ErrInvalidDiscount
	}
	if over, _ := discount.GreaterThan(unitPrice.Mul(quantity)); over {
		return Item{}, ErrInvalidDiscount
	}
	return Item{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Discount:    discount,
	}, nil
}

// LineTotal is quantity x unit price - discount.
func (i Item) LineTotal() money.Money {
	total, _ := i.UnitPrice.Mul(i.Quantity).Sub(i.Discount)
	return total
}

// Order is the aggregate root for a customer order.
type Order struct {
	id                 string
	customerID         string
	items              []Item
	shippingAddress    string
	billingAddress     string
	status             Status
	total              money.Money
	createdAt          time.Time
	updatedAt          time.Time
	confirmedAt        *time.Time
	shippedAt          *time.Time
	deliveredAt        *time.Time
	cancelledAt        *time.Time
	cancellationReason *string
	version            int
}

// New creates a Pending order. The currency of the first item fixes the
// order currency; every other item must match it.
func New(id, customerID, shippingAddress, billingAddress string, items []Item, now time.Time) (*Order, error) {
	if id == "" || customerID == "" {
		return nil, ErrMissingReference
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	total, err := money.Zero(items[0].UnitPrice.Currency())
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if !item.UnitPrice.SameCurrency(total) {
			return nil, fmt.Errorf("%w: %w", money.ErrCurrencyMismatch, ErrMixedCurrencies)
		}
		total, err = total.Add(item.LineTotal())
		if err != nil {
			return nil, err
		}
	}

	owned := make([]Item, len(items))
	copy(owned, items)

	return &Order{
		id:              id,
		customerID:      customerID,
		items:           owned,
		shippingAddress: shippingAddress,
		billingAddress:  billingAddress,
		status:          StatusPending,
		total:           total,
		createdAt:       now,
		updatedAt:       now,
		version:         1,
	}, nil
}

func (o *Order) ID() string              { return o.id }
func (o *Order) CustomerID() string      { return o.customerID }
func (o *Order) ShippingAddress() string { return o.shippingAddress }
func (o *Order) BillingAddress() string  { return o.billingAddress }
func (o *Order) Status() Status          { return o.status }
func (o *Order) Total() money.Money      { return o.total }
func (o *Order) CreatedAt() time.Time    { return o.createdAt }
func (o *Order) UpdatedAt() time.Time    { return o.updatedAt }
func (o *Order) ConfirmedAt() *time.Time { return o.confirmedAt }
func (o *Order) ShippedAt() *time.Time   { return o.shippedAt }
func (o *Order) DeliveredAt() *time.Time { return o.deliveredAt }
func (o *Order) CancelledAt() *time.Time { return o.cancelledAt }
func (o *Order) Version() int            { return o.version }

// Items returns a copy of the order lines.
func (o *Order) Items() []Item {
	items := make([]Item, len(o.items))
	copy(items, o.items)
	return items
}

func (o *Order) ItemCount() int { return len(o.items) }

// CancellationReason is empty unless the order was cancelled.
func (o *Order) CancellationReason() string {
	if o.cancellationReason == nil {
		return ""
	}
	return *o.cancellationReason
}

func (o *Order) Confirm(at time.Time) error {
	if err := o.apply(ActionConfirm, at); err != nil {
		return err
	}
	o.confirmedAt = &at
	return nil
}

func (o *Order) Ship(at time.Time) error {
	if err := o.apply(ActionShip, at); err != nil {
		return err
	}
	o.shippedAt = &at
	return nil
}

func (o *Order) Deliver(at time.Time) error {
	if err := o.apply(ActionDeliver, at); err != nil {
		return err
	}
	o.deliveredAt = &at
	return nil
}

// Cancel is legal from Pending, Confirmed and Shipped.
func (o *Order) Cancel(reason string, at time.Time) error {
	if err := o.apply(ActionCancel, at); err != nil {
		return err
	}
	o.cancelledAt = &at
	o.cancellationReason = &reason
	return nil
}

// TransitionTo routes a requested status to its transition method.
func (o *Order) TransitionTo(target Status, reason string, at time.Time) error {
	if target == StatusPending {
		return ErrRevertToPending
	}
	action, ok := actionFor(target)
	if !ok {
		return &InvalidStateError{Current: o.status, Attempted: target}
	}
	switch action {
	case ActionConfirm:
		return o.Confirm(at)
	case ActionShip:
		return o.Ship(at)
	case ActionDeliver:
		return o.Deliver(at)
	default:
		return o.Cancel(reason, at)
	}
}

func (o *Order) apply(action Action, at time.Time) error {
	next, err := Next(o.status, action)
	if err != nil {
		return err
	}
	o.status = next
	o.updatedAt = at
	o.version++
	return nil
}

// State is the persisted form of an Order.
type State struct {
	ID                 string      `json:"id" db:"id"`
	CustomerID         string      `json:"customer_id" db:"customer_id"`
	Items              []Item      `json:"items" db:"-"`
	ShippingAddress    string      `json:"shipping_address" db:"shipping_address"`
	BillingAddress     string      `json:"billing_address" db:"billing_address"`
	Status             Status      `json:"status" db:"status"`
	Total              money.Money `json:"total" db:"-"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
	ConfirmedAt        *time.Time  `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ShippedAt          *time.Time  `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt        *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason *string     `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Version            int         `json:"version" db:"version"`
}

// Snapshot exports the order state for persistence.
func (o *Order) Snapshot() State {
	return State{
		ID:                 o.id,
		CustomerID:         o.customerID,
		Items:              o.Items(),
		ShippingAddress:    o.shippingAddress,
		BillingAddress:     o.billingAddress,
		Status:             o.status,
		Total:              o.total,
		CreatedAt:          o.createdAt,
		UpdatedAt:          o.updatedAt,
		ConfirmedAt:        copyTime(o.confirmedAt),
		ShippedAt:          copyTime(o.shippedAt),
		DeliveredAt:        copyTime(o.deliveredAt),
		CancelledAt:        copyTime(o.cancelledAt),
		CancellationReason: copyString(o.cancellationReason),
		Version:            o.version,
	}
}

// Rehydrate rebuilds an order from persisted state.
func Rehydrate(s State) *Order {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	return &Order{
		id:                 s.ID,
		customerID:         s.CustomerID,
		items:              items,
		shippingAddress:    s.ShippingAddress,
		billingAddress:     s.BillingAddress,
		status:             s.Status,
		total:              s.Total,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
		confirmedAt:        copyTime(s.ConfirmedAt),
		shippedAt:          copyTime(s.ShippedAt),
		deliveredAt:        copyTime(s.DeliveredAt),
		cancelledAt:        copyTime(s.CancelledAt),
		cancellationReason: copyString(s.CancellationReason),
		version:            s.Version,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
