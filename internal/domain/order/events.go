package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
)

// PlacedItem is the per-line summary carried by OrderPlaced.
type PlacedItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderPlaced struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	ItemCount       int             `json:"item_count"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []PlacedItem    `json:"items,omitempty"`
	OccurredOn      time.Time       `json:"occurred_on"`
}

// OrderStatusChanged is published for every transition after placement.
// Cancellations use the EventOrderCancelled type with StockRestored set.
type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Reason         string    `json:"reason,omitempty"`
	StockRestored  bool      `json:"stock_restored,omitempty"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// NewOrderPlaced builds the placement event from a freshly created order.
func NewOrderPlaced(o *Order) OrderPlaced {
	items := make([]PlacedItem, 0, len(o.items))
	for _, item := range o.items {
		items = append(items, PlacedItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal().Amount(),
		})
	}
	return OrderPlaced{
		OrderID:         o.id,
		CustomerID:      o.customerID,
		TotalAmount:     o.total.Amount(),
		Currency:        o.total.Currency(),
		ItemCount:       len(o.items),
		ShippingAddress: o.shippingAddress,
		Items:           items,
		OccurredOn:      o.createdAt,
	}
}

// NewStatusChanged builds the event for a transition out of previous.
func NewStatusChanged(o *Order, previous Status, stockRestored bool) (string, OrderStatusChanged) {
	eventType := EventOrderStatusChanged
	if o.status == StatusCancelled {
		eventType = EventOrderCancelled
	}
	return eventType, OrderStatusChanged{
		OrderID:        o.id,
		PreviousStatus: previous,
		NewStatus:      o.status,
		Reason:         o.CancellationReason(),
		StockRestored:  stockRestored,
		OccurredOn:     o.updatedAt,
	}
}
