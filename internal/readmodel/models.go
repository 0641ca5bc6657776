// Package readmodel holds the denormalized documents served by the query
// side. Documents are replaced whole on every projection.
package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CollectionOrders    = "orders"
	CollectionProducts  = "products"
	CollectionCustomers = "customers"
)

// CustomerSummary is the customer as embedded in an order document.
type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type OrderItemReadModel struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderReadModel struct {
	ID                 string               `json:"id"`
	CustomerID         string               `json:"customer_id"`
	Customer           *CustomerSummary     `json:"customer,omitempty"`
	Status             string               `json:"status"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	Currency           string               `json:"currency"`
	ItemCount          int                  `json:"item_count"`
	Items              []OrderItemReadModel `json:"items"`
	ShippingAddress    string               `json:"shipping_address"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
	StockRestored      bool                 `json:"stock_restored,omitempty"`
	PlacedAt           time.Time            `json:"placed_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	ConfirmedAt        *time.Time           `json:"confirmed_at,omitempty"`
	ShippedAt          *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	Version            int                  `json:"version"`
}

type ProductReadModel struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	SKU               string          `json:"sku"`
	CategoryID        string          `json:"category_id,omitempty"`
	StockQuantity     int             `json:"stock_quantity"`
	MinimumStockLevel int             `json:"minimum_stock_level"`
	LowStock          bool            `json:"low_stock"`
	InStock           bool            `json:"in_stock"`
	Featured          bool            `json:"featured,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// SetStock keeps the derived stock flags in line with the quantity.
func (p *ProductReadModel) SetStock(quantity int) {
	p.StockQuantity = quantity
	p.LowStock = quantity < p.MinimumStockLevel
	p.InStock = quantity > 0
}

type CustomerReadModel struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Newsletter   bool      `json:"newsletter"`
	RegisteredAt time.Time `json:"registered_at"`
	Version      int       `json:"version"`
}

func (c CustomerReadModel) Summary() *CustomerSummary {
	return &CustomerSummary{ID: c.ID, Name: c.FullName, Email: c.Email}
}
