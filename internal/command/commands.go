package command

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Order Commands

// OrderLine is one requested line. ProductName is only used when the
// catalog entry has no name of its own.
type OrderLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`
	Discount    decimal.Decimal `json:"discount"`
}

type PlaceOrder struct {
	CustomerID      string      `json:"customer_id"`
	ShippingAddress string      `json:"shipping_address"`
	BillingAddress  string      `json:"billing_address"`
	Items           []OrderLine `json:"items"`
}

// Validate checks the command shape before any storage access.
func (c PlaceOrder) Validate() error {
	if strings.TrimSpace(c.CustomerID) == "" {
		return apperr.Validation("customer_id", "is required")
	}
	if strings.TrimSpace(c.ShippingAddress) == "" {
		return apperr.Validation("shipping_address", "is required")
	}
	if strings.TrimSpace(c.BillingAddress) == "" {
		return apperr.Validation("billing_address", "is required")
	}
	if len(c.Items) == 0 {
		return apperr.Validation("items", "at least one item is required")
	}

	currency := ""
	for i, line := range c.Items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if strings.TrimSpace(line.ProductID) == "" {
			return apperr.Validation(field("product_id"), "is required")
		}
		if line.Quantity <= 0 {
			return apperr.Validation(field("quantity"), "must be greater than zero")
		}
		if !line.UnitPrice.IsPositive() {
			return apperr.Validation(field("unit_price"), "must be greater than zero")
		}
		if !currencyPattern.MatchString(line.Currency) {
			return apperr.Validation(field("currency"), "must be a three-letter code")
		}
		if line.Discount.IsNegative() {
			return apperr.Validation(field("discount"), "must not be negative")
		}
		if line.Discount.GreaterThan(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))) {
			return apperr.Validation(field("discount"), "exceeds the line subtotal")
		}
		if currency == "" {
			currency = strings.ToUpper(line.Currency)
		} else if !strings.EqualFold(currency, line.Currency) {
			return apperr.Validation(field("currency"), "all items must share one currency")
		}
	}
	return nil
}

// CancelOrder cancels on behalf of CustomerID when it is set.
type CancelOrder struct {
	OrderID    string `json:"order_id"`
	Reason     string `json:"reason"`
	CustomerID string `json:"customer_id,omitempty"`
}

type UpdateOrderStatus struct {
	OrderID   string `json:"order_id"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}

// Catalog Commands

type CreateProduct struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	SKU               string          `json:"sku"`
	StockQuantity     int             `json:"stock_quantity"`
	MinimumStockLevel int             `json:"minimum_stock_level"`
	Featured          bool            `json:"featured"`
	CategoryID        string          `json:"category_id"`
}

// Customer Commands

type RegisterCustomer struct {
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	Email             string             `json:"email"`
	Phone             string             `json:"phone,omitempty"`
	Password          string             `json:"password"`
	Addresses         []customer.Address `json:"addresses,omitempty"`
	Newsletter        bool               `json:"newsletter"`
	PreferredCurrency string             `json:"preferred_currency,omitempty"`
}

// Authenticate exchanges customer credentials for a token.
type Authenticate struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
