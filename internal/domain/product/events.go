package product

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventProductCreated      = "ProductCreated"
	EventProductStockChanged = "ProductStockChanged"
)

type ProductCreated struct {
	ProductID         string          `json:"product_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	SKU               string          `json:"sku"`
	CategoryID        string          `json:"category_id,omitempty"`
	StockQuantity     int             `json:"stock_quantity"`
	MinimumStockLevel int             `json:"minimum_stock_level"`
	Featured          bool            `json:"featured,omitempty"`
	OccurredOn        time.Time       `json:"occurred_on"`
}

// ProductStockChanged carries the absolute stock level after a deduction
// or restoration, so replaying it is idempotent.
type ProductStockChanged struct {
	ProductID         string    `json:"product_id"`
	StockQuantity     int       `json:"stock_quantity"`
	MinimumStockLevel int       `json:"minimum_stock_level"`
	OccurredOn        time.Time `json:"occurred_on"`
}

func NewProductCreated(p *Product) ProductCreated {
	return ProductCreated{
		ProductID:         p.id,
		Name:              p.name,
		Description:       p.description,
		Price:             p.price.Amount(),
		Currency:          p.price.Currency(),
		SKU:               p.sku,
		CategoryID:        p.categoryID,
		StockQuantity:     p.stockQuantity,
		MinimumStockLevel: p.minimumStockLevel,
		Featured:          p.featured,
		OccurredOn:        p.createdAt,
	}
}

func NewStockChanged(p *Product) ProductStockChanged {
	return ProductStockChanged{
		ProductID:         p.id,
		StockQuantity:     p.stockQuantity,
		MinimumStockLevel: p.minimumStockLevel,
		OccurredOn:        p.updatedAt,
	}
}
