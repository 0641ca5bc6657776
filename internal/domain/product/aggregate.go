package product

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-order-engine/internal/domain/money"
)

const AggregateType = "Product"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidName       = errors.New("name is required")
	ErrInvalidSKU        = errors.New("sku is required")
	ErrInvalidStockLevel = errors.New("stock levels cannot be negative")
)

// InsufficientStockError carries the numbers a caller needs to explain a
// rejected placement.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Product is a catalog entry that also owns its inventory ledger.
type Product struct {
	id                string
	name              string
	description       string
	price             money.Money
	sku               string
	stockQuantity     int
	minimumStockLevel int
	active            bool
	featured          bool
	categoryID        string
	createdAt         time.Time
	updatedAt         time.Time
	version           int
}

// Params are the catalog attributes of a new product.
type Params struct {
	Name              string
	Description       string
	Price             money.Money
	SKU               string
	StockQuantity     int
	MinimumStockLevel int
	Featured          bool
	CategoryID        string
}

// New validates params and returns an active product.
func New(id string, p Params, now time.Time) (*Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, ErrInvalidName
	}
	if strings.TrimSpace(p.SKU) == "" {
		return nil, ErrInvalidSKU
	}
	if p.Price.Currency() == "" || !p.Price.Amount().IsPositive() {
		return nil, ErrInvalidPrice
	}
	if p.StockQuantity < 0 || p.MinimumStockLevel < 0 {
		return nil, ErrInvalidStockLevel
	}
	return &Product{
		id:                id,
		name:              strings.TrimSpace(p.Name),
		description:       p.Description,
		price:             p.Price,
		sku:               strings.ToUpper(strings.TrimSpace(p.SKU)),
		stockQuantity:     p.StockQuantity,
		minimumStockLevel: p.MinimumStockLevel,
		active:            true,
		featured:          p.Featured,
		categoryID:        p.CategoryID,
		createdAt:         now,
		updatedAt:         now,
		version:           1,
	}, nil
}

func (p *Product) ID() string             { return p.id }
func (p *Product) Name() string           { return p.name }
func (p *Product) Description() string    { return p.description }
func (p *Product) Price() money.Money     { return p.price }
func (p *Product) SKU() string            { return p.sku }
func (p *Product) StockQuantity() int     { return p.stockQuantity }
func (p *Product) MinimumStockLevel() int { return p.minimumStockLevel }
func (p *Product) IsActive() bool         { return p.active }
func (p *Product) IsFeatured() bool       { return p.featured }
func (p *Product) CategoryID() string     { return p.categoryID }
func (p *Product) CreatedAt() time.Time   { return p.createdAt }
func (p *Product) UpdatedAt() time.Time   { return p.updatedAt }
func (p *Product) Version() int           { return p.version }

// HasStock reports whether quantity units can be deducted.
func (p *Product) HasStock(quantity int) bool {
	return p.stockQuantity >= quantity
}

// IsLowStock reports stock below the configured minimum level.
func (p *Product) IsLowStock() bool {
	return p.stockQuantity < p.minimumStockLevel
}

// Deduct removes quantity from stock. Callers check availability first;
// stock is still never allowed to go negative.
func (p *Product) Deduct(quantity int, at time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.stockQuantity < quantity {
		return &InsufficientStockError{ProductID: p.id, Available: p.stockQuantity, Requested: quantity}
	}
	p.stockQuantity -= quantity
	p.touch(at)
	return nil
}

// Restore returns quantity to stock. There is no upper bound.
func (p *Product) Restore(quantity int, at time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.stockQuantity += quantity
	p.touch(at)
	return nil
}

func (p *Product) touch(at time.Time) {
	p.updatedAt = at
	p.version++
}

// State is the persisted form of a Product.
type State struct {
	ID                string      `json:"id" db:"id"`
	Name              string      `json:"name" db:"name"`
	Description       string      `json:"description" db:"description"`
	Price             money.Money `json:"price" db:"-"`
	SKU               string      `json:"sku" db:"sku"`
	StockQuantity     int         `json:"stock_quantity" db:"stock_quantity"`
	MinimumStockLevel int         `json:"minimum_stock_level" db:"minimum_stock_level"`
	Active            bool        `json:"active" db:"active"`
	Featured          bool        `json:"featured" db:"featured"`
	CategoryID        string      `json:"category_id" db:"category_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
	Version           int         `json:"version" db:"version"`
}

func (p *Product) Snapshot() State {
	return State{
		ID:                p.id,
		Name:              p.name,
		Description:       p.description,
		Price:             p.price,
		SKU:               p.sku,
		StockQuantity:     p.stockQuantity,
		MinimumStockLevel: p.minimumStockLevel,
		Active:            p.active,
		Featured:          p.featured,
		CategoryID:        p.categoryID,
		CreatedAt:         p.createdAt,
		UpdatedAt:         p.updatedAt,
		Version:           p.version,
	}
}

func Rehydrate(s State) *Product {
	return &Product{
		id:                s.ID,
		name:              s.Name,
		description:       s.Description,
		price:             s.Price,
		sku:               s.SKU,
		stockQuantity:     s.StockQuantity,
		minimumStockLevel: s.MinimumStockLevel,
		active:            s.Active,
		featured:          s.Featured,
		categoryID:        s.CategoryID,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
		version:           s.Version,
	}
}
