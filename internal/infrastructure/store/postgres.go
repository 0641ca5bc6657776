package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/money"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
)

const uniqueViolation = "23505"

// ConnectPostgres opens and pings a pooled connection.
func ConnectPostgres(ctx context.Context, connStr string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// PostgresStore is a UnitOfWork backed by one transaction per session.
// Aggregates are loaded with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Begin(ctx context.Context) (Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	return &postgresSession{tx: tx, cs: newChangeSet()}, nil
}

type postgresSession struct {
	tx     *sqlx.Tx
	cs     *changeSet
	closed bool
}

func (s *postgresSession) Orders() OrderRepository       { return pgOrders{s} }
func (s *postgresSession) Products() ProductRepository   { return pgProducts{s} }
func (s *postgresSession) Customers() CustomerRepository { return pgCustomers{s} }

func (s *postgresSession) Rollback() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.tx.Rollback()
}

func (s *postgresSession) SaveChanges(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	defer s.Rollback()

	for _, c := range s.cs.changes {
		if err := s.apply(ctx, c); err != nil {
			return 0, translate(err)
		}
	}
	if err := s.tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	s.closed = true
	return len(s.cs.changes), nil
}

func (s *postgresSession) apply(ctx context.Context, c change) error {
	switch {
	case c.order != nil && c.kind == opAdd:
		return insertOrder(ctx, s.tx, c.order)
	case c.order != nil:
		_, err := s.tx.NamedExecContext(ctx, updateOrderSQL, newOrderRow(c.order))
		return errors.Wrapf(err, "update order %s", c.id)
	case c.product != nil && c.kind == opAdd:
		_, err := s.tx.NamedExecContext(ctx, insertProductSQL, newProductRow(c.product))
		return errors.Wrapf(err, "insert product %s", c.id)
	case c.product != nil:
		_, err := s.tx.NamedExecContext(ctx, updateProductSQL, newProductRow(c.product))
		return errors.Wrapf(err, "update product %s", c.id)
	case c.customer != nil:
		row, err := newCustomerRow(c.customer)
		if err != nil {
			return err
		}
		query := updateCustomerSQL
		if c.kind == opAdd {
			query = insertCustomerSQL
		}
		_, err = s.tx.NamedExecContext(ctx, query, row)
		return errors.Wrapf(err, "save customer %s", c.id)
	case c.aggregate == product.AggregateType:
		_, err := s.tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, c.id)
		return errors.Wrapf(err, "delete product %s", c.id)
	case c.aggregate == customer.AggregateType:
		_, err := s.tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, c.id)
		return errors.Wrapf(err, "delete customer %s", c.id)
	}
	return nil
}

// translate maps unique violations to ErrConflict.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Wrap(ErrConflict, pqErr.Constraint)
	}
	return err
}

// ============================================
// Orders
// ============================================

const (
	selectOrderSQL = `SELECT id, customer_id, shipping_address, billing_address, status,
		total_amount, currency, created_at, updated_at, confirmed_at, shipped_at,
		delivered_at, cancelled_at, cancellation_reason, version
		FROM orders WHERE id = $1 FOR UPDATE`

	selectOrderItemsSQL = `SELECT product_id, product_name, quantity, unit_price, discount, currency
		FROM order_items WHERE order_id = $1 ORDER BY position`

	insertOrderSQL = `INSERT INTO orders (id, customer_id, shipping_address, billing_address, status,
		total_amount, currency, created_at, updated_at, confirmed_at, shipped_at,
		delivered_at, cancelled_at, cancellation_reason, version)
		VALUES (:id, :customer_id, :shipping_address, :billing_address, :status,
		:total_amount, :currency, :created_at, :updated_at, :confirmed_at, :shipped_at,
		:delivered_at, :cancelled_at, :cancellation_reason, :version)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, product_name,
		quantity, unit_price, discount, currency)
		VALUES (:order_id, :position, :product_id, :product_name, :quantity, :unit_price, :discount, :currency)`

	updateOrderSQL = `UPDATE orders SET status = :status, updated_at = :updated_at,
		confirmed_at = :confirmed_at, shipped_at = :shipped_at, delivered_at = :delivered_at,
		cancelled_at = :cancelled_at, cancellation_reason = :cancellation_reason, version = :version
		WHERE id = :id`
)

type orderRow struct {
	order.State
	TotalAmount decimal.Decimal `db:"total_amount"`
	Currency    string          `db:"currency"`
}

type orderItemRow struct {
	OrderID     string          `db:"order_id"`
	Position    int             `db:"position"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Discount    decimal.Decimal `db:"discount"`
	Currency    string          `db:"currency"`
}

func newOrderRow(o *order.Order) orderRow {
	return orderRow{
		State:       o.Snapshot(),
		TotalAmount: o.Total().Amount(),
		Currency:    o.Total().Currency(),
	}
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, o *order.Order) error {
	if _, err := tx.NamedExecContext(ctx, insertOrderSQL, newOrderRow(o)); err != nil {
		return errors.Wrapf(err, "insert order %s", o.ID())
	}
	for i, item := range o.Items() {
		row := orderItemRow{
			OrderID:     o.ID(),
			Position:    i,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Amount(),
			Discount:    item.Discount.Amount(),
			Currency:    item.UnitPrice.Currency(),
		}
		if _, err := tx.NamedExecContext(ctx, insertOrderItemSQL, row); err != nil {
			return errors.Wrapf(err, "insert item %d of order %s", i, o.ID())
		}
	}
	return nil
}

type pgOrders struct{ s *postgresSession }

func (r pgOrders) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if o, ok := r.s.cs.orders[id]; ok {
		return o, nil
	}

	var row orderRow
	if err := r.s.tx.GetContext(ctx, &row, selectOrderSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(apperr.KindOrder, id)
		}
		return nil, errors.Wrapf(err, "select order %s", id)
	}
	total, err := money.New(row.TotalAmount, row.Currency)
	if err != nil {
		return nil, errors.Wrapf(err, "order %s total", id)
	}
	row.State.Total = total

	var items []orderItemRow
	if err := r.s.tx.SelectContext(ctx, &items, selectOrderItemsSQL, id); err != nil {
		return nil, errors.Wrapf(err, "select items of order %s", id)
	}
	for _, it := range items {
		unit, err := money.New(it.UnitPrice, it.Currency)
		if err != nil {
			return nil, errors.Wrapf(err, "order %s item price", id)
		}
		discount, _ := money.New(it.Discount, it.Currency)
		row.State.Items = append(row.State.Items, order.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			Discount:    discount,
		})
	}

	o := order.Rehydrate(row.State)
	r.s.cs.orders[id] = o
	return o, nil
}

func (r pgOrders) Add(o *order.Order) {
	r.s.cs.stage(change{kind: opAdd, id: o.ID(), order: o})
}

func (r pgOrders) Update(o *order.Order) {
	r.s.cs.stage(change{kind: opUpdate, id: o.ID(), order: o})
}

// ============================================
// Products
// ============================================

const (
	productColumns = `id, name, description, price_amount, price_currency, sku, stock_quantity,
		minimum_stock_level, active, featured, category_id, created_at, updated_at, version`

	selectProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES (:id, :name, :description, :price_amount, :price_currency, :sku, :stock_quantity,
		:minimum_stock_level, :active, :featured, :category_id, :created_at, :updated_at, :version)`

	updateProductSQL = `UPDATE products SET name = :name, description = :description,
		price_amount = :price_amount, price_currency = :price_currency, sku = :sku,
		stock_quantity = :stock_quantity, minimum_stock_level = :minimum_stock_level,
		active = :active, featured = :featured, category_id = :category_id,
		updated_at = :updated_at, version = :version
		WHERE id = :id`
)

type productRow struct {
	product.State
	PriceAmount   decimal.Decimal `db:"price_amount"`
	PriceCurrency string          `db:"price_currency"`
}

func newProductRow(p *product.Product) productRow {
	return productRow{
		State:         p.Snapshot(),
		PriceAmount:   p.Price().Amount(),
		PriceCurrency: p.Price().Currency(),
	}
}

type pgProducts struct{ s *postgresSession }

func (r pgProducts) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if r.s.cs.isDeleted(product.AggregateType, id) {
		return nil, apperr.NotFound(apperr.KindProduct, id)
	}
	if p, ok := r.s.cs.products[id]; ok {
		return p, nil
	}

	var row productRow
	if err := r.s.tx.GetContext(ctx, &row, selectProductSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(apperr.KindProduct, id)
		}
		return nil, errors.Wrapf(err, "select product %s", id)
	}
	price, err := money.New(row.PriceAmount, row.PriceCurrency)
	if err != nil {
		return nil, errors.Wrapf(err, "product %s price", id)
	}
	row.State.Price = price

	p := product.Rehydrate(row.State)
	r.s.cs.products[id] = p
	return p, nil
}

func (r pgProducts) Add(p *product.Product) {
	r.s.cs.stage(change{kind: opAdd, id: p.ID(), product: p})
}

func (r pgProducts) Update(p *product.Product) {
	r.s.cs.stage(change{kind: opUpdate, id: p.ID(), product: p})
}

func (r pgProducts) Delete(id string) {
	r.s.cs.remove(product.AggregateType, id)
}

// ============================================
// Customers
// ============================================

const (
	customerColumns = `id, first_name, last_name, email, phone, addresses, preferences,
		password_hash, created_at, updated_at, version`

	insertCustomerSQL = `INSERT INTO customers (` + customerColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :phone, :addresses, :preferences,
		:password_hash, :created_at, :updated_at, :version)`

	updateCustomerSQL = `UPDATE customers SET first_name = :first_name, last_name = :last_name,
		email = :email, phone = :phone, addresses = :addresses, preferences = :preferences,
		password_hash = :password_hash, updated_at = :updated_at, version = :version
		WHERE id = :id`
)

// jsonb columns travel as strings; lib/pq would encode []byte as bytea.
type customerRow struct {
	customer.State
	AddressesJSON   string `db:"addresses"`
	PreferencesJSON string `db:"preferences"`
}

func newCustomerRow(c *customer.Customer) (customerRow, error) {
	row := customerRow{State: c.Snapshot()}
	addresses, err := json.Marshal(row.State.Addresses)
	if err != nil {
		return row, errors.Wrap(err, "marshal addresses")
	}
	prefs, err := json.Marshal(row.State.Preferences)
	if err != nil {
		return row, errors.Wrap(err, "marshal preferences")
	}
	row.AddressesJSON, row.PreferencesJSON = string(addresses), string(prefs)
	return row, nil
}

func (row customerRow) toCustomer() (*customer.Customer, error) {
	if err := json.Unmarshal([]byte(row.AddressesJSON), &row.State.Addresses); err != nil {
		return nil, errors.Wrap(err, "unmarshal addresses")
	}
	if err := json.Unmarshal([]byte(row.PreferencesJSON), &row.State.Preferences); err != nil {
		return nil, errors.Wrap(err, "unmarshal preferences")
	}
	return customer.Rehydrate(row.State), nil
}

type pgCustomers struct{ s *postgresSession }

func (r pgCustomers) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	if r.s.cs.isDeleted(customer.AggregateType, id) {
		return nil, apperr.NotFound(apperr.KindCustomer, id)
	}
	if c, ok := r.s.cs.customers[id]; ok {
		return c, nil
	}
	return r.load(ctx, id, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR SHARE`, id)
}

func (r pgCustomers) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	for id, c := range r.s.cs.customers {
		if c.Email() == email && !r.s.cs.isDeleted(customer.AggregateType, id) {
			return c, nil
		}
	}
	return r.load(ctx, email, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
}

func (r pgCustomers) load(ctx context.Context, key, query string, arg any) (*customer.Customer, error) {
	var row customerRow
	if err := r.s.tx.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(apperr.KindCustomer, key)
		}
		return nil, errors.Wrapf(err, "select customer %s", key)
	}
	c, err := row.toCustomer()
	if err != nil {
		return nil, err
	}
	if r.s.cs.isDeleted(customer.AggregateType, c.ID()) {
		return nil, apperr.NotFound(apperr.KindCustomer, key)
	}
	r.s.cs.customers[c.ID()] = c
	return c, nil
}

func (r pgCustomers) Add(c *customer.Customer) {
	r.s.cs.stage(change{kind: opAdd, id: c.ID(), customer: c})
}

func (r pgCustomers) Update(c *customer.Customer) {
	r.s.cs.stage(change{kind: opUpdate, id: c.ID(), customer: c})
}

func (r pgCustomers) Delete(id string) {
	r.s.cs.remove(customer.AggregateType, id)
}
