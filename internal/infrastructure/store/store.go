// Package store is the write side: repositories per aggregate grouped in a
// unit of work. Loading an aggregate through a session locks it until the
// session commits or rolls back.
package store

import (
	"context"
	"errors"

	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
)

var (
	ErrConflict      = errors.New("unique constraint violated")
	ErrSessionClosed = errors.New("session already committed or rolled back")
)

// OrderRepository has no Delete: orders are never physically removed.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	Add(o *order.Order)
	Update(o *order.Order)
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	Add(p *product.Product)
	Update(p *product.Product)
	Delete(id string)
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*customer.Customer, error)
	// GetByEmail expects an already normalized address.
	GetByEmail(ctx context.Context, email string) (*customer.Customer, error)
	Add(c *customer.Customer)
	Update(c *customer.Customer)
	Delete(id string)
}

// Session stages changes until SaveChanges applies all of them atomically.
// Rollback after SaveChanges is a no-op, so it is safe to defer.
type Session interface {
	Orders() OrderRepository
	Products() ProductRepository
	Customers() CustomerRepository
	SaveChanges(ctx context.Context) (int, error)
	Rollback()
}

type UnitOfWork interface {
	Begin(ctx context.Context) (Session, error)
}

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opDelete
)

// change is one staged write. Deletes carry only the aggregate type and id.
type change struct {
	kind      opKind
	aggregate string
	id        string
	order     *order.Order
	product   *product.Product
	customer  *customer.Customer
}

// changeSet is the staging area shared by both session implementations.
type changeSet struct {
	changes   []change
	orders    map[string]*order.Order
	products  map[string]*product.Product
	customers map[string]*customer.Customer
	deleted   map[string]bool
}

func newChangeSet() *changeSet {
	return &changeSet{
		orders:    make(map[string]*order.Order),
		products:  make(map[string]*product.Product),
		customers: make(map[string]*customer.Customer),
		deleted:   make(map[string]bool),
	}
}

func (cs *changeSet) stage(c change) {
	switch {
	case c.order != nil:
		c.aggregate = order.AggregateType
		cs.orders[c.id] = c.order
	case c.product != nil:
		c.aggregate = product.AggregateType
		cs.products[c.id] = c.product
	case c.customer != nil:
		c.aggregate = customer.AggregateType
		cs.customers[c.id] = c.customer
	}
	delete(cs.deleted, deletedKey(c.aggregate, c.id))
	cs.changes = append(cs.changes, c)
}

func (cs *changeSet) remove(aggregate, id string) {
	switch aggregate {
	case product.AggregateType:
		delete(cs.products, id)
	case customer.AggregateType:
		delete(cs.customers, id)
	}
	cs.deleted[deletedKey(aggregate, id)] = true
	cs.changes = append(cs.changes, change{kind: opDelete, aggregate: aggregate, id: id})
}

func (cs *changeSet) isDeleted(aggregate, id string) bool {
	return cs.deleted[deletedKey(aggregate, id)]
}

func deletedKey(aggregate, id string) string {
	return aggregate + "/" + id
}
