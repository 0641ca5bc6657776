package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ec-order-engine/internal/apperr"
	"github.com/example/ec-order-engine/internal/domain/customer"
	"github.com/example/ec-order-engine/internal/domain/order"
	"github.com/example/ec-order-engine/internal/domain/product"
)

// MemoryStore is an in-memory UnitOfWork. Sessions are serialized: Begin
// blocks until the previous session has committed or rolled back.
type MemoryStore struct {
	sem chan struct{}

	mu        sync.RWMutex
	orders    map[string]order.State
	products  map[string]product.State
	customers map[string]customer.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:       make(chan struct{}, 1),
		orders:    make(map[string]order.State),
		products:  make(map[string]product.State),
		customers: make(map[string]customer.State),
	}
}

func (s *MemoryStore) Begin(ctx context.Context) (Session, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &memorySession{store: s, cs: newChangeSet()}, nil
}

// Seed writes products and customers directly, outside any session.
func (s *MemoryStore) Seed(products []*product.Product, customers []*customer.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID()] = p.Snapshot()
	}
	for _, c := range customers {
		s.customers[c.ID()] = c.Snapshot()
	}
}

// Product returns the committed state of a product.
func (s *MemoryStore) Product(id string) (product.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.products[id]
	return st, ok
}

// Order returns the committed state of an order.
func (s *MemoryStore) Order(id string) (order.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.orders[id]
	return st, ok
}

func (s *MemoryStore) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

type memorySession struct {
	store  *MemoryStore
	cs     *changeSet
	once   sync.Once
	closed bool
}

func (s *memorySession) Orders() OrderRepository       { return memoryOrders{s} }
func (s *memorySession) Products() ProductRepository   { return memoryProducts{s} }
func (s *memorySession) Customers() CustomerRepository { return memoryCustomers{s} }

func (s *memorySession) release() {
	s.once.Do(func() {
		s.closed = true
		<-s.store.sem
	})
}

func (s *memorySession) Rollback() {
	s.release()
}

// SaveChanges validates every staged change first and only then applies
// them, so a failure leaves the store untouched.
func (s *memorySession) SaveChanges(ctx context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	defer s.release()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.checkUniqueness(); err != nil {
		return 0, err
	}

	for _, c := range s.cs.changes {
		switch {
		case c.order != nil:
			st.orders[c.id] = c.order.Snapshot()
		case c.product != nil:
			st.products[c.id] = c.product.Snapshot()
		case c.customer != nil:
			st.customers[c.id] = c.customer.Snapshot()
		case c.aggregate == product.AggregateType:
			delete(st.products, c.id)
		case c.aggregate == customer.AggregateType:
			delete(st.customers, c.id)
		}
	}
	return len(s.cs.changes), nil
}

// checkUniqueness enforces unique SKUs and customer emails across the
// committed state and the staged changes. Caller holds store.mu.
func (s *memorySession) checkUniqueness() error {
	skus := make(map[string]string)
	for id, p := range s.store.products {
		if !s.cs.isDeleted(product.AggregateType, id) {
			skus[p.SKU] = id
		}
	}
	emails := make(map[string]string)
	for id, c := range s.store.customers {
		if !s.cs.isDeleted(customer.AggregateType, id) {
			emails[c.Email] = id
		}
	}
	for _, c := range s.cs.changes {
		switch {
		case c.product != nil:
			if owner, ok := skus[c.product.SKU()]; ok && owner != c.id {
				return fmt.Errorf("%w: sku %s", ErrConflict, c.product.SKU())
			}
			skus[c.product.SKU()] = c.id
		case c.customer != nil:
			if owner, ok := emails[c.customer.Email()]; ok && owner != c.id {
				return fmt.Errorf("%w: email %s", ErrConflict, c.customer.Email())
			}
			emails[c.customer.Email()] = c.id
		}
	}
	return nil
}

type memoryOrders struct{ s *memorySession }

func (r memoryOrders) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if o, ok := r.s.cs.orders[id]; ok {
		return o, nil
	}
	st := r.s.store
	st.mu.RLock()
	state, ok := st.orders[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound(apperr.KindOrder, id)
	}
	o := order.Rehydrate(state)
	r.s.cs.orders[id] = o
	return o, nil
}

func (r memoryOrders) Add(o *order.Order) {
	r.s.cs.stage(change{kind: opAdd, id: o.ID(), order: o})
}

func (r memoryOrders) Update(o *order.Order) {
	r.s.cs.stage(change{kind: opUpdate, id: o.ID(), order: o})
}

type memoryProducts struct{ s *memorySession }

func (r memoryProducts) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if r.s.cs.isDeleted(product.AggregateType, id) {
		return nil, apperr.NotFound(apperr.KindProduct, id)
	}
	if p, ok := r.s.cs.products[id]; ok {
		return p, nil
	}
	st := r.s.store
	st.mu.RLock()
	state, ok := st.products[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound(apperr.KindProduct, id)
	}
	p := product.Rehydrate(state)
	r.s.cs.products[id] = p
	return p, nil
}

func (r memoryProducts) Add(p *product.Product) {
	r.s.cs.stage(change{kind: opAdd, id: p.ID(), product: p})
}

func (r memoryProducts) Update(p *product.Product) {
	r.s.cs.stage(change{kind: opUpdate, id: p.ID(), product: p})
}

func (r memoryProducts) Delete(id string) {
	r.s.cs.remove(product.AggregateType, id)
}

type memoryCustomers struct{ s *memorySession }

func (r memoryCustomers) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	if r.s.cs.isDeleted(customer.AggregateType, id) {
		return nil, apperr.NotFound(apperr.KindCustomer, id)
	}
	if c, ok := r.s.cs.customers[id]; ok {
		return c, nil
	}
	st := r.s.store
	st.mu.RLock()
	state, ok := st.customers[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound(apperr.KindCustomer, id)
	}
	c := customer.Rehydrate(state)
	r.s.cs.customers[id] = c
	return c, nil
}

func (r memoryCustomers) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	for id, c := range r.s.cs.customers {
		if c.Email() == email && !r.s.cs.isDeleted(customer.AggregateType, id) {
			return c, nil
		}
	}
	st := r.s.store
	st.mu.RLock()
	var found string
	for id, c := range st.customers {
		if c.Email == email {
			found = id
			break
		}
	}
	st.mu.RUnlock()
	if found == "" {
		return nil, apperr.NotFound(apperr.KindCustomer, email)
	}
	return r.GetByID(ctx, found)
}

func (r memoryCustomers) Add(c *customer.Customer) {
	r.s.cs.stage(change{kind: opAdd, id: c.ID(), customer: c})
}

func (r memoryCustomers) Update(c *customer.Customer) {
	r.s.cs.stage(change{kind: opUpdate, id: c.ID(), customer: c})
}

func (r memoryCustomers) Delete(id string) {
	r.s.cs.remove(customer.AggregateType, id)
}
