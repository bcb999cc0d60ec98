// Package memory is an in-process implementation of repository.Context used to
// exercise services without a database. It enforces the same key, foreign key
// and timestamp rules as the PostgreSQL store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository"
	"github.com/AES-Git/DMG/internal/repository/mapping"
)

// Store holds the tables shared by every Context it creates.
type Store struct {
	mu   sync.Mutex
	data tables
}

type tables struct {
	categories map[int64]domain.Category
	products   map[int64]domain.Product
	carts      map[int64]domain.Cart
	orders     map[int64]domain.Order
	details    map[int64]domain.OrderDetail
	nextKey    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: tables{
		categories: map[int64]domain.Category{},
		products:   map[int64]domain.Product{},
		carts:      map[int64]domain.Cart{},
		orders:     map[int64]domain.Order{},
		details:    map[int64]domain.OrderDetail{},
	}}
}

// Seed stages and saves records in one unit of work.
func (s *Store) Seed(ctx context.Context, records ...any) error {
	c := s.New()
	for _, r := range records {
		c.Add(r)
	}
	_, err := c.SaveChanges(ctx)
	return err
}

// New returns a fresh Context.
func (s *Store) New() *Context { return &Context{store: s} }

// NewContext implements repository.ContextFactory.
func (s *Store) NewContext() repository.Context { return s.New() }

var _ repository.ContextFactory = (*Store)(nil)

type op int

const (
	opAdd op = iota
	opUpdate
	opRemove
)

type entry struct {
	op     op
	record any
}

// Context is a unit of work over a Store.
type Context struct {
	store   *Store
	pending []entry
}

var _ repository.Context = (*Context)(nil)

// Add stages record for insertion.
func (c *Context) Add(record any) { c.pending = append(c.pending, entry{op: opAdd, record: record}) }

// Update stages record for update.
func (c *Context) Update(record any) { c.pending = append(c.pending, entry{op: opUpdate, record: record}) }

// Remove stages record for deletion.
func (c *Context) Remove(record any) { c.pending = append(c.pending, entry{op: opRemove, record: record}) }

// SaveChanges applies staged changes atomically: either all succeed or the
// store is left untouched and added records get their staged keys back.
func (c *Context) SaveChanges(_ context.Context) (int, error) {
	if len(c.pending) == 0 {
		return 0, nil
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	saved := false
	defer func() {
		if saved {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}()

	work := s.data.clone()
	for _, e := range c.pending {
		meta, err := mapping.For(e.record)
		if err != nil {
			return 0, err
		}
		if e.op != opRemove {
			repository.NormalizeTimestamps(e.record)
			if e.op == opAdd {
				u, err := meta.Snapshot(e.record)
				if err != nil {
					return 0, err
				}
				undo = append(undo, u)
				if err := meta.FixupForeignKeys(e.record); err != nil {
					return 0, err
				}
			}
			if err := meta.CheckRequired(e.record); err != nil {
				return 0, fmt.Errorf("%w: %w", repository.ErrForeignKeyViolation, err)
			}
		}
		if err := work.apply(e.op, e.record); err != nil {
			return 0, fmt.Errorf("save %s: %w", meta.Name, err)
		}
	}
	if err := work.checkForeignKeys(); err != nil {
		return 0, err
	}
	s.data = work
	saved = true
	n := len(c.pending)
	c.pending = nil
	return n, nil
}

func (t tables) clone() tables {
	out := tables{
		categories: make(map[int64]domain.Category, len(t.categories)),
		products:   make(map[int64]domain.Product, len(t.products)),
		carts:      make(map[int64]domain.Cart, len(t.carts)),
		orders:     make(map[int64]domain.Order, len(t.orders)),
		details:    make(map[int64]domain.OrderDetail, len(t.details)),
		nextKey:    t.nextKey,
	}
	for k, v := range t.categories {
		out.categories[k] = v
	}
	for k, v := range t.products {
		out.products[k] = v
	}
	for k, v := range t.carts {
		out.carts[k] = v
	}
	for k, v := range t.orders {
		out.orders[k] = v
	}
	for k, v := range t.details {
		out.details[k] = v
	}
	return out
}

// apply writes one change. Inserts receive the next key, which is also
// written back to the caller's record.
func (t *tables) apply(o op, record any) error {
	switch r := record.(type) {
	case *domain.Category:
		row := *r
		row.Products = nil
		return applyRow(t, o, t.categories, &r.CategoryID, row, func(v *domain.Category, k int64) { v.CategoryID = k })
	case *domain.Product:
		row := *r
		row.Category = nil
		return applyRow(t, o, t.products, &r.ProductID, row, func(v *domain.Product, k int64) { v.ProductID = k })
	case *domain.Cart:
		row := *r
		row.Product = nil
		return applyRow(t, o, t.carts, &r.RecordID, row, func(v *domain.Cart, k int64) { v.RecordID = k })
	case *domain.Order:
		row := *r
		row.OrderDetails = nil
		return applyRow(t, o, t.orders, &r.OrderID, row, func(v *domain.Order, k int64) { v.OrderID = k })
	case *domain.OrderDetail:
		row := *r
		row.Order, row.Product = nil, nil
		return applyRow(t, o, t.details, &r.OrderDetailID, row, func(v *domain.OrderDetail, k int64) { v.OrderDetailID = k })
	default:
		return fmt.Errorf("%w: %T", mapping.ErrUnmapped, record)
	}
}

func applyRow[T any](t *tables, o op, table map[int64]T, key *int64, row T, setKey func(*T, int64)) error {
	switch o {
	case opAdd:
		t.nextKey++
		setKey(&row, t.nextKey)
		table[t.nextKey] = row
		*key = t.nextKey
	case opUpdate:
		if _, ok := table[*key]; !ok {
			return repository.ErrNotFound
		}
		table[*key] = row
	default:
		delete(table, *key)
	}
	return nil
}

func (t tables) checkForeignKeys() error {
	for _, p := range t.products {
		if _, ok := t.categories[p.CategoryID]; !ok {
			return fmt.Errorf("%w: product %d references category %d", repository.ErrForeignKeyViolation, p.ProductID, p.CategoryID)
		}
	}
	for _, c := range t.carts {
		if _, ok := t.products[c.ProductID]; !ok {
			return fmt.Errorf("%w: cart line %d references product %d", repository.ErrForeignKeyViolation, c.RecordID, c.ProductID)
		}
	}
	for _, d := range t.details {
		if _, ok := t.products[d.ProductID]; !ok {
			return fmt.Errorf("%w: order detail %d references product %d", repository.ErrForeignKeyViolation, d.OrderDetailID, d.ProductID)
		}
		if _, ok := t.orders[d.OrderID]; !ok {
			return fmt.Errorf("%w: order detail %d references order %d", repository.ErrForeignKeyViolation, d.OrderDetailID, d.OrderID)
		}
	}
	return nil
}

// ListCategories returns categories ordered by name.
func (c *Context) ListCategories(_ context.Context) ([]domain.Category, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Category, 0, len(s.data.categories))
	for _, cat := range s.data.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetCategoryByName returns the category with its products.
func (c *Context) GetCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cat := range s.data.categories {
		if cat.Name != name {
			continue
		}
		products := make([]domain.Product, 0)
		for _, p := range s.data.products {
			if p.CategoryID == cat.CategoryID {
				products = append(products, p)
			}
		}
		sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
		cat.Products = products
		return &cat, nil
	}
	return nil, repository.ErrNotFound
}

// GetProductByID returns a product with its category.
func (c *Context) GetProductByID(_ context.Context, productID int64) (*domain.Product, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.data.products[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cat := s.data.categories[p.CategoryID]
	p.Category = &cat
	return &p, nil
}

// ListBestSellers ranks products by ordered quantity.
func (c *Context) ListBestSellers(_ context.Context, limit int) ([]domain.Product, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sold := map[int64]int{}
	for _, d := range s.data.details {
		sold[d.ProductID] += d.Quantity
	}
	out := make([]domain.Product, 0, len(s.data.products))
	for _, p := range s.data.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if sold[out[i].ProductID] != sold[out[j].ProductID] {
			return sold[out[i].ProductID] > sold[out[j].ProductID]
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetCartItem returns the cart line for productID.
func (c *Context) GetCartItem(_ context.Context, cartID string, productID int64) (*domain.Cart, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.data.carts {
		if item.CartID == cartID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListCartItems returns the cart lines with products.
func (c *Context) ListCartItems(_ context.Context, cartID string) ([]domain.Cart, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data.cartItems(cartID), nil
}

// CountCartItems sums item counts.
func (c *Context) CountCartItems(_ context.Context, cartID string) (int, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.data.cartItems(cartID) {
		count += item.Count
	}
	return count, nil
}

// CartTotal sums count times price.
func (c *Context) CartTotal(_ context.Context, cartID string) (float64, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	for _, item := range s.data.cartItems(cartID) {
		total += float64(item.Count) * item.Product.Price
	}
	return total, nil
}

// GetOrderWithDetails returns the order with lines and products.
func (c *Context) GetOrderWithDetails(_ context.Context, orderID int64) (*domain.Order, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.data.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	details := make([]domain.OrderDetail, 0)
	for _, d := range s.data.details {
		if d.OrderID != orderID {
			continue
		}
		p := s.data.products[d.ProductID]
		d.Product = &p
		details = append(details, d)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].OrderDetailID < details[j].OrderDetailID })
	order.OrderDetails = details
	return &order, nil
}

func (t tables) cartItems(cartID string) []domain.Cart {
	items := make([]domain.Cart, 0)
	for _, item := range t.carts {
		if item.CartID != cartID {
			continue
		}
		p := t.products[item.ProductID]
		item.Product = &p
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].RecordID < items[j].RecordID })
	return items
}
