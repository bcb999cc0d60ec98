package repository

import (
	"context"

	"github.com/AES-Git/DMG/internal/domain"
)

// CatalogReader reads categories and products.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	GetProductByID(ctx context.Context, productID int64) (*domain.Product, error)
	ListBestSellers(ctx context.Context, limit int) ([]domain.Product, error)
}

// CartReader reads shopping cart lines.
type CartReader interface {
	GetCartItem(ctx context.Context, cartID string, productID int64) (*domain.Cart, error)
	ListCartItems(ctx context.Context, cartID string) ([]domain.Cart, error)
	CountCartItems(ctx context.Context, cartID string) (int, error)
	CartTotal(ctx context.Context, cartID string) (float64, error)
}

// OrderReader reads placed orders.
type OrderReader interface {
	GetOrderWithDetails(ctx context.Context, orderID int64) (*domain.Order, error)
}

// Context is a unit of work over the storefront tables. Reads go straight to
// the store; writes are staged with Add, Update and Remove and applied together
// by SaveChanges. A Context is not safe for concurrent use and should be
// discarded once its unit of work is done.
type Context interface {
	CatalogReader
	CartReader
	OrderReader

	Add(record any)
	Update(record any)
	Remove(record any)
	SaveChanges(ctx context.Context) (int, error)
}

// ContextFactory creates one Context per unit of work.
type ContextFactory interface {
	NewContext() Context
}
