package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository"
)

// DefaultBestSellers is the number of products shown when no count is given.
const DefaultBestSellers = 6

var errMissingCategory = errors.New("category name is required")

// Service answers catalog queries.
type Service struct {
	contexts repository.ContextFactory
	logger   *slog.Logger
}

// New returns an inventory service.
func New(contexts repository.ContextFactory, logger *slog.Logger) Service {
	return Service{contexts: contexts, logger: logger}
}

// Categories lists every category.
func (s Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.contexts.NewContext().ListCategories(ctx)
}

// BestSellers returns the count products with the highest ordered quantity.
func (s Service) BestSellers(ctx context.Context, count int) ([]domain.Product, error) {
	if count <= 0 {
		count = DefaultBestSellers
	}
	return s.contexts.NewContext().ListBestSellers(ctx, count)
}

// ProductsByCategory returns the products of the named category.
func (s Service) ProductsByCategory(ctx context.Context, name string) ([]domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errMissingCategory
	}
	category, err := s.contexts.NewContext().GetCategoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return category.Products, nil
}

// Product returns one product with its category.
func (s Service) Product(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.contexts.NewContext().GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("product not found", "product_id", productID)
		}
		return nil, err
	}
	return product, nil
}
