package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository"
)

var (
	errMissingCartID   = errors.New("cart id required")
	errMissingUsername = errors.New("username required")
)

// Service manages shopping cart lines.
type Service struct {
	contexts repository.ContextFactory
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a cart service.
func New(contexts repository.ContextFactory, logger *slog.Logger) Service {
	return Service{contexts: contexts, logger: logger, now: time.Now}
}

// CartID returns existing when set, otherwise a new random cart id.
func (s Service) CartID(existing string) string {
	if id := strings.TrimSpace(existing); id != "" {
		return id
	}
	return uuid.NewString()
}

// Add puts one unit of productID in the cart, creating the line if needed.
func (s Service) Add(ctx context.Context, cartID string, productID int64) error {
	if strings.TrimSpace(cartID) == "" {
		return errMissingCartID
	}
	uow := s.contexts.NewContext()
	if _, err := uow.GetProductByID(ctx, productID); err != nil {
		return fmt.Errorf("add product %d: %w", productID, err)
	}

	item, err := uow.GetCartItem(ctx, cartID, productID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		uow.Add(&domain.Cart{CartID: cartID, ProductID: productID, Count: 1, DateCreated: s.now().UTC()})
	case err != nil:
		return err
	default:
		item.Count++
		uow.Update(item)
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		return fmt.Errorf("add product %d: %w", productID, err)
	}
	s.logger.Debug("cart item added", "cart_id", cartID, "product_id", productID)
	return nil
}

// Remove takes one unit of productID out of the cart and returns how many
// remain on that line. A line reaching zero is deleted.
func (s Service) Remove(ctx context.Context, cartID string, productID int64) (int, error) {
	uow := s.contexts.NewContext()
	item, err := uow.GetCartItem(ctx, cartID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	remaining := 0
	if item.Count > 1 {
		item.Count--
		remaining = item.Count
		uow.Update(item)
	} else {
		uow.Remove(item)
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		return 0, fmt.Errorf("remove product %d: %w", productID, err)
	}
	return remaining, nil
}

// Empty deletes every line of the cart.
func (s Service) Empty(ctx context.Context, cartID string) error {
	uow := s.contexts.NewContext()
	if err := StageEmpty(ctx, uow, cartID); err != nil {
		return err
	}
	_, err := uow.SaveChanges(ctx)
	return err
}

// Items lists the cart lines with their products.
func (s Service) Items(ctx context.Context, cartID string) ([]domain.Cart, error) {
	return s.contexts.NewContext().ListCartItems(ctx, cartID)
}

// Count sums the units in the cart.
func (s Service) Count(ctx context.Context, cartID string) (int, error) {
	return s.contexts.NewContext().CountCartItems(ctx, cartID)
}

// Total sums count times unit price across the cart.
func (s Service) Total(ctx context.Context, cartID string) (float64, error) {
	return s.contexts.NewContext().CartTotal(ctx, cartID)
}

// Migrate moves an anonymous cart onto username once the visitor signs in.
func (s Service) Migrate(ctx context.Context, cartID, username string) error {
	if strings.TrimSpace(username) == "" {
		return errMissingUsername
	}
	uow := s.contexts.NewContext()
	items, err := uow.ListCartItems(ctx, cartID)
	if err != nil {
		return err
	}
	for i := range items {
		item := items[i]
		item.CartID = username
		item.Product = nil
		uow.Update(&item)
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		return fmt.Errorf("migrate cart: %w", err)
	}
	s.logger.Info("cart migrated", "items", len(items))
	return nil
}

// StageEmpty stages removal of every line of cartID on uow without saving, so
// callers can fold it into a larger unit of work.
func StageEmpty(ctx context.Context, uow repository.Context, cartID string) error {
	items, err := uow.ListCartItems(ctx, cartID)
	if err != nil {
		return err
	}
	for i := range items {
		item := items[i]
		item.Product = nil
		uow.Remove(&item)
	}
	return nil
}
