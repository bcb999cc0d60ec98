package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository"
	"github.com/AES-Git/DMG/internal/service/cart"
)

// ErrEmptyCart is returned when an order is placed for a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

var errMissingCartID = errors.New("cart id required")

// Service places and reads orders.
type Service struct {
	contexts repository.ContextFactory
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an order service.
func New(contexts repository.ContextFactory, logger *slog.Logger) Service {
	return Service{contexts: contexts, logger: logger, now: time.Now}
}

// Process turns the cart into an order. One detail is written per cart line at
// the product's current price, the total is the sum of quantity times price,
// and the cart is emptied, all in a single unit of work. The order's key and
// details are filled in on return.
func (s Service) Process(ctx context.Context, cartID string, order *domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, errMissingCartID
	}
	if order == nil {
		order = &domain.Order{}
	}
	uow := s.contexts.NewContext()
	items, err := uow.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order.OrderDate = s.now().UTC()
	order.Total = 0
	order.OrderDetails = make([]domain.OrderDetail, 0, len(items))
	uow.Add(order)

	details := make([]*domain.OrderDetail, 0, len(items))
	for _, item := range items {
		detail := &domain.OrderDetail{
			Order:     order,
			ProductID: item.ProductID,
			Quantity:  item.Count,
			UnitPrice: item.Product.Price,
		}
		order.Total += float64(item.Count) * item.Product.Price
		uow.Add(detail)
		details = append(details, detail)
	}
	if err := cart.StageEmpty(ctx, uow, cartID); err != nil {
		return nil, err
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("process order: %w", err)
	}

	for _, d := range details {
		d.Order = nil
		order.OrderDetails = append(order.OrderDetails, *d)
	}
	s.logger.Info("order placed", "order_id", order.OrderID, "lines", len(details), "total", order.Total)
	return order, nil
}

// Get returns the order with its details and their products.
func (s Service) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.contexts.NewContext().GetOrderWithDetails(ctx, orderID)
}
