package postgres

import (
	"context"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository/mapping"
)

// GetCartItem returns the cart line holding productID, without the product.
func (c *Context) GetCartItem(ctx context.Context, cartID string, productID int64) (*domain.Cart, error) {
	query := mapping.Cart.Select("") + " WHERE cartid = $1 AND productid = $2"
	var item domain.Cart
	targets, err := mapping.Cart.Targets(&item)
	if err != nil {
		return nil, err
	}
	if err := c.db.QueryRow(ctx, query, cartID, productID).Scan(targets...); err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// ListCartItems returns every line of the cart with its product loaded.
func (c *Context) ListCartItems(ctx context.Context, cartID string) ([]domain.Cart, error) {
	query := "SELECT " + mapping.Cart.ColumnList("c") + ", " + mapping.Product.ColumnList("p") +
		" FROM " + mapping.Cart.QualifiedTable() + " c" +
		" INNER JOIN " + mapping.Product.QualifiedTable() + " p ON p.productid = c.productid" +
		" WHERE c.cartid = $1 ORDER BY c.recordid"
	rows, err := c.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Cart, 0)
	for rows.Next() {
		item := domain.Cart{Product: &domain.Product{}}
		cartTargets, err := mapping.Cart.Targets(&item)
		if err != nil {
			return nil, err
		}
		productTargets, err := mapping.Product.Targets(item.Product)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(append(cartTargets, productTargets...)...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountCartItems sums the item counts of the cart.
func (c *Context) CountCartItems(ctx context.Context, cartID string) (int, error) {
	query := "SELECT COALESCE(SUM(count), 0) FROM " + mapping.Cart.QualifiedTable() + " WHERE cartid = $1"
	var count int
	if err := c.db.QueryRow(ctx, query, cartID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CartTotal sums count times price across the cart.
func (c *Context) CartTotal(ctx context.Context, cartID string) (float64, error) {
	query := "SELECT COALESCE(SUM(c.count * p.price), 0)" +
		" FROM " + mapping.Cart.QualifiedTable() + " c" +
		" INNER JOIN " + mapping.Product.QualifiedTable() + " p ON p.productid = c.productid" +
		" WHERE c.cartid = $1"
	var total float64
	if err := c.db.QueryRow(ctx, query, cartID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
