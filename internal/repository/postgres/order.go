package postgres

import (
	"context"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository/mapping"
)

// GetOrderWithDetails returns the order with its lines and their products loaded.
func (c *Context) GetOrderWithDetails(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order domain.Order
	targets, err := mapping.Order.Targets(&order)
	if err != nil {
		return nil, err
	}
	query := mapping.Order.Select("") + " WHERE orderid = $1"
	if err := c.db.QueryRow(ctx, query, orderID).Scan(targets...); err != nil {
		return nil, translate(err)
	}

	detailQuery := "SELECT " + mapping.OrderDetail.ColumnList("d") + ", " + mapping.Product.ColumnList("p") +
		" FROM " + mapping.OrderDetail.QualifiedTable() + " d" +
		" INNER JOIN " + mapping.Product.QualifiedTable() + " p ON p.productid = d.productid" +
		" WHERE d.orderid = $1 ORDER BY d.orderdetailid"
	rows, err := c.db.Query(ctx, detailQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]domain.OrderDetail, 0)
	for rows.Next() {
		detail := domain.OrderDetail{Product: &domain.Product{}}
		detailTargets, err := mapping.OrderDetail.Targets(&detail)
		if err != nil {
			return nil, err
		}
		productTargets, err := mapping.Product.Targets(detail.Product)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(append(detailTargets, productTargets...)...); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	order.OrderDetails = details
	return &order, nil
}
