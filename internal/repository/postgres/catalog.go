package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository/mapping"
)

// ListCategories returns every category ordered by name, without products.
func (c *Context) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := mapping.Category.Select("") + " ORDER BY name"
	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var category domain.Category
		targets, err := mapping.Category.Targets(&category)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// GetCategoryByName returns the category with its products loaded.
func (c *Context) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	query := mapping.Category.Select("") + " WHERE name = $1"
	var category domain.Category
	targets, err := mapping.Category.Targets(&category)
	if err != nil {
		return nil, err
	}
	if err := c.db.QueryRow(ctx, query, name).Scan(targets...); err != nil {
		return nil, translate(err)
	}

	productQuery := mapping.Product.Select("") + " WHERE categoryid = $1 ORDER BY name"
	rows, err := c.db.Query(ctx, productQuery, category.CategoryID)
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	category.Products = products
	return &category, nil
}

// GetProductByID returns a product with its category loaded.
func (c *Context) GetProductByID(ctx context.Context, productID int64) (*domain.Product, error) {
	query := "SELECT " + mapping.Product.ColumnList("p") + ", " + mapping.Category.ColumnList("g") +
		" FROM " + mapping.Product.QualifiedTable() + " p" +
		" INNER JOIN " + mapping.Category.QualifiedTable() + " g ON g.categoryid = p.categoryid" +
		" WHERE p.productid = $1"
	product := domain.Product{Category: &domain.Category{}}
	productTargets, err := mapping.Product.Targets(&product)
	if err != nil {
		return nil, err
	}
	categoryTargets, err := mapping.Category.Targets(product.Category)
	if err != nil {
		return nil, err
	}
	if err := c.db.QueryRow(ctx, query, productID).Scan(append(productTargets, categoryTargets...)...); err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// ListBestSellers returns up to limit products ranked by ordered quantity.
func (c *Context) ListBestSellers(ctx context.Context, limit int) ([]domain.Product, error) {
	query := "SELECT " + mapping.Product.ColumnList("p") +
		" FROM " + mapping.Product.QualifiedTable() + " p" +
		" LEFT JOIN " + mapping.OrderDetail.QualifiedTable() + " d ON d.productid = p.productid" +
		" GROUP BY " + mapping.Product.ColumnList("p") +
		" ORDER BY COALESCE(SUM(d.quantity), 0) DESC, p.productid" +
		" LIMIT $1"
	rows, err := c.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		targets, err := mapping.Product.Targets(&product)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
