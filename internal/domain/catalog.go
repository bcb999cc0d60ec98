package domain

// Category groups products on the storefront.
type Category struct {
	CategoryID  int64
	Name        string
	Description string
	Products    []Product
}

// Product is a catalog entry. Category is populated only by queries that join it.
type Product struct {
	ProductID     int64
	CategoryID    int64
	Name          string
	Price         float64
	ProductArtURL string
	Category      *Category
}
