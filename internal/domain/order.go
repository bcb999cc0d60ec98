package domain

import "time"

// Order is a placed order with shipping and contact details.
type Order struct {
	OrderID      int64
	OrderDate    time.Time
	Username     string
	FirstName    string
	LastName     string
	Address      string
	City         string
	State        string
	PostalCode   string
	Country      string
	Phone        string
	Email        string
	Total        float64
	OrderDetails []OrderDetail
}

// OrderDetail is a single product line of an order.
type OrderDetail struct {
	OrderDetailID int64
	OrderID       int64
	ProductID     int64
	Quantity      int
	UnitPrice     float64
	Order         *Order
	Product       *Product
}
