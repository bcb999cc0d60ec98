package domain

import "time"

// Cart is one line of a shopping cart. CartID identifies the cart (an anonymous
// session identifier or a username once migrated); RecordID identifies the line.
type Cart struct {
	RecordID    int64
	CartID      string
	ProductID   int64
	Count       int
	DateCreated time.Time
	Product     *Product
}
