package mapping

import (
	"fmt"
	"reflect"

	"github.com/AES-Git/DMG/internal/domain"
)

// Schema is the database schema holding every storefront table.
const Schema = "dps_dbo"

var (
	// Product maps domain.Product onto dps_dbo.products.
	Product = &Entity{
		Name:   "Product",
		Schema: Schema,
		Table:  "products",
		Key:    "ProductID",
		Columns: []Column{
			{Field: "ProductID", Name: "productid"},
			{Field: "CategoryID", Name: "categoryid"},
			{Field: "Name", Name: "name"},
			{Field: "Price", Name: "price"},
			{Field: "ProductArtURL", Name: "productarturl"},
		},
		Relations: []Relation{
			{Kind: ManyToOne, Navigation: "Category", Target: "Category", ForeignKey: "CategoryID", Required: true},
		},
		typ: reflect.TypeOf(domain.Product{}),
	}

	// Category maps domain.Category onto dps_dbo.categories.
	Category = &Entity{
		Name:   "Category",
		Schema: Schema,
		Table:  "categories",
		Key:    "CategoryID",
		Columns: []Column{
			{Field: "CategoryID", Name: "categoryid"},
			{Field: "Name", Name: "name"},
			{Field: "Description", Name: "description"},
		},
		Relations: []Relation{
			{Kind: OneToMany, Navigation: "Products", Target: "Product", ForeignKey: "CategoryID", Required: true},
		},
		typ: reflect.TypeOf(domain.Category{}),
	}

	// Cart maps domain.Cart onto dps_dbo.carts.
	Cart = &Entity{
		Name:   "Cart",
		Schema: Schema,
		Table:  "carts",
		Key:    "RecordID",
		Columns: []Column{
			{Field: "RecordID", Name: "recordid"},
			{Field: "CartID", Name: "cartid"},
			{Field: "ProductID", Name: "productid"},
			{Field: "Count", Name: "count"},
			{Field: "DateCreated", Name: "datecreated"},
		},
		Relations: []Relation{
			{Kind: ManyToOne, Navigation: "Product", Target: "Product", ForeignKey: "ProductID", Required: true},
		},
		typ: reflect.TypeOf(domain.Cart{}),
	}

	// Order maps domain.Order onto dps_dbo.orders.
	Order = &Entity{
		Name:   "Order",
		Schema: Schema,
		Table:  "orders",
		Key:    "OrderID",
		Columns: []Column{
			{Field: "OrderID", Name: "orderid"},
			{Field: "OrderDate", Name: "orderdate"},
			{Field: "Username", Name: "username"},
			{Field: "FirstName", Name: "firstname"},
			{Field: "LastName", Name: "lastname"},
			{Field: "Address", Name: "address"},
			{Field: "City", Name: "city"},
			{Field: "State", Name: "state"},
			{Field: "PostalCode", Name: "postalcode"},
			{Field: "Country", Name: "country"},
			{Field: "Phone", Name: "phone"},
			{Field: "Email", Name: "email"},
			{Field: "Total", Name: "total"},
		},
		Relations: []Relation{
			{Kind: OneToMany, Navigation: "OrderDetails", Target: "OrderDetail", ForeignKey: "OrderID", Required: true},
		},
		typ: reflect.TypeOf(domain.Order{}),
	}

	// OrderDetail maps domain.OrderDetail onto dps_dbo.orderdetails.
	OrderDetail = &Entity{
		Name:   "OrderDetail",
		Schema: Schema,
		Table:  "orderdetails",
		Key:    "OrderDetailID",
		Columns: []Column{
			{Field: "OrderDetailID", Name: "orderdetailid"},
			{Field: "OrderID", Name: "orderid"},
			{Field: "ProductID", Name: "productid"},
			{Field: "Quantity", Name: "quantity"},
			{Field: "UnitPrice", Name: "unitprice"},
		},
		Relations: []Relation{
			{Kind: ManyToOne, Navigation: "Order", Target: "Order", ForeignKey: "OrderID", Required: true},
			{Kind: ManyToOne, Navigation: "Product", Target: "Product", ForeignKey: "ProductID", Required: true},
		},
		typ: reflect.TypeOf(domain.OrderDetail{}),
	}
)

// Entities lists every mapped entity.
var Entities = []*Entity{Category, Product, Cart, Order, OrderDetail}

// Lookup returns the entity registered under name.
func Lookup(name string) (*Entity, bool) {
	for _, e := range Entities {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// For returns the entity mapping the pointed-to type of record.
func For(record any) (*Entity, error) {
	t := reflect.TypeOf(record)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: %T", ErrUnmapped, record)
	}
	for _, e := range Entities {
		if e.typ == t.Elem() {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnmapped, record)
}
