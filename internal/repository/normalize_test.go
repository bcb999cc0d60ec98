package repository

import (
	"testing"
	"time"

	"github.com/AES-Git/DMG/internal/domain"
)

func TestNormalizeTimestampsRelabelsNaiveTime(t *testing.T) {
	naive := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("EST", -5*3600))
	cart := &domain.Cart{CartID: "c1", ProductID: 1, Count: 1, DateCreated: naive}

	NormalizeTimestamps(cart)

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !cart.DateCreated.Equal(want) || cart.DateCreated.Location() != time.UTC {
		t.Fatalf("expected %s, got %s", want, cart.DateCreated)
	}
}

func TestNormalizeTimestampsLocalTime(t *testing.T) {
	local := time.Date(2024, 6, 30, 18, 45, 10, 500, time.Local)
	order := &domain.Order{OrderDate: local}

	NormalizeTimestamps(order)

	if order.OrderDate.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", order.OrderDate.Location())
	}
	if order.OrderDate.Hour() != 18 || order.OrderDate.Minute() != 45 || order.OrderDate.Nanosecond() != 500 {
		t.Fatalf("wall clock changed: %s", order.OrderDate)
	}
}

func TestNormalizeTimestampsIdempotent(t *testing.T) {
	utc := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	order := &domain.Order{OrderDate: utc}

	NormalizeTimestamps(order)
	once := order.OrderDate
	NormalizeTimestamps(order)

	if once != utc || order.OrderDate != once {
		t.Fatalf("expected unchanged UTC value, got %s then %s", once, order.OrderDate)
	}
}

func TestNormalizeTimestampsPointerAndNestedFields(t *testing.T) {
	zone := time.FixedZone("X", 3600)
	ts := time.Date(2023, 3, 4, 5, 6, 7, 0, zone)
	related := &domain.Order{OrderDate: ts}
	record := &struct {
		At      *time.Time
		Nested  struct{ When time.Time }
		Related *domain.Order
		hidden  time.Time
	}{At: &ts, Related: related, hidden: ts}
	record.Nested.When = ts

	NormalizeTimestamps(record, nil, domain.Cart{})

	if record.At.Location() != time.UTC || record.At.Hour() != 5 {
		t.Fatalf("pointer field not normalized: %s", record.At)
	}
	if record.Nested.When.Location() != time.UTC {
		t.Fatalf("nested field not normalized: %s", record.Nested.When)
	}
	if related.OrderDate.Location() != zone {
		t.Fatalf("related records must be left to their own entry")
	}
	if record.hidden.Location() != zone {
		t.Fatalf("unexported fields must be untouched")
	}
}
