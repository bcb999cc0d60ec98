package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AES-Git/DMG/internal/domain"
	"github.com/AES-Git/DMG/internal/repository"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeTx struct {
	pgx.Tx

	statements []string
	nextKey    int64
	insertErr  error
	failAfter  int64
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	tx.statements = append(tx.statements, sql)
	return fakeRow{scan: func(dest ...any) error {
		if tx.insertErr != nil && tx.nextKey >= tx.failAfter {
			return tx.insertErr
		}
		tx.nextKey++
		*(dest[0].(*int64)) = tx.nextKey
		return nil
	}}
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.statements = append(tx.statements, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (db *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) { return db.tx, nil }

func newTestFactory(tx *fakeTx) *Factory {
	return NewFactory(&fakeDB{tx: tx}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSaveChangesInsertsInOrderAndFixesKeys(t *testing.T) {
	tx := &fakeTx{}
	db := newTestFactory(tx).New()

	order := &domain.Order{Username: "ada", OrderDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("EST", -5*3600))}
	detail := &domain.OrderDetail{Order: order, ProductID: 3, Quantity: 2, UnitPrice: 9.5}
	cart := &domain.Cart{RecordID: 11, CartID: "c1", ProductID: 3}
	db.Add(order)
	db.Add(detail)
	db.Remove(cart)

	affected, err := db.SaveChanges(context.Background())
	if err != nil {
		t.Fatalf("SaveChanges returned error: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 affected rows, got %d", affected)
	}
	if !tx.committed {
		t.Fatalf("expected commit")
	}
	if order.OrderID != 1 || detail.OrderDetailID != 2 {
		t.Fatalf("generated keys not written back: order=%d detail=%d", order.OrderID, detail.OrderDetailID)
	}
	if detail.OrderID != order.OrderID {
		t.Fatalf("expected detail to reference order %d, got %d", order.OrderID, detail.OrderID)
	}
	if order.OrderDate.Location() != time.UTC || order.OrderDate.Hour() != 0 {
		t.Fatalf("order date not normalized: %s", order.OrderDate)
	}
	if len(tx.statements) != 3 ||
		!strings.HasPrefix(tx.statements[0], "INSERT INTO dps_dbo.orders") ||
		!strings.HasPrefix(tx.statements[1], "INSERT INTO dps_dbo.orderdetails") ||
		!strings.HasPrefix(tx.statements[2], "DELETE FROM dps_dbo.carts") {
		t.Fatalf("unexpected statements %q", tx.statements)
	}
	if db.Pending() != 0 {
		t.Fatalf("expected staged changes to be cleared")
	}
}

func TestSaveChangesRejectsMissingProduct(t *testing.T) {
	tx := &fakeTx{}
	db := newTestFactory(tx).New()
	db.Add(&domain.OrderDetail{OrderID: 1, Quantity: 1})

	_, err := db.SaveChanges(context.Background())
	if !errors.Is(err, repository.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback without commit")
	}
	if len(tx.statements) != 0 {
		t.Fatalf("no statement should reach the database, got %q", tx.statements)
	}
}

func TestSaveChangesTranslatesForeignKeyError(t *testing.T) {
	tx := &fakeTx{insertErr: &pgconn.PgError{Code: "23503", ConstraintName: "fk_orderdetails_product"}}
	db := newTestFactory(tx).New()
	db.Add(&domain.OrderDetail{OrderID: 1, ProductID: 999, Quantity: 1})

	_, err := db.SaveChanges(context.Background())
	if !errors.Is(err, repository.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
	if !strings.Contains(err.Error(), "fk_orderdetails_product") {
		t.Fatalf("expected constraint name in error, got %v", err)
	}
	if tx.committed {
		t.Fatalf("transaction must not commit")
	}
	if db.Pending() != 1 {
		t.Fatalf("failed changes must stay staged")
	}
}

func TestFailedSaveRestoresStagedKeys(t *testing.T) {
	tx := &fakeTx{insertErr: &pgconn.PgError{Code: "23503", ConstraintName: "fk_orderdetails_product"}, failAfter: 1}
	db := newTestFactory(tx).New()

	order := &domain.Order{Username: "ada"}
	detail := &domain.OrderDetail{Order: order, ProductID: 999, Quantity: 1}
	db.Add(order)
	db.Add(detail)

	if _, err := db.SaveChanges(context.Background()); !errors.Is(err, repository.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
	if order.OrderID != 0 || detail.OrderID != 0 || detail.OrderDetailID != 0 {
		t.Fatalf("keys leaked from failed save: order=%d detail.order=%d detail=%d", order.OrderID, detail.OrderID, detail.OrderDetailID)
	}

	tx.insertErr = nil
	if _, err := db.SaveChanges(context.Background()); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if order.OrderID == 0 || detail.OrderID != order.OrderID {
		t.Fatalf("retry must link detail to new order key: order=%d detail.order=%d", order.OrderID, detail.OrderID)
	}
}

func TestSaveChangesRejectsUnmappedRecord(t *testing.T) {
	tx := &fakeTx{}
	db := newTestFactory(tx).New()
	db.Add(&struct{ Name string }{Name: "x"})

	if _, err := db.SaveChanges(context.Background()); err == nil {
		t.Fatalf("expected error for unmapped record")
	}
	if tx.committed || len(tx.statements) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestSaveChangesWithoutChanges(t *testing.T) {
	db := newTestFactory(&fakeTx{}).New()
	affected, err := db.SaveChanges(context.Background())
	if err != nil || affected != 0 {
		t.Fatalf("expected no-op, got %d, %v", affected, err)
	}
}

func TestTranslate(t *testing.T) {
	if err := translate(pgx.ErrNoRows); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := &pgconn.PgError{Code: "23505"}
	if err := translate(other); !errors.Is(err, other) {
		t.Fatalf("expected unrelated errors to pass through, got %v", err)
	}
	if translate(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestGetProductByIDNotFound(t *testing.T) {
	db := newTestFactory(&fakeTx{}).New()
	if _, err := db.GetProductByID(context.Background(), 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
