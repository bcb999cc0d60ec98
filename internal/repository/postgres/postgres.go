package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AES-Git/DMG/internal/repository"
	"github.com/AES-Git/DMG/internal/repository/mapping"
)

// foreignKeyViolation is the SQLSTATE reported for a broken foreign key.
const foreignKeyViolation = "23503"

// DB is the subset of *pgxpool.Pool used by a Context.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Factory creates database contexts sharing one connection pool.
type Factory struct {
	db  DB
	log *slog.Logger
}

// NewFactory returns a Factory over db.
func NewFactory(db DB, log *slog.Logger) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{db: db, log: log}
}

// New returns a fresh Context for one unit of work.
func (f *Factory) New() *Context {
	return &Context{db: f.db, log: f.log}
}

// NewContext implements repository.ContextFactory.
func (f *Factory) NewContext() repository.Context {
	return f.New()
}

var _ repository.ContextFactory = (*Factory)(nil)

type entryState int

const (
	stateAdded entryState = iota
	stateModified
	stateDeleted
)

func (s entryState) String() string {
	switch s {
	case stateAdded:
		return "added"
	case stateModified:
		return "modified"
	default:
		return "deleted"
	}
}

type entry struct {
	state  entryState
	record any
}

// Context implements repository.Context on PostgreSQL.
type Context struct {
	db      DB
	log     *slog.Logger
	pending []entry
}

var _ repository.Context = (*Context)(nil)

// Add stages record for insertion.
func (c *Context) Add(record any) { c.pending = append(c.pending, entry{state: stateAdded, record: record}) }

// Update stages record for an update by key.
func (c *Context) Update(record any) {
	c.pending = append(c.pending, entry{state: stateModified, record: record})
}

// Remove stages record for deletion by key.
func (c *Context) Remove(record any) {
	c.pending = append(c.pending, entry{state: stateDeleted, record: record})
}

// Pending reports the number of staged changes.
func (c *Context) Pending() int { return len(c.pending) }

// SaveChanges normalizes timestamps on staged inserts and updates, then applies
// every staged change in one transaction in staging order. Generated keys are
// written back to the inserted records. The staged set is cleared on success;
// on failure it stays staged and added records get their staged keys back.
func (c *Context) SaveChanges(ctx context.Context) (int, error) {
	if len(c.pending) == 0 {
		return 0, nil
	}
	entities, restore, err := c.prepare()
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			restore()
		}
	}()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	affected := 0
	for i, e := range c.pending {
		meta := entities[i]
		n, err := c.apply(ctx, tx, meta, e)
		if err != nil {
			return 0, fmt.Errorf("save %s %s: %w", e.state, meta.Name, translate(err))
		}
		affected += n
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", translate(err))
	}
	committed = true
	c.log.Debug("changes saved", "entries", len(c.pending), "affected", affected)
	c.pending = nil
	return affected, nil
}

// prepare resolves the mapping of every staged record and normalizes the
// timestamps of added and modified ones. The returned restore func resets the
// keys and foreign keys of added records to their staged values.
func (c *Context) prepare() ([]*mapping.Entity, func(), error) {
	entities := make([]*mapping.Entity, len(c.pending))
	var undo []func()
	for i, e := range c.pending {
		meta, err := mapping.For(e.record)
		if err != nil {
			return nil, nil, err
		}
		entities[i] = meta
		if e.state == stateAdded {
			u, err := meta.Snapshot(e.record)
			if err != nil {
				return nil, nil, err
			}
			undo = append(undo, u)
		}
		if e.state != stateDeleted {
			repository.NormalizeTimestamps(e.record)
		}
	}
	restore := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	return entities, restore, nil
}

func (c *Context) apply(ctx context.Context, tx pgx.Tx, meta *mapping.Entity, e entry) (int, error) {
	switch e.state {
	case stateAdded:
		if err := meta.FixupForeignKeys(e.record); err != nil {
			return 0, err
		}
		if err := checkRequired(meta, e.record); err != nil {
			return 0, err
		}
		values, err := meta.Values(e.record)
		if err != nil {
			return 0, err
		}
		key, err := meta.KeyTarget(e.record)
		if err != nil {
			return 0, err
		}
		if err := tx.QueryRow(ctx, meta.Insert(), values...).Scan(key); err != nil {
			return 0, err
		}
		return 1, nil
	case stateModified:
		if err := checkRequired(meta, e.record); err != nil {
			return 0, err
		}
		values, err := meta.Values(e.record)
		if err != nil {
			return 0, err
		}
		key, err := meta.KeyValue(e.record)
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, meta.Update(), append(values, key)...)
		if err != nil {
			return 0, err
		}
		if tag.RowsAffected() == 0 {
			return 0, repository.ErrNotFound
		}
		return int(tag.RowsAffected()), nil
	default:
		key, err := meta.KeyValue(e.record)
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, meta.Delete(), key)
		if err != nil {
			return 0, err
		}
		return int(tag.RowsAffected()), nil
	}
}

func checkRequired(meta *mapping.Entity, record any) error {
	if err := meta.CheckRequired(record); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrForeignKeyViolation, err)
	}
	return nil
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", repository.ErrForeignKeyViolation, pgErr.ConstraintName)
	}
	return err
}
