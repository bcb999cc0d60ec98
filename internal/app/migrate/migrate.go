package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ErrSchemaInitialization is returned when pending migrations cannot be applied.
var ErrSchemaInitialization = errors.New("schema initialization failed")

// Runner wraps database migration capabilities.
type Runner struct {
	db       *sql.DB
	provider *goose.Provider
	timeout  time.Duration
	log      *slog.Logger
}

// New returns a migration runner backed by goose. It shares connections with
// pool; closing the runner leaves the pool open.
func New(pool *pgxpool.Pool, migrations fs.FS, timeout time.Duration, log *slog.Logger) (*Runner, error) {
	if pool == nil {
		return nil, errors.New("nil pool provided")
	}
	return newRunner(stdlib.OpenDBFromPool(pool), migrations, timeout, log)
}

func newRunner(db *sql.DB, migrations fs.FS, timeout time.Duration, log *slog.Logger) (*Runner, error) {
	if migrations == nil {
		return nil, errors.New("nil migrations filesystem")
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	return &Runner{db: db, provider: provider, timeout: timeout, log: log}, nil
}

// Ensure applies pending migrations. Applied migrations are never re-run, so
// calling it against an initialized schema is a no-op.
func (r *Runner) Ensure(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.log.Info("applying migrations")
	results, err := r.provider.Up(runCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaInitialization, err)
	}
	for _, res := range results {
		r.log.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	r.log.Info("migrations applied", "count", len(results))
	return nil
}

// Status logs applied and pending migrations.
func (r *Runner) Status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	for _, st := range statuses {
		attrs := []any{"version", st.Source.Version, "path", st.Source.Path, "state", string(st.State)}
		if !st.AppliedAt.IsZero() {
			attrs = append(attrs, "applied_at", st.AppliedAt)
		}
		r.log.Info("migration status", attrs...)
	}
	return nil
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r *Runner) Down(ctx context.Context, targetVersion int64) error {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if targetVersion > 0 {
		r.log.Info("rolling back migrations", "target", targetVersion)
		if _, err := r.provider.DownTo(runCtx, targetVersion); err != nil {
			return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
		}
	} else {
		r.log.Info("rolling back latest migration")
		if _, err := r.provider.Down(runCtx); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
	}

	r.log.Info("rollback complete")
	return nil
}

// Versions lists the migration versions known to the runner, in order.
func (r *Runner) Versions() []int64 {
	sources := r.provider.ListSources()
	out := make([]int64, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Version)
	}
	return out
}

// Close releases the database handle used for migrations.
func (r *Runner) Close() error {
	return r.db.Close()
}
