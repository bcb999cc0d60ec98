// Package bootstrap resolves the database connection string at process start
// and wires the pool, schema and services built on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AES-Git/DMG/internal/dsn"
	"github.com/AES-Git/DMG/internal/secrets"
	"github.com/AES-Git/DMG/pkg/config"
)

// ErrConnectionStringUnavailable is returned when neither the secret store nor
// local configuration yields a connection string.
var ErrConnectionStringUnavailable = errors.New("unable to retrieve connection string from secrets manager and no local connection string is configured")

var errBlankSecret = errors.New("secret payload is blank")

// SecretSource looks secrets up by name or description prefix.
type SecretSource interface {
	ResolveByName(ctx context.Context, name string) (string, error)
	ResolveByDescriptionPrefix(ctx context.Context, prefix string) (string, error)
}

var _ SecretSource = (*secrets.Resolver)(nil)

// Source records where a connection string came from.
type Source string

const (
	SourcePrimarySecret  Source = "primary_secret"
	SourceFallbackSecret Source = "fallback_secret"
	SourceLocalConfig    Source = "local_config"
)

// Resolution is a resolved connection string and its origin.
type Resolution struct {
	ConnString string
	Source     Source
}

// Bootstrapper runs the ordered connection string strategy: primary secret,
// fallback secret, then local configuration.
type Bootstrapper struct {
	secrets SecretSource
	cfg     config.Config
	log     *slog.Logger
}

// New returns a Bootstrapper. A nil src is treated as an unreachable store.
func New(cfg config.Config, src SecretSource, log *slog.Logger) *Bootstrapper {
	if log == nil {
		log = slog.Default()
	}
	return &Bootstrapper{secrets: src, cfg: cfg, log: log}
}

// Resolve returns a connection string from the secret store, or the configured
// default connection when the store yields none. The default is used verbatim.
func (b *Bootstrapper) Resolve(ctx context.Context) (Resolution, error) {
	res, err := b.ResolveSecrets(ctx)
	if err == nil {
		return res, nil
	}
	local := b.cfg.Database.DefaultConnection
	if strings.TrimSpace(local) == "" {
		return Resolution{}, err
	}
	b.log.Warn("secrets manager unavailable, using local connection string", "error", err)
	return Resolution{ConnString: local, Source: SourceLocalConfig}, nil
}

// ResolveSecrets tries the primary then the fallback secret. On failure the
// error wraps ErrConnectionStringUnavailable together with both causes.
func (b *Bootstrapper) ResolveSecrets(ctx context.Context) (Resolution, error) {
	if b.secrets == nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrConnectionStringUnavailable, secrets.ErrSecretStoreUnreachable)
	}
	if b.cfg.Secrets.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Secrets.Timeout)
		defer cancel()
	}

	conn, primaryErr := b.primary(ctx)
	if primaryErr == nil {
		return Resolution{ConnString: conn, Source: SourcePrimarySecret}, nil
	}
	b.log.Warn("primary secret unusable", "secret_name", b.cfg.Secrets.PrimaryName, "error", primaryErr)

	conn, fallbackErr := b.fallback(ctx)
	if fallbackErr == nil {
		return Resolution{ConnString: conn, Source: SourceFallbackSecret}, nil
	}
	b.log.Warn("fallback secret unusable", "description_prefix", b.cfg.Secrets.DescriptionPrefix, "error", fallbackErr)

	return Resolution{}, fmt.Errorf("%w: %w", ErrConnectionStringUnavailable, errors.Join(primaryErr, fallbackErr))
}

func (b *Bootstrapper) primary(ctx context.Context) (string, error) {
	name := strings.TrimSpace(b.cfg.Secrets.PrimaryName)
	if name == "" {
		return "", fmt.Errorf("primary secret: %w: no name configured", secrets.ErrSecretNotFound)
	}
	payload, err := b.secrets.ResolveByName(ctx, name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(payload) == "" {
		return "", fmt.Errorf("primary secret: %w", errBlankSecret)
	}
	fields, err := secrets.ExtractFields(payload, "username", "password", "host", "port")
	if err != nil {
		return "", fmt.Errorf("primary secret: %w", err)
	}
	return dsn.Primary(dsn.Credentials{
		Host:     fields["host"],
		Port:     fields["port"],
		Database: b.cfg.Secrets.PrimaryDatabase,
		Username: fields["username"],
		Password: fields["password"],
	}), nil
}

func (b *Bootstrapper) fallback(ctx context.Context) (string, error) {
	prefix := b.cfg.Secrets.DescriptionPrefix
	if strings.TrimSpace(prefix) == "" {
		return "", fmt.Errorf("fallback secret: %w: no description prefix configured", secrets.ErrSecretNotFound)
	}
	payload, err := b.secrets.ResolveByDescriptionPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(payload) == "" {
		return "", fmt.Errorf("fallback secret: %w", errBlankSecret)
	}
	fields, err := secrets.ExtractFields(payload, "username", "password", "host", "port", "dbname")
	if err != nil {
		return "", fmt.Errorf("fallback secret: %w", err)
	}
	return dsn.Fallback(dsn.Credentials{
		Host:     fields["host"],
		Port:     fields["port"],
		Database: fields["dbname"],
		Username: fields["username"],
		Password: fields["password"],
	}), nil
}
