package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AES-Git/DMG/internal/dsn"
	"github.com/AES-Git/DMG/internal/secrets"
	"github.com/AES-Git/DMG/pkg/config"
)

type stubSecrets struct {
	byName   map[string]string
	byPrefix map[string]string
	nameErr  error
	listErr  error
	calls    int
}

func (s *stubSecrets) ResolveByName(_ context.Context, name string) (string, error) {
	s.calls++
	if s.nameErr != nil {
		return "", s.nameErr
	}
	if v, ok := s.byName[name]; ok {
		return v, nil
	}
	return "", secrets.ErrSecretNotFound
}

func (s *stubSecrets) ResolveByDescriptionPrefix(_ context.Context, prefix string) (string, error) {
	s.calls++
	if s.listErr != nil {
		return "", s.listErr
	}
	if v, ok := s.byPrefix[prefix]; ok {
		return v, nil
	}
	return "", secrets.ErrSecretNotFound
}

// hangingSecrets blocks every lookup until its context ends.
type hangingSecrets struct{ calls int }

func (s *hangingSecrets) ResolveByName(ctx context.Context, _ string) (string, error) {
	s.calls++
	<-ctx.Done()
	return "", fmt.Errorf("%w: %w", secrets.ErrSecretStoreUnreachable, ctx.Err())
}

func (s *hangingSecrets) ResolveByDescriptionPrefix(ctx context.Context, _ string) (string, error) {
	s.calls++
	<-ctx.Done()
	return "", fmt.Errorf("%w: %w", secrets.ErrSecretStoreUnreachable, ctx.Err())
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestResolvePrimarySecret(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{byName: map[string]string{
		cfg.Secrets.PrimaryName: `{"username":"admin","password":"secret","host":"db.example.com","port":5432}`,
	}}

	res, err := New(cfg, src, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourcePrimarySecret, res.Source)
	assert.Equal(t, "Host=db.example.com;Port=5432;Database=dmg;Username=admin;Password=secret;SslMode=Require;Trust Server Certificate=true", res.ConnString)
	assert.Equal(t, 1, src.calls)
}

func TestResolveFallbackSecret(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{byPrefix: map[string]string{
		cfg.Secrets.DescriptionPrefix: `{"username":"admin","password":"secret","host":"db.example.com","port":"5432","dbname":"dmg2"}`,
	}}

	res, err := New(cfg, src, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFallbackSecret, res.Source)
	assert.Equal(t, "Server=db.example.com,5432;Database=dmg2;User Id=admin;Password=secret;TrustServerCertificate=true;Encrypt=true", res.ConnString)
}

func TestResolveFallsBackWhenPrimaryIsIncomplete(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{
		byName: map[string]string{cfg.Secrets.PrimaryName: `{"username":"admin","host":"db.example.com","port":5432}`},
		byPrefix: map[string]string{
			cfg.Secrets.DescriptionPrefix: `{"username":"u","password":"p","host":"h","port":1,"dbname":"d"}`,
		},
	}

	res, err := New(cfg, src, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFallbackSecret, res.Source)
	assert.Equal(t, dsn.Fallback(dsn.Credentials{Host: "h", Port: "1", Database: "d", Username: "u", Password: "p"}), res.ConnString)
}

func TestResolveBlankPrimaryUsesFallback(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{
		byName:   map[string]string{cfg.Secrets.PrimaryName: "   "},
		byPrefix: map[string]string{cfg.Secrets.DescriptionPrefix: `{"username":"u","password":"p","host":"h","port":1,"dbname":"d"}`},
	}
	res, err := New(cfg, src, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFallbackSecret, res.Source)
}

func TestResolveLocalConnection(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DefaultConnection = "Host=localhost;Database=test"
	src := &stubSecrets{nameErr: secrets.ErrSecretStoreUnreachable, listErr: secrets.ErrSecretStoreUnreachable}

	res, err := New(cfg, src, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLocalConfig, res.Source)
	assert.Equal(t, "Host=localhost;Database=test", res.ConnString)
	assert.Equal(t, 2, src.calls, "local fallback must not trigger further remote calls")
}

func TestResolveNilSourceUsesLocalConnection(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DefaultConnection = "Host=localhost;Database=test"

	res, err := New(cfg, nil, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLocalConfig, res.Source)
}

func TestResolveWithoutAnySource(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{nameErr: secrets.ErrAccessDenied, listErr: secrets.ErrSecretStoreUnreachable}

	_, err := New(cfg, src, discard()).Resolve(context.Background())
	require.ErrorIs(t, err, ErrConnectionStringUnavailable)
	assert.ErrorIs(t, err, secrets.ErrAccessDenied)
	assert.ErrorIs(t, err, secrets.ErrSecretStoreUnreachable)
}

func TestResolveHonoursSecretsTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.Timeout = 20 * time.Millisecond
	src := &hangingSecrets{}

	started := time.Now()
	_, err := New(cfg, src, discard()).Resolve(context.Background())
	require.ErrorIs(t, err, ErrConnectionStringUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, src.calls)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestResolveUsesLocalConnectionAfterTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.Timeout = 20 * time.Millisecond
	cfg.Database.DefaultConnection = "Host=localhost;Database=test"

	res, err := New(cfg, &hangingSecrets{}, discard()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLocalConfig, res.Source)
	assert.Equal(t, "Host=localhost;Database=test", res.ConnString)
}

func TestResolveSecretsIgnoresLocalConnection(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DefaultConnection = "Host=localhost;Database=test"
	src := &stubSecrets{}

	_, err := New(cfg, src, discard()).ResolveSecrets(context.Background())
	require.ErrorIs(t, err, ErrConnectionStringUnavailable)
	assert.True(t, errors.Is(err, secrets.ErrSecretNotFound))
}

func TestOpenFailsBeforeDialing(t *testing.T) {
	cfg := config.Default()
	src := &stubSecrets{nameErr: secrets.ErrSecretStoreUnreachable, listErr: secrets.ErrSecretStoreUnreachable}

	app, err := Open(context.Background(), cfg, src, discard())
	require.ErrorIs(t, err, ErrConnectionStringUnavailable)
	assert.Nil(t, app)
}

func TestConnectRejectsMalformedConnectionString(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DefaultConnection = "Database=test"

	_, err := Connect(context.Background(), cfg, nil, discard())
	var perr *dsn.ParseError
	require.ErrorAs(t, err, &perr)
}
