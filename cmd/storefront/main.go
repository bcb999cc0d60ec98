package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AES-Git/DMG/internal/app/bootstrap"
	httpx "github.com/AES-Git/DMG/internal/http"
	"github.com/AES-Git/DMG/internal/secrets"
	apiclient "github.com/AES-Git/DMG/pkg/api/client"
	"github.com/AES-Git/DMG/pkg/config"
	"github.com/AES-Git/DMG/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "path to a TOML config file (optional)")
	healthcheck := flag.Bool("healthcheck", false, "probe /healthz of a running process and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("storefront", logger.ParseLevel("info")).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New("storefront", logger.ParseLevel(cfg.LogLevel))

	if *healthcheck {
		os.Exit(probe(cfg.Addr, log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var src bootstrap.SecretSource
	resolver, err := secrets.NewFromConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint, log)
	if err != nil {
		log.Warn("secrets manager client unavailable", "error", err)
	} else {
		src = resolver
	}

	app, err := bootstrap.Open(ctx, cfg, src, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpx.NewRouter(log, app.Pool.Ping)
	router.SetConnectionSource(string(app.Resolution.Source), string(app.Dialect))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "addr", cfg.Addr, "connection_source", app.Resolution.Source)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("storefront stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			app.Close()
			os.Exit(1)
		}
	}
}

// probe checks a running process and returns the exit code for it.
func probe(addr string, log *slog.Logger) int {
	cli, err := apiclient.New(addr)
	if err != nil {
		log.Error("invalid health check address", "error", err)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Health(ctx); err != nil {
		log.Error("health check failed", "error", err)
		return 1
	}
	return 0
}
