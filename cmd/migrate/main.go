package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/AES-Git/DMG/db/migrations"
	"github.com/AES-Git/DMG/internal/app/bootstrap"
	"github.com/AES-Git/DMG/internal/app/migrate"
	"github.com/AES-Git/DMG/internal/secrets"
	"github.com/AES-Git/DMG/pkg/config"
	"github.com/AES-Git/DMG/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	configPath := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "path to a TOML config file (optional)")
	flag.Parse()

	log := logger.New("migrate", logger.ParseLevel("info"))
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var src bootstrap.SecretSource
	if resolver, err := secrets.NewFromConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint, log); err != nil {
		log.Warn("secrets manager client unavailable", "error", err)
	} else {
		src = resolver
	}

	conn, err := bootstrap.Connect(ctx, cfg, src, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	runner, err := migrate.New(conn.Pool, migrations.FS, *timeout, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	switch *command {
	case "up":
		err = runner.Ensure(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
