package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tuannm99/tinyrdb/internal"
	"github.com/tuannm99/tinyrdb/internal/engine"
	"github.com/tuannm99/tinyrdb/server/sqlwire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tinyrdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("tinyrdb-server", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "", "YAML config file")
	internal.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := internal.LoadConfig(*cfgPath, fs)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger().With("app", cfg.AppName))

	db, err := engine.Open(cfg.Storage.Workdir, engine.Options{BTreeOrder: cfg.Storage.BTreeOrder})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sqlwire.Run(ctx, cfg.Server.Addr, db); err != nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}
