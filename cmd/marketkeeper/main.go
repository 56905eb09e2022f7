package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"marketkeeper/internal/cli"
	"marketkeeper/internal/config"
	"marketkeeper/internal/manifold"
	"marketkeeper/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Secrets come from the environment; a .env file is a convenience for
	// development and is fine to be missing.
	_ = godotenv.Load()

	configPath := "config.toml"
	if p := os.Getenv("MARKETKEEPER_CONFIG"); p != "" {
		configPath = p
	}
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.FromEnv()

	setupLogging(cfg.General.LogLevel)

	st, err := store.Open(cfg.General.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("database initialized", "path", cfg.General.DBPath)

	app := &cli.App{
		Cfg:    cfg,
		Store:  st,
		Client: manifold.NewClient(cfg.API.RequestsPerSecond),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = cli.NewRootCmd(app).ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})))
}
