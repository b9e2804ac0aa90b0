package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"siteaudit/internal/config"
	"siteaudit/internal/crawler"
	"siteaudit/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to audit configuration file")
	target := flag.String("target", "", "Target URL, overrides target.url from the config")
	flag.Parse()

	// Optional: secrets like the DB DSN can live in a local .env file.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *target != "" {
		cfg.Target.URL = *target
	}
	if dsn := os.Getenv("SITEAUDIT_DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
		if cfg.DB.Driver == "" {
			cfg.DB.Driver = "postgres"
		}
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	engine, err := crawler.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	store, err := storage.NewReportStore(cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open report store: %v\n", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := engine.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit stopped with error: %v\n", err)
		os.Exit(1)
	}

	if store != nil {
		if err := store.Save(ctx, result); err != nil {
			logger.Error("failed to persist report", "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Structured {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
