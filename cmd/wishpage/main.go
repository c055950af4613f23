package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/wishpage"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("wishpage %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := wishpage.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := wishpage.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}

	app := wishpage.New(cfg, wishpage.WithLogger(logger))
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Init(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("version", version))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func printUsage() {
	fmt.Println(`wishpage - personalized celebration pages with shareable links

Usage:
  wishpage [command]

Commands:
  serve         Start the web server (default)
  version       Print the wishpage version
  help          Show this help message

Configuration is read from the environment and from .env / .env.local.
Common variables:
  PORT, SITE_URL, GENERATED_DIR, ASSET_BACKEND, MANIFEST_BACKEND,
  DATABASE_PATH, REDIS_ADDRESS, MINIO_ENDPOINT, MINIO_BUCKET, LOG_LEVEL`)
}
