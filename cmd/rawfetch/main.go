package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-rawfetch/internal/app"
	"github.com/samvad-hq/samvad-rawfetch/internal/config"
	"github.com/samvad-hq/samvad-rawfetch/internal/logger"
	"github.com/samvad-hq/samvad-rawfetch/pkg/publishers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rawfetch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.URL != "" {
		logger.DebugObj("single fetch", "url", cfg.URL)
		page, err := app.FetchOne(ctx, cfg, log, cfg.URL)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", cfg.URL, err)
		}
		return publishers.NewWriterPublisher("stdout", os.Stdout).
			Publish(ctx, publishers.NewEvent("adhoc", "", page))
	}

	logger.InfoObj("rawfetch starting", "config", cfg)

	reader, err := app.NewReader(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize reader", "error", err.Error())
		return err
	}

	if err := reader.Run(ctx); err != nil {
		return fmt.Errorf("reader run: %w", err)
	}
	return nil
}
