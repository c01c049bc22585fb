// Command eisctl signs in to the EIS backend from a terminal. It shares the
// credential store with the dashboard shell.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/app"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/config"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
)

func main() {
	logger.InitFormat(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	// keep the terminal quiet unless asked
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	logger.InitFormat(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open session: %v", err)
	}
	cli := &commandLine{sess: a.Manager, out: os.Stdout}
	err = cli.run(ctx, os.Args)
	a.Close()
	switch {
	case err == nil:
	case errors.Is(err, errHelp):
		os.Exit(2)
	default:
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
