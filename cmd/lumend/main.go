package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/visiona/lumen/internal/core"
)

const defaultConfigPath = "config/lumen.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting lumen service",
		"config", *configPath,
		"debug", *debug,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lumen, err := core.NewLumen(*configPath)
	if err != nil {
		slog.Error("failed to create lumen service", "error", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- lumen.Run(ctx)
	}()

	// Wait for a shutdown signal, a control-plane shutdown, or a
	// startup failure.
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case runErr = <-errChan:
		if runErr != nil {
			slog.Error("service error", "error", runErr)
		} else {
			slog.Info("service stopped (via control plane shutdown)")
		}
	}

	shutdownTimeout := lumen.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := lumen.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	if runErr != nil {
		os.Exit(1)
	}

	slog.Info("lumen service stopped successfully")
}
