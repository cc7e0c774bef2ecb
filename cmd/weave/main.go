// Command weave runs the receipt ledger: it accepts CloudEvents over HTTP,
// stores tamper-evident receipts, and serves them back by id or trace.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ocn-ai/weave/pkg/api"
	"github.com/ocn-ai/weave/pkg/config"
	"github.com/ocn-ai/weave/pkg/event"
	"github.com/ocn-ai/weave/pkg/ingest"
	"github.com/ocn-ai/weave/pkg/logging"
	"github.com/ocn-ai/weave/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "weave: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel)

	receipts, err := store.Open(cfg.StorageBackend, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = receipts.Close() }()

	service := ingest.NewService(event.NewValidator(cfg.AllowedEventTypes), receipts, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(service, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("weave listening",
			"addr", cfg.ListenAddr,
			"backend", cfg.StorageBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
