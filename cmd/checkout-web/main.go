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

	"github.com/sr22fit/checkout-web/internal/app/bootstrap"
	appconfig "github.com/sr22fit/checkout-web/internal/config"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sr22 checkout web",
		"env", cfg.Env,
		"port", cfg.Port,
		"public_base_url", cfg.PublicBaseURL,
		"lock_preselected", cfg.LockPreselectedService,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store := bootstrap.BuildSnapshotStore(redisClient, cfg.SessionTTL, logger)

	app, err := bootstrap.BuildCheckout(ctx, cfg, logger, bootstrap.CheckoutDeps{Store: store})
	if err != nil {
		return err
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		app.Registry.Run(sweepCtx)
		close(sweepDone)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Lookups and gateway calls run inside requests.
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		cancelSweep()
		<-sweepDone
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// Unmount every session only after in-flight requests finished.
	cancelSweep()
	<-sweepDone
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
