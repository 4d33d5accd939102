package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"palaver/internal/config"
	"palaver/internal/http"
	"palaver/internal/log"
	"palaver/internal/push"
	"palaver/internal/storage"
	"palaver/internal/ws"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel)

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	notifier := push.New(bbStorage, cfg.PushSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, *logger)

	hub := ws.NewHub(ctx, ws.Config{
		HistoryLimit: cfg.HistoryLimit,
		TypingTTL:    cfg.TypingTTL,
		Store:        bbStorage,
		Pusher:       notifier,
		Logger:       *logger,
	})

	apiServer := http.NewAPIServer(hub, bbStorage, cfg.APIAddr, *logger)
	metricsServer := http.NewMetricsServer(cfg.MetricsAddr, *logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Start()
	})

	g.Go(func() error {
		return metricsServer.Start()
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
