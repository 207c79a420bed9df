package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shieldfi/shieldfi/internal/config"
	"github.com/shieldfi/shieldfi/internal/infra"
	"github.com/shieldfi/shieldfi/internal/logging"
	"github.com/shieldfi/shieldfi/internal/metal"
	"github.com/shieldfi/shieldfi/internal/notification"
	"github.com/shieldfi/shieldfi/internal/persistence"
	"github.com/shieldfi/shieldfi/internal/routes"
	"github.com/shieldfi/shieldfi/internal/server"
	"github.com/shieldfi/shieldfi/internal/session"
	"github.com/shieldfi/shieldfi/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	res, err := infra.Open(ctx, cfg)
	if err != nil {
		logger.Error("open session backend", "backend", cfg.SessionBackend, "error", err)
		os.Exit(1)
	}
	defer res.Close(logger)

	client, err := metal.NewClient(metal.Config{
		BaseURL: cfg.MetalBaseURL,
		APIKey:  cfg.MetalAPIKey,
		Network: cfg.MetalNetwork,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build metal client", "error", err)
		os.Exit(1)
	}

	hub := notification.NewHub()
	notifier := notification.Multi{notification.NewLoggerNotifier(logger), hub}
	mirror := persistence.NewMirror(res.Backend, cfg.SessionKey, logger)
	store := session.NewStore(metal.NewWalletClient(client), mirror, notifier, logger)
	state := store.Restore(ctx)
	logger.Info("session store ready", "backend", cfg.SessionBackend, "key", mirror.Key(), "state", string(state))

	srv, err := server.New(routes.Deps{
		Cfg:    cfg,
		Store:  store,
		Hub:    hub,
		Tokens: tokens.NewService(metal.NewTokenClient(client), store, logger),
		DB:     res.DB,
		Cache:  res.Redis,
		Logger: logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
