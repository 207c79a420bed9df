package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shieldfi/shieldfi/internal/config"
	"github.com/shieldfi/shieldfi/internal/infra"
	"github.com/shieldfi/shieldfi/internal/logging"
	"github.com/shieldfi/shieldfi/internal/metal"
	"github.com/shieldfi/shieldfi/internal/notification"
	"github.com/shieldfi/shieldfi/internal/persistence"
	"github.com/shieldfi/shieldfi/internal/session"
	"github.com/shieldfi/shieldfi/internal/tokens"
)

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	store  *session.Store
	tokens *tokens.Service
	res    *infra.Resources
	logger *slog.Logger
}

type appKey struct{}

// openApp wires the store and token service. The CLI defaults to the file backend so a
// session survives between invocations.
func openApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if os.Getenv("SESSION_BACKEND") == "" {
		cfg.SessionBackend = config.BackendFile
	}
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := logging.NewWithWriter(stderr, level, "text")

	res, err := infra.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session backend: %w", err)
	}

	client, err := metal.NewClient(metal.Config{
		BaseURL: cfg.MetalBaseURL,
		APIKey:  cfg.MetalAPIKey,
		Network: cfg.MetalNetwork,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		res.Close(logger)
		return nil, err
	}

	mirror := persistence.NewMirror(res.Backend, cfg.SessionKey, logger)
	store := session.NewStore(metal.NewWalletClient(client), mirror, notification.NewLoggerNotifier(logger), logger)
	store.Restore(ctx)

	return &app{
		store:  store,
		tokens: tokens.NewService(metal.NewTokenClient(client), store, logger),
		res:    res,
		logger: logger,
	}, nil
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type statusView struct {
	State   session.State          `json:"state"`
	Session *session.WalletSession `json:"session"`
}

func printStatus(cmd *cobra.Command, store *session.Store) error {
	state, current := store.Snapshot()
	return printJSON(cmd, statusView{State: state, Session: current})
}
