package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/forkjoin/internal/api"
	"github.com/mattjoyce/forkjoin/internal/auth"
	"github.com/mattjoyce/forkjoin/internal/journal"
	"github.com/mattjoyce/forkjoin/internal/log"
	"github.com/mattjoyce/forkjoin/internal/storage"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listen := fs.String("listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Tokens))
	for _, t := range cfg.API.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	apiConfig := api.Config{
		Listen: cfg.API.Listen,
		Tokens: tokens,
	}

	srv := api.New(apiConfig, journal.New(db), log.WithComponent("api"))
	logger.Info("history API enabled", "listen", cfg.API.Listen, "auth", len(tokens) > 0)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api server failed", "error", err)
		return 1
	}

	logger.Info("forkjoin serve stopped")
	return 0
}
