// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipit-social/pipit/internal/config"
	"github.com/pipit-social/pipit/internal/graph"
	"github.com/pipit-social/pipit/internal/httpapi"
	"github.com/pipit-social/pipit/internal/identity"
	idpostgres "github.com/pipit-social/pipit/internal/identity/postgres"
	"github.com/pipit-social/pipit/internal/logging"
	"github.com/pipit-social/pipit/internal/observability"
	"github.com/pipit-social/pipit/internal/store"
	"github.com/pipit-social/pipit/internal/token"
	"github.com/pipit-social/pipit/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pipit API server",
		Long: `Start the API server and the metrics/health endpoint. The token
signing secret is read from PIPIT_TOKEN_SECRET (or the config file) and
must be present at startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")
	cmd.Flags().String("listen-addr", config.DefaultListenAddr, "API listen address")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("pipit", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := idpostgres.NewUserRepository(pool)
	followRepo := idpostgres.NewFollowRepository(pool)

	codec, err := token.NewCodec([]byte(cfg.TokenSecret))
	if err != nil {
		return err
	}

	authSvc, err := identity.NewAuthService(userRepo, identity.NewArgon2idHasher(), codec)
	if err != nil {
		return err
	}
	resolver, err := identity.NewSessionResolver(userRepo, codec)
	if err != nil {
		return err
	}
	graphSvc, err := graph.NewService(followRepo)
	if err != nil {
		return err
	}

	obs := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	api, err := httpapi.NewServer(cfg.ListenAddr, logger, authSvc, resolver, graphSvc, userRepo, obs.Metrics())
	if err != nil {
		return err
	}
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErrCh:
		if err != nil {
			errutil.LogError(logger, "api server failed", err)
		}
	case err := <-obsErrCh:
		if err != nil {
			errutil.LogError(logger, "observability server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := api.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "api server shutdown failed", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "observability server shutdown failed", err)
	}
	return nil
}
