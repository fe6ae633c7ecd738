// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberfall Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberfall/emberfall/internal/config"
	"github.com/emberfall/emberfall/internal/identity"
	"github.com/emberfall/emberfall/internal/logging"
	"github.com/emberfall/emberfall/internal/observability"
	"github.com/emberfall/emberfall/internal/store"
	redisstore "github.com/emberfall/emberfall/internal/store/redis"
	"github.com/emberfall/emberfall/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identity core",
		Long: `Run the identity core: load the record store, expose metrics and
health probes, and hold the live player registry until shutdown. On
SIGINT/SIGTERM every player is force-logged-out before the store closes.`,
		RunE: runServe,
	}

	addConfigFlags(cmd)

	return cmd
}

// addConfigFlags declares the flags shared by serve and provision. Defaults
// match config.Default; values from a config file win over unset flags.
func addConfigFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("store", defaults.Store, "record store backend (memory, postgres, redis)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (store=postgres)")
	cmd.Flags().String("redis-url", "", "Redis connection URL (store=redis)")
	cmd.Flags().String("token-secret", "", "session token signing secret")
	cmd.Flags().String("hasher", defaults.Hasher, "password hasher (sha256 or argon2id)")
	cmd.Flags().String("log-format", defaults.LogFormat, "log format (json or text)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return err
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, repo, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			errutil.LogError(slog.Default(), "store close failed", closeErr)
		}
	}()

	registry := service.Registry()

	var obs *observability.Server
	var obsErrCh <-chan error
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, func() bool { return true })
		obs.RegisterOnlineGauge(func() float64 { return float64(registry.OnlineCount()) })
		obs.RegisterSessionGauge(func() float64 { return float64(registry.SessionCount()) })
		service.SetMetrics(obs.Metrics())

		obsErrCh, err = obs.Start()
		if err != nil {
			return err
		}
	}

	slog.Info("identity core running",
		"store", cfg.Store,
		"hasher", cfg.Hasher,
		"metrics_addr", cfg.MetricsAddr,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr := <-obsErrCh:
		if serveErr != nil {
			errutil.LogError(slog.Default(), "observability server failed", serveErr)
		}
	}

	// Administrative shutdown: revoke every session before the store closes.
	loggedOut := service.ForceLogoutAll()
	slog.Info("forced logout complete", "players", loggedOut)

	if obs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
			errutil.LogError(slog.Default(), "observability server stop failed", stopErr)
		}
	}

	return nil
}

func setupLogging(cfg *config.Config) {
	const service = "emberfall"
	logging.SetDefault(service, version, cfg.LogFormat)
}

// buildService wires the composition root: hasher, signer, repository,
// registry, service.
func buildService(ctx context.Context, cfg *config.Config) (*identity.Service, identity.RecordRepository, error) {
	var hasher identity.PasswordHasher
	if cfg.Hasher == config.HasherArgon2id {
		hasher = identity.NewArgon2idHasher()
	} else {
		hasher = identity.NewSHA256Hasher()
	}

	signer, err := identity.NewTokenSigner([]byte(cfg.TokenSecret))
	if err != nil {
		return nil, nil, err
	}

	var repo identity.RecordRepository
	switch cfg.Store {
	case config.StorePostgres:
		repo, err = store.NewPostgresRepository(ctx, cfg.DatabaseURL)
	case config.StoreRedis:
		redisCfg := redisstore.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		repo, err = redisstore.New(redisCfg)
	default:
		repo = store.NewMemoryRepository()
	}
	if err != nil {
		return nil, nil, err
	}

	service, err := identity.NewService(identity.NewRegistry(), repo, hasher, signer)
	if err != nil {
		repo.Close() //nolint:errcheck // construction failed, best effort cleanup
		return nil, nil, err
	}
	return service, repo, nil
}
