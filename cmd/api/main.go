// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api serves protected documents.
//
// Startup connects PostgreSQL, then Redis when REDIS_URL is set, applies
// migrations, opens the document store (filesystem or S3) and listens until
// SIGINT or SIGTERM. Any startup failure exits with status 1.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/lectern/internal/access"
	"github.com/taibuivan/lectern/internal/api"
	"github.com/taibuivan/lectern/internal/document"
	"github.com/taibuivan/lectern/internal/platform/config"
	"github.com/taibuivan/lectern/internal/platform/constants"
	"github.com/taibuivan/lectern/internal/platform/migration"
	pgstore "github.com/taibuivan/lectern/internal/platform/postgres"
	redisstore "github.com/taibuivan/lectern/internal/platform/redis"
	"github.com/taibuivan/lectern/internal/platform/sec"
	"github.com/taibuivan/lectern/internal/platform/storage"
)

func main() {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_closing")
		pool.Close()
	}()

	checks := []api.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
	}

	// Without Redis, nonces live in this process and tokens only work on it.
	var nonces access.NonceRegistry
	if cfg.RedisURL != "" {
		var rdb *goredis.Client
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Warn("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		nonces = access.NewRedisNonceRegistry(rdb)
		checks = append(checks, api.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		})
	} else {
		memory := access.NewMemoryNonceRegistry()
		go memory.RunSweeper(rootCtx, cfg.TokenTTL)
		nonces = memory
		log.Warn("redis_not_configured", slog.String("nonce_registry", "memory"))
	}

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	store, err := openStore(startupCtx, cfg)
	must(log, err, "open document store")
	checks = append(checks, api.HealthCheck{Name: "storage", Check: store.Ping})

	capabilities, err := sec.NewCapabilityService(cfg.TokenSecret, constants.TokenKeyInfo, constants.TokenIssuer, constants.TokenAudienceServe)
	must(log, err, "initialize capability tokens")

	validator := access.NewTokenValidator(capabilities, nonces, cfg.TokenTTL)
	gateway := document.NewGateway(validator, document.NewPostgresRepository(pool), store)

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{Checks: checks}, log)

	server := api.NewServer(rootCtx, cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Documents: document.NewHandler(gateway),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serverErr:
		log.Error("server_failed", slog.Any("error", err))
	}

	log.Info("server_draining", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// newLogger builds the JSON logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// openStore selects the document backend named by the configuration.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, cfg.S3())
	}
	return storage.NewFileStore(cfg.StorageRoot)
}

// must exits on a startup error. It is not used once the server is running.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
