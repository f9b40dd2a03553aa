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

	"github.com/rs/zerolog/log"

	"backoffice/internal/cache"
	"backoffice/internal/config"
	"backoffice/internal/httpapi"
	"backoffice/internal/logging"
	"backoffice/internal/metrics"
	"backoffice/internal/service"
	"backoffice/internal/store"
	"backoffice/internal/store/memory"
	pgstore "backoffice/internal/store/postgres"
	"backoffice/internal/store/redisstore"
)

const reportCachePrefix = "backoffice_"

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogPretty)

	if err := validateStorageConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid storage configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("storage unavailable")
	}
	closers = append(closers, repo.Close)
	log.Info().Str("backend", cfg.StorageBackend).Msg("repository ready")

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, reportCachePrefix)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, report cache disabled")
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("report cache: redis")
		}
	} else {
		log.Info().Msg("report cache: noop")
	}

	m := metrics.New()
	svc, err := service.New(ctx, repo, service.Options{
		Cache:         reportCache,
		CacheTTL:      time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		Metrics:       m,
		SeedInventory: cfg.SeedInventory,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load state")
	}
	api := httpapi.New(svc, m, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("back office listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateStorageConfig(cfg config.Config) error {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
		return nil
	case config.BackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ADDR")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// openRepository never falls back to memory when a durable backend was
// asked for.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		return pgstore.New(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return rs, nil
	default:
		return memory.New(), nil
	}
}
