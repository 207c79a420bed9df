package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shieldfi/shieldfi/internal/config"
	"github.com/shieldfi/shieldfi/internal/persistence"
)

// Resources are the process-wide connections behind the session mirror.
type Resources struct {
	Backend persistence.Backend
	Redis   *redis.Client
	DB      *pgxpool.Pool
}

// Open connects the backend selected by cfg.SessionBackend. Redis is also opened whenever
// REDIS_URL is set because idempotency and rate limiting rely on it.
func Open(ctx context.Context, cfg config.Config) (*Resources, error) {
	res := &Resources{}

	if cfg.RedisURL != "" {
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		res.Redis = client
	}

	switch cfg.SessionBackend {
	case config.BackendMemory:
		res.Backend = persistence.NewMemoryBackend()
	case config.BackendFile:
		backend, err := persistence.NewFileBackend(cfg.SessionDir)
		if err != nil {
			res.Close(nil)
			return nil, err
		}
		res.Backend = backend
	case config.BackendRedis:
		if res.Redis == nil {
			return nil, fmt.Errorf("redis backend requires REDIS_URL")
		}
		res.Backend = persistence.NewRedisBackend(res.Redis)
	case config.BackendPostgres:
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			res.Close(nil)
			return nil, err
		}
		res.DB = pool
		backend := persistence.NewPostgresBackend(pool)
		if err := backend.EnsureSchema(ctx); err != nil {
			res.Close(nil)
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		res.Backend = backend
	default:
		res.Close(nil)
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	return res, nil
}

// Close releases every opened connection.
func (r *Resources) Close(logger *slog.Logger) {
	if r.DB != nil {
		r.DB.Close()
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil && logger != nil {
			logger.Warn("close redis", slog.Any("error", err))
		}
	}
}
