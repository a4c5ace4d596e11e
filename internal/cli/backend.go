package cli

import (
	"context"
	"fmt"

	"answerlab/internal/app"
	"answerlab/internal/config"
	"answerlab/internal/domain"
	"answerlab/internal/infra/memory"
	pgslot "answerlab/internal/infra/postgres"
	redisslot "answerlab/internal/infra/redis"
	"answerlab/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// openSlot connects the configured storage backend. The returned close
// function releases its connections.
func openSlot(ctx context.Context, cfg config.Config) (app.KeyValueStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.NewKeyValueStore(), func() {}, nil
	case config.DriverSQLite, "":
		kv, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	case config.DriverRedis:
		if cfg.Redis.Addr == "" {
			return nil, nil, fmt.Errorf("redis addr not configured")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.TTLDuration(cfg.Redis.TTL, 0)
		return redisslot.NewKeyValueStore(client, cfg.Redis.Prefix, ttl), func() { _ = client.Close() }, nil
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return pgslot.NewKeyValueStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// openStore loads config, connects the slot and loads the sheet collection.
func openStore(ctx context.Context, configPath string) (*app.SheetStore, config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, nil, err
	}
	kv, closeFn, err := openSlot(ctx, cfg)
	if err != nil {
		return nil, cfg, nil, err
	}
	return app.NewSheetStore(ctx, kv, app.WithStorageKey(cfg.Storage.Key)), cfg, closeFn, nil
}

func rawWeights(cfg config.Config) map[app.Category]string {
	return map[app.Category]string{
		app.CategoryCorrect:   cfg.Scoring.Correct,
		app.CategoryIncorrect: cfg.Scoring.Incorrect,
		app.CategoryNoAnswer:  cfg.Scoring.NoAnswer,
	}
}

func configWeights(cfg config.Config) domain.Weights {
	return app.ParseWeights(cfg.Scoring.Correct, cfg.Scoring.Incorrect, cfg.Scoring.NoAnswer)
}
