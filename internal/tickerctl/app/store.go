package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	redisstore "github.com/aussiebroadwan/tickerwatch/pkg/credstore/drivers/redis"
	"github.com/aussiebroadwan/tickerwatch/pkg/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/tickerwatch/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// openStore builds the credential store for cfg.StoreDriver.
//
// Drivers:
//   - "sqlite": the persistent lifetime lives in a local SQLite file.
//   - "redis": the persistent lifetime lives in Redis under a key prefix,
//     for workstations whose home directory is not persistent.
//   - "memory": nothing survives the process; used for tests and demos.
//
// Persistent values are sealed with a key derived from the master key file.
// The ephemeral lifetime is always in memory.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (*credstore.Store, func() error, error) {
	ephemeral := credstore.NewMemoryBackend()
	noop := func() error { return nil }

	var (
		persistent credstore.Backend
		closer     func() error
	)

	switch cfg.StoreDriver {
	case DriverMemory:
		logger.Debug("using in-memory credential store")
		return credstore.New(credstore.NewMemoryBackend(), ephemeral), noop, nil

	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseFile), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		db, err := sqlite.NewStore(sqlite.FileDSN(cfg.DatabaseFile))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open credential database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to apply credential migrations: %w", err)
		}

		logger.Debug("credential database ready", "path", cfg.DatabaseFile)
		persistent, closer = db, db.Close

	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		rs := redisstore.NewStore(rdb, cfg.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}

		logger.Debug("redis credential store ready", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		persistent, closer = rs, rs.Close

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	material, err := cryptox.LoadOrCreateKeyFile(cfg.MasterKeyPath)
	if err != nil {
		return nil, nil, errors.Join(err, closer())
	}
	sealer, err := cryptox.NewSealer(material)
	if err != nil {
		return nil, nil, errors.Join(err, closer())
	}

	return credstore.New(credstore.Sealed(persistent, sealer), ephemeral), closer, nil
}
