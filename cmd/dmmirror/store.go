package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirrordb"
)

func openCache(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (mirrordb.Cache, func(), error) {
	switch cfg.Type {
	case "redis":
		cache, err := mirrordb.NewRedisCache(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	case "memory":
		return mirrordb.NewMemoryCache(), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// openStore connects to the database, brings the schema up to date and
// returns a close function for both the database and the cache.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*mirrordb.Store, func(), error) {
	db, err := mirrordb.Open(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	cache, closeCache, err := openCache(ctx, cfg.Cache, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store := mirrordb.New(db, cache, log)
	if err = store.Upgrade(ctx); err != nil {
		closeCache()
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to upgrade database: %w", err)
	}
	return store, func() {
		closeCache()
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}, nil
}
