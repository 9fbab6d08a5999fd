package mirrordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

// Cache is a read-through cache of message records. Writes to the store
// invalidate the affected key before and after the database write.
type Cache interface {
	Get(ctx context.Context, id mirror.SourceID) (*mirror.MessageRecord, bool)
	Set(ctx context.Context, rec *mirror.MessageRecord)
	Invalidate(ctx context.Context, id mirror.SourceID) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, mirror.SourceID) (*mirror.MessageRecord, bool) {
	return nil, false
}
func (noopCache) Set(context.Context, *mirror.MessageRecord)        {}
func (noopCache) Invalidate(context.Context, mirror.SourceID) error { return nil }

// MemoryCache keeps records in process memory.
type MemoryCache struct {
	data *exsync.Map[mirror.SourceID, mirror.MessageRecord]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: exsync.NewMap[mirror.SourceID, mirror.MessageRecord]()}
}

func (c *MemoryCache) Get(_ context.Context, id mirror.SourceID) (*mirror.MessageRecord, bool) {
	rec, ok := c.data.Get(id)
	if !ok {
		return nil, false
	}
	return &rec, true
}

func (c *MemoryCache) Set(_ context.Context, rec *mirror.MessageRecord) {
	c.data.Set(rec.SourceID, *rec)
}

func (c *MemoryCache) Invalidate(_ context.Context, id mirror.SourceID) error {
	c.data.Delete(id)
	return nil
}

// RedisCache shares cached records between processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

func NewRedisCache(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dmmirror:msg:"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		log:    log.With().Str("component", "redis_cache").Logger(),
	}, nil
}

func (c *RedisCache) key(id mirror.SourceID) string {
	return c.prefix + strconv.FormatInt(int64(id), 10)
}

func (c *RedisCache) Get(ctx context.Context, id mirror.SourceID) (*mirror.MessageRecord, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	} else if err != nil {
		c.log.Debug().Err(err).Stringer("source_id", id).Msg("Cache read failed")
		return nil, false
	}
	var rec mirror.MessageRecord
	if err = json.Unmarshal(data, &rec); err != nil {
		c.log.Debug().Err(err).Stringer("source_id", id).Msg("Dropping undecodable cache entry")
		return nil, false
	}
	return &rec, true
}

func (c *RedisCache) Set(ctx context.Context, rec *mirror.MessageRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err = c.client.Set(ctx, c.key(rec.SourceID), data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Stringer("source_id", rec.SourceID).Msg("Cache write failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id mirror.SourceID) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
