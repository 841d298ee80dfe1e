package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "clawdash/config"
	"clawdash/logger"
)

type stringSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisWriter stores the latest snapshot under a single key.
type RedisWriter struct {
	client stringSetter
	key    string
	ttl    time.Duration
	log    *logger.Entry
}

func NewRedisWriter(ctx context.Context, cfg appconfig.RedisConfig) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return newRedisWriter(client, cfg.Key, cfg.TTL), nil
}

func newRedisWriter(client stringSetter, key string, ttl time.Duration) *RedisWriter {
	return &RedisWriter{
		client: client,
		key:    key,
		ttl:    ttl,
		log:    logger.GetLogger().WithComponent("redis_writer"),
	}
}

func (w *RedisWriter) Name() string { return "redis" }

func (w *RedisWriter) Publish(ctx context.Context, payload []byte, meta Meta) error {
	if err := w.client.Set(ctx, w.key, payload, w.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", w.key, err)
	}
	w.log.WithRun(meta.RunID).WithFields(logger.Fields{"key": w.key}).Debug("snapshot cached")
	return nil
}

func (w *RedisWriter) Close() error {
	return w.client.Close()
}
