package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KV is the small persistent key-value store the client keeps between runs.
type KV interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Driver    string
	Path      string
	RedisAddr string
	RedisDB   int
}

// Open returns the KV selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
