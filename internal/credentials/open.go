package credentials

import (
	"context"
	"fmt"

	"github.com/2beens/confhub/pkg"

	"github.com/go-redis/redis/v8"
)

const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

type OpenParams struct {
	Kind           string
	FilePath       string
	SQLiteDSN      string
	Redis          *redis.Client
	RedisKeyPrefix string
}

// Open builds the configured backend and wraps it into a Slot.
func Open(ctx context.Context, params OpenParams) (*Slot, error) {
	var (
		store Store
		err   error
	)

	switch params.Kind {
	case KindFile:
		store, err = NewFileStore(params.FilePath)
	case KindSQLite:
		if params.SQLiteDSN != ":memory:" {
			if err := pkg.EnsureParentDir(params.SQLiteDSN); err != nil {
				return nil, fmt.Errorf("ensure sqlite dir: %w", err)
			}
		}
		store, err = NewSQLiteStore(ctx, params.SQLiteDSN)
	case KindRedis:
		if params.Redis == nil {
			return nil, fmt.Errorf("redis credential store: redis client not set")
		}
		store = NewRedisStore(params.Redis, params.RedisKeyPrefix)
	case KindMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown credential store kind: %q", params.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s credential store: %w", params.Kind, err)
	}

	return NewSlot(store), nil
}
