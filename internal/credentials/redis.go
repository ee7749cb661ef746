package credentials

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares one credential slot between front-end replicas.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

func (s *RedisStore) Load(ctx context.Context) (Credential, error) {
	values, err := s.rdb.MGet(ctx, s.key(KeyAccess), s.key(KeyRefresh)).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("redis mget credential: %w", err)
	}
	if len(values) != 2 {
		return Credential{}, fmt.Errorf("redis mget credential: unexpected result len %d", len(values))
	}

	var cred Credential
	if access, ok := values[0].(string); ok {
		cred.Access = access
	}
	if refresh, ok := values[1].(string); ok {
		cred.Refresh = refresh
	}
	if cred.Empty() {
		return Credential{}, nil
	}
	return cred, nil
}

// Save writes both keys in one MSET; an empty refresh value is stored as "".
func (s *RedisStore) Save(ctx context.Context, cred Credential) error {
	err := s.rdb.MSet(ctx,
		s.key(KeyAccess), cred.Access,
		s.key(KeyRefresh), cred.Refresh,
	).Err()
	if err != nil {
		return fmt.Errorf("redis mset credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key(KeyAccess), s.key(KeyRefresh)).Err(); err != nil {
		return fmt.Errorf("redis del credential: %w", err)
	}
	return nil
}

// Close does not close the redis client, it is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
