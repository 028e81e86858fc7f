package cache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisPersistence is a PersistenceStore backed by Redis, for caches shared
// across processes. The caller owns the redis.Client lifecycle.
type RedisPersistence struct {
	client *redis.Client
	prefix string
}

var _ PersistenceStore = (*RedisPersistence)(nil)

// NewRedisPersistence returns a PersistenceStore writing through the given
// client. A non-empty prefix namespaces keys so multiple caches can share
// one Redis instance.
func NewRedisPersistence(client *redis.Client, prefix string) *RedisPersistence {
	return &RedisPersistence{client: client, prefix: prefix}
}

func (p *RedisPersistence) key(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + ":" + key
}

func (p *RedisPersistence) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	data, err := p.client.Get(qctx, p.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %q", key)
	}
	return data, true, nil
}

func (p *RedisPersistence) SetItem(ctx context.Context, key string, value []byte) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	// No Redis-side TTL: the snapshot itself records entry ages and the
	// loading side drops anything expired.
	return errors.Wrapf(p.client.Set(qctx, p.key(key), value, 0).Err(), "writing %q", key)
}
