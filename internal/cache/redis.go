package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "search:"

// RedisTier is the fast layer. Entries carry their own fetched_at, so
// the redis expiry is only a floor for memory reclamation; staleness
// is still judged against FetchedAt by the cascade.
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTier(client *redis.Client, ttl time.Duration) *RedisTier {
	return &RedisTier{client: client, ttl: ttl}
}

func (t *RedisTier) Name() string       { return "redis" }
func (t *RedisTier) TTL() time.Duration { return t.ttl }

func (t *RedisTier) Get(ctx context.Context, key string) (*Entry, error) {
	val, err := t.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "cache: redis get")
	}
	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, eris.Wrap(err, "cache: decoding redis entry")
	}
	return &entry, nil
}

func (t *RedisTier) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: encoding redis entry")
	}
	if err := t.client.Set(ctx, redisKeyPrefix+key, data, t.ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}
