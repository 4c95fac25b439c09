package journal

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	appLog "timereport/internal/log"
)

const defaultKey = "timereport:journal"

// Redis stores msgpack-encoded entries on a capped redis list.
type Redis struct {
	rdb *redis.Client
	key string
	max int
}

// NewRedis connects to the server at url (redis://host:port/db).
func NewRedis(url, key string, max int) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("journal: parse redis url: %w", err)
	}
	return NewRedisClient(redis.NewClient(opt), key, max), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, key string, max int) *Redis {
	if key == "" {
		key = defaultKey
	}
	if max <= 0 {
		max = defaultMaxEntries
	}
	return &Redis{rdb: rdb, key: key, max: max}
}

func (r *Redis) Append(ctx context.Context, e Entry) error {
	data, err := msgpack.Marshal(stamp(e))
	if err != nil {
		return fmt.Errorf("journal: encode entry: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, r.key, data)
		p.LTrim(ctx, r.key, 0, int64(r.max-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

func (r *Redis) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > r.max {
		limit = r.max
	}
	raw, err := r.rdb.LRange(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := msgpack.Unmarshal([]byte(item), &e); err != nil {
			appLog.Error("journal: skipping undecodable entry", err, "key", r.key)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
