package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/navuara/flightsearch/internal/models"
)

const keyPrefix = "flightsearch:result:"

// RedisCache shares results across instances. Redis expires keys after the
// TTL and Get also checks StoredAt, so both stores agree on staleness.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     "localhost",
		Port:     "6379",
		Password: "",
		DB:       0,
		TTL:      DefaultTTL,
	}
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key Key) (Entry, bool) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return Entry{}, false
	}

	var stored redisEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return Entry{}, false
	}
	// Digests can collide; the full key settles it.
	if stored.Key != key || stored.Expired(c.now(), c.ttl) {
		return Entry{}, false
	}
	return stored.Entry, true
}

func (c *RedisCache) Set(ctx context.Context, key Key, value models.SearchResult) error {
	data, err := json.Marshal(redisEntry{
		Key:   key,
		Entry: Entry{Value: value, StoredAt: c.now().UTC()},
	})
	if err != nil {
		return err
	}

	return c.client.Set(ctx, redisKey(key), data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type redisEntry struct {
	Key Key `json:"key"`
	Entry
}

func redisKey(key Key) string {
	return keyPrefix + key.Digest()
}
