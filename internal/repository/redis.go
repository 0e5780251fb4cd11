package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

const (
	weatherKeyPrefix = "agro:weather:"
	dedupKeyPrefix   = "agro:inbound:seen:"
)

// RedisRepository caches weather observations and remembers seen inbound messages.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// GetWeather returns nil, nil on a cache miss.
func (r *RedisRepository) GetWeather(ctx context.Context, key string) (*models.Weather, error) {
	raw, err := r.client.Get(ctx, weatherKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var w models.Weather
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *RedisRepository) PutWeather(ctx context.Context, key string, w *models.Weather, ttl time.Duration) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, weatherKeyPrefix+key, raw, r.resolveTTL(ttl)).Err()
}

// FirstSeen marks id as seen and reports whether this was the first time.
func (r *RedisRepository) FirstSeen(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, dedupKeyPrefix+id, "1", r.resolveTTL(ttl)).Result()
}

func (r *RedisRepository) resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return ttl
}
