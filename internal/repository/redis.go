package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"groomly/internal/config"
	"groomly/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotRepository shares availability snapshots across
// instances so UI-serving replicas do not hammer the store.
type RedisSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{client: client, ttl: ttl}
}

func redisSnapshotKey(shopID string, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s", shopID, models.DayKey(date))
}

func (r *RedisSnapshotRepository) GetSnapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	val, err := r.client.Get(ctx, redisSnapshotKey(shopID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot from redis: %w", err)
	}

	var snap models.AvailabilitySnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisSnapshotRepository) SetSnapshot(ctx context.Context, snap *models.AvailabilitySnapshot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := redisSnapshotKey(snap.ShopID, snap.Date)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot in redis: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepository) ClearSnapshot(ctx context.Context, shopID string, date time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, redisSnapshotKey(shopID, date)).Err(); err != nil {
		return fmt.Errorf("delete snapshot from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
