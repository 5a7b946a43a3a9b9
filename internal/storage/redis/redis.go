package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, pass string, db int, profileTTL time.Duration) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
		ttl:    profileTTL,
	}, nil
}

func profileKey(username string) string {
	return fmt.Sprintf("channel:profile:%s", username)
}

// * GetChannelProfile возвращает закэшированный профиль канала.
// The cached copy never contains viewer-specific state (IsSubscribed).
func (r *RedisRepo) GetChannelProfile(ctx context.Context, username string) (models.ChannelProfile, error) {
	const op = "storage.redis.GetChannelProfile"

	data, err := r.client.Get(ctx, profileKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ChannelProfile{}, storage.ErrCacheMiss
		}

		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	var p models.ChannelProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *RedisRepo) SetChannelProfile(ctx context.Context, p models.ChannelProfile) error {
	const op = "storage.redis.SetChannelProfile"

	p.IsSubscribed = false

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.Set(ctx, profileKey(p.Username), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * InvalidateChannelProfile удаляет профиль из кэша после изменения аккаунта.
func (r *RedisRepo) InvalidateChannelProfile(ctx context.Context, username string) error {
	const op = "storage.redis.InvalidateChannelProfile"

	if err := r.client.Del(ctx, profileKey(username)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * Close закрывает соединение с базой данных.
func (r *RedisRepo) Close() {
	r.client.Close()
}
