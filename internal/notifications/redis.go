package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mixtape/internal/config"
)

// publisher is the slice of *redis.Client the notifier uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

type redisService struct {
	client  publisher
	channel string
}

func newRedisService(cfg config.Notifications) *redisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisService{client: client, channel: cfg.RedisChannel}
}

// Publish sends msg as JSON. Zero subscribers is not an error.
func (r *redisService) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode redis notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish to redis channel %s: %w", r.channel, err)
	}
	return nil
}

func (r *redisService) Close() error {
	return r.client.Close()
}
