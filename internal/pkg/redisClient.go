package client

import (
	"context"
	"fmt"
	"time"

	"voice-banking/internal/config"

	"github.com/redis/go-redis/v9"
)

func RedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error to verify connection with Redis: %w", err)
	}

	return client, nil
}
