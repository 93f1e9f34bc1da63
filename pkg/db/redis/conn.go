package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/amankumarsingh77/batch-image-compressor/internal/config"
)

const pingTimeout = 5 * time.Second

func NewRedisClient(config *config.Config) (*redis.Client, error) {
	redisHost := config.Redis.RedisAddr

	if redisHost == "" {
		redisHost = ":6379"
	}

	opts := &redis.Options{
		Addr:         redisHost,
		Password:     config.Redis.RedisPassword,
		DB:           config.Redis.DB,
		MinIdleConns: config.Redis.MinIdleConns,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  time.Duration(config.Redis.PoolTimeout) * time.Second,
	}
	if config.Redis.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
