package ioc

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func InitRedis() redis.Cmdable {
	return InitRedisClient()
}

func InitRedisClient() *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(err)
	}
	return client
}
