package ioc

import (
	"context"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/repository/cache"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache/local"
	ca "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

func InitGoCache() *ca.Cache {
	return ca.New(cache.DefaultExpiredTime, 10*time.Minute)
}

func InitProviderCache(rdb *redis.Client, c *ca.Cache) *local.ProviderCache {
	return local.NewProviderCache(rdb, c)
}

func InitProviderCacheIface(c *local.ProviderCache) cache.ProviderCache {
	return c
}

// ProviderCacheWatcher 订阅其它节点的配置变更
type ProviderCacheWatcher Task

func InitProviderCacheWatcher(rdb *redis.Client, c *local.ProviderCache) ProviderCacheWatcher {
	return TaskFunc(func(ctx context.Context) {
		c.Watch(ctx, rdb.Subscribe(ctx, cache.ProviderChangedChannel))
	})
}
