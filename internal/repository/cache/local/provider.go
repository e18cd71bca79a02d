package local

import (
	"context"
	"strconv"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache"
	"github.com/gotomicro/ego/core/elog"
	ca "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

var providerTypes = []domain.ProviderType{
	domain.ProviderTypeSMS,
	domain.ProviderTypeEmail,
	domain.ProviderTypePush,
}

type ProviderCache struct {
	rdb    redis.Cmdable
	logger *elog.Component
	c      *ca.Cache
}

func NewProviderCache(rdb redis.Cmdable, c *ca.Cache) *ProviderCache {
	return &ProviderCache{
		rdb:    rdb,
		logger: elog.DefaultLogger,
		c:      c,
	}
}

func (l *ProviderCache) Get(_ context.Context, orgID int64, typ domain.ProviderType) ([]domain.ProviderConfig, error) {
	v, ok := l.c.Get(cache.ProviderKey(orgID, typ))
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v.([]domain.ProviderConfig), nil
}

func (l *ProviderCache) Set(_ context.Context, orgID int64, typ domain.ProviderType, cfgs []domain.ProviderConfig) error {
	l.c.Set(cache.ProviderKey(orgID, typ), cfgs, cache.DefaultExpiredTime)
	return nil
}

func (l *ProviderCache) Invalidate(ctx context.Context, orgID int64) error {
	l.delete(orgID)
	return l.rdb.Publish(ctx, cache.ProviderChangedChannel, orgID).Err()
}

func (l *ProviderCache) delete(orgID int64) {
	for _, typ := range providerTypes {
		l.c.Delete(cache.ProviderKey(orgID, typ))
	}
}

// Watch 监听其它节点的变更通知，阻塞直到 ctx 结束
func (l *ProviderCache) Watch(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			orgID, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				l.logger.Error("供应商变更通知格式不正确", elog.String("payload", msg.Payload))
				continue
			}
			l.delete(orgID)
		}
	}
}
