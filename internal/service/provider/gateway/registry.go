package gateway

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/email"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/push"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/sms"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Factory 根据解密后的配置创建供应商客户端
type Factory func(ctx context.Context, cfg domain.ProviderConfig) (any, error)

// DefaultFactories 所有支持的供应商
func DefaultFactories() map[domain.Vendor]Factory {
	return map[domain.Vendor]Factory{
		domain.VendorTwilio: func(_ context.Context, cfg domain.ProviderConfig) (any, error) {
			return sms.NewTwilio(cfg)
		},
		domain.VendorAliyun: func(_ context.Context, cfg domain.ProviderConfig) (any, error) {
			return sms.NewAliyun(cfg)
		},
		domain.VendorTencent: func(_ context.Context, cfg domain.ProviderConfig) (any, error) {
			return sms.NewTencent(cfg)
		},
		domain.VendorSendGrid: func(_ context.Context, cfg domain.ProviderConfig) (any, error) {
			return email.NewSendGrid(cfg)
		},
		domain.VendorAPNS: func(_ context.Context, cfg domain.ProviderConfig) (any, error) {
			return push.NewAPNS(cfg)
		},
		domain.VendorFCM: func(ctx context.Context, cfg domain.ProviderConfig) (any, error) {
			return push.NewFCM(ctx, cfg)
		},
	}
}

// Registry 缓存供应商客户端，配置更新后 utime 变化，会重新创建
type Registry struct {
	factories map[domain.Vendor]Factory
	clients   *cache.Cache
	group     singleflight.Group
}

func NewRegistry(factories map[domain.Vendor]Factory) *Registry {
	return &Registry{
		factories: factories,
		clients:   cache.New(30*time.Minute, 10*time.Minute),
	}
}

func (r *Registry) Get(ctx context.Context, cfg domain.ProviderConfig) (any, error) {
	key := clientKey(cfg)
	if c, ok := r.clients.Get(key); ok {
		return c, nil
	}
	c, err, _ := r.group.Do(key, func() (any, error) {
		if c, ok := r.clients.Get(key); ok {
			return c, nil
		}
		factory, ok := r.factories[cfg.Vendor]
		if !ok {
			return nil, provider.Permanent(fmt.Errorf("不支持的供应商 %s", cfg.Vendor))
		}
		c, err := factory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r.clients.SetDefault(key, c)
		return c, nil
	})
	return c, err
}

func clientKey(cfg domain.ProviderConfig) string {
	return fmt.Sprintf("%d:%d", cfg.ID, cfg.Utime.UnixMilli())
}
