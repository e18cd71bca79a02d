package ioc

import (
	"time"

	"gitee.com/flycash/broadcast-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/broadcast-platform/internal/pkg/retry"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/delivery"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

func InitWorker(
	broadcastRepo repository.BroadcastRepository,
	notificationRepo repository.NotificationRepository,
	recipientRepo repository.RecipientRepository,
	providerRepo repository.ProviderRepository,
	deliveryRepo repository.DeliveryRepository,
	gateway provider.Provider,
	c *coordinator.Coordinator,
	retryCfg *retry.ConfigHolder,
	rdb redis.Cmdable,
) *delivery.Worker {
	w := delivery.NewWorker(broadcastRepo, notificationRepo, recipientRepo, providerRepo,
		deliveryRepo, gateway, c, retryCfg)

	type Config struct {
		Enabled bool             `yaml:"enabled"`
		Quotas  ratelimit.Config `yaml:"quotas"`
		// 被限流之后多久再检查一次
		WaitInterval time.Duration `yaml:"waitInterval"`
	}
	cfg := Config{WaitInterval: 10 * time.Millisecond}
	if err := econf.UnmarshalKey("ratelimit", &cfg); err != nil {
		panic(err)
	}
	if !cfg.Enabled {
		return w
	}
	return w.WithLimiter(ratelimit.NewRedisSlidingWindowLimiter(rdb, cfg.Quotas), cfg.WaitInterval)
}
