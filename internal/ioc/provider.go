package ioc

import (
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/gateway"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/inapp"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/metrics"
	"gitee.com/flycash/broadcast-platform/internal/service/provider/tracing"
	"github.com/redis/go-redis/v9"
)

// InitProvider 网关外面依次套上指标和链路追踪
func InitProvider(rdb redis.Cmdable) provider.Provider {
	gw := gateway.NewGateway(
		gateway.NewRegistry(gateway.DefaultFactories()),
		inapp.NewRedisPublisher(rdb),
	)
	return tracing.NewProvider(metrics.NewProvider(gw))
}
