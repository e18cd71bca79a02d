package ioc

import (
	"context"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/pkg/retry"
	"github.com/ego-component/eetcd"
	"github.com/gotomicro/ego/core/econf"
)

func InitRetryConfig() *retry.ConfigHolder {
	cfg := domain.DefaultRetryConfig()
	if econf.Get("delivery.retry") != nil {
		if err := econf.UnmarshalKey("delivery.retry", &cfg); err != nil {
			panic(err)
		}
	}
	return retry.NewConfigHolder(cfg)
}

// RetryConfigWatcher 从 etcd 热更新重试配置
type RetryConfigWatcher Task

func InitRetryConfigWatcher(holder *retry.ConfigHolder, etcdClient *eetcd.Component) RetryConfigWatcher {
	key := econf.GetString("delivery.retryKey")
	return TaskFunc(func(ctx context.Context) {
		holder.Watch(ctx, etcdClient.Watch(ctx, key))
	})
}
