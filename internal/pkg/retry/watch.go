package retry

import (
	"context"
	"encoding/json"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/gotomicro/ego/core/elog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Watch 消费 etcd 的变更，value 是 JSON 格式的 domain.RetryConfig。
// 阻塞直到 ctx 结束或者 watchChan 被关闭
func (h *ConfigHolder) Watch(ctx context.Context, watchChan clientv3.WatchChan) {
	logger := elog.DefaultLogger
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-watchChan:
			if !ok {
				return
			}
			for _, event := range resp.Events {
				if event.Type != clientv3.EventTypePut {
					continue
				}
				var cfg domain.RetryConfig
				if err := json.Unmarshal(event.Kv.Value, &cfg); err != nil {
					logger.Error("重试配置格式错误", elog.FieldErr(err), elog.String("value", string(event.Kv.Value)))
					continue
				}
				if !h.Store(cfg) {
					logger.Error("重试配置非法，保留旧配置", elog.Any("config", cfg))
					continue
				}
				logger.Info("重试配置已更新", elog.Any("config", cfg))
			}
		}
	}
}
