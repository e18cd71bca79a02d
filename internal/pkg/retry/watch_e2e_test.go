//go:build e2e

package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigHolder_WatchEtcd(t *testing.T) {
	client := testioc.InitEtcdClient()
	key := fmt.Sprintf("/broadcast/e2e/retry/%d", time.Now().UnixNano())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer func() {
		_, _ = client.Delete(context.Background(), key)
	}()

	h := NewConfigHolder(domain.DefaultRetryConfig())
	go h.Watch(ctx, client.Watch(ctx, key))
	// 等 watch 建立
	time.Sleep(200 * time.Millisecond)

	_, err := client.Put(ctx, key, `{"type":"fixed","fixedInterval":{"interval":50},"maxAttempts":2,"jitter":true}`)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.Load().MaxAttempts == 2
	}, 5*time.Second, 50*time.Millisecond)
	cfg := h.Load()
	assert.Equal(t, "fixed", cfg.Type)
	assert.True(t, cfg.Jitter)
	assert.Equal(t, 50, cfg.FixedInterval.Interval)
}
