package cache

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/pkg/errors"
)

const (
	ProviderPrefix = "provider"
	// ProviderChangedChannel 供应商配置变更的广播频道，消息体是组织ID
	ProviderChangedChannel = "provider_config_changed"
	DefaultExpiredTime     = time.Minute
)

var ErrKeyNotFound = errors.New("key not found")

// ProviderCache 已解密的供应商配置，只放在进程内
type ProviderCache interface {
	Get(ctx context.Context, orgID int64, typ domain.ProviderType) ([]domain.ProviderConfig, error)
	Set(ctx context.Context, orgID int64, typ domain.ProviderType, cfgs []domain.ProviderConfig) error
	// Invalidate 通知所有节点删除这个组织的缓存
	Invalidate(ctx context.Context, orgID int64) error
}

func ProviderKey(orgID int64, typ domain.ProviderType) string {
	return fmt.Sprintf("%s:%d:%s", ProviderPrefix, orgID, typ)
}
