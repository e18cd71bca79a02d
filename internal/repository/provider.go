package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ProviderRepository 供应商配置仓储，凭证在这一层解密
type ProviderRepository interface {
	// FindEnabled 某个类型下启用的供应商，没有配置时返回空切片
	FindEnabled(ctx context.Context, orgID int64, typ domain.ProviderType) ([]domain.ProviderConfig, error)
	FindByVendor(ctx context.Context, orgID int64, vendor domain.Vendor) (domain.ProviderConfig, error)
	Create(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error)
}

type providerRepository struct {
	dao    dao.ProviderDAO
	cache  cache.ProviderCache
	crypto *crypto.Crypto
	group  singleflight.Group
	logger *elog.Component
}

func NewProviderRepository(d dao.ProviderDAO, c cache.ProviderCache, cr *crypto.Crypto) ProviderRepository {
	return &providerRepository{
		dao:    d,
		cache:  c,
		crypto: cr,
		logger: elog.DefaultLogger,
	}
}

func (p *providerRepository) FindEnabled(ctx context.Context, orgID int64, typ domain.ProviderType) ([]domain.ProviderConfig, error) {
	cfgs, err := p.cache.Get(ctx, orgID, typ)
	if err == nil {
		return cfgs, nil
	}
	// 同一个组织的并发加载合并成一次
	v, err, _ := p.group.Do(cache.ProviderKey(orgID, typ), func() (any, error) {
		entities, err := p.dao.FindEnabled(ctx, orgID, string(typ))
		if err != nil {
			return nil, err
		}
		res := make([]domain.ProviderConfig, 0, len(entities))
		for _, e := range entities {
			cfg, err := p.toDomain(e)
			if err != nil {
				return nil, err
			}
			res = append(res, cfg)
		}
		if err = p.cache.Set(ctx, orgID, typ, res); err != nil {
			p.logger.Warn("缓存供应商配置失败", elog.Int64("orgID", orgID), elog.FieldErr(err))
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ProviderConfig), nil
}

func (p *providerRepository) FindByVendor(ctx context.Context, orgID int64, vendor domain.Vendor) (domain.ProviderConfig, error) {
	e, err := p.dao.FindByVendor(ctx, orgID, string(vendor))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProviderConfig{}, fmt.Errorf("%w: vendor = %s", errs.ErrProviderNotConfigured, vendor)
		}
		return domain.ProviderConfig{}, err
	}
	return p.toDomain(e)
}

func (p *providerRepository) Create(ctx context.Context, cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	raw, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	encrypted, err := p.crypto.Encrypt(string(raw))
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	created, err := p.dao.Create(ctx, dao.ProviderConfig{
		OrgID:       cfg.OrgID,
		Type:        string(cfg.Type),
		Vendor:      string(cfg.Vendor),
		Enabled:     cfg.Enabled,
		Credentials: encrypted,
	})
	if err != nil {
		return domain.ProviderConfig{}, err
	}
	if err = p.cache.Invalidate(ctx, cfg.OrgID); err != nil {
		p.logger.Warn("通知供应商配置变更失败", elog.Int64("orgID", cfg.OrgID), elog.FieldErr(err))
	}
	cfg.ID = created.ID
	cfg.Utime = time.UnixMilli(created.Utime)
	return cfg, nil
}

func (p *providerRepository) toDomain(e dao.ProviderConfig) (domain.ProviderConfig, error) {
	raw, err := p.crypto.Decrypt(e.Credentials)
	if err != nil {
		return domain.ProviderConfig{}, fmt.Errorf("解密供应商凭证失败: %w", err)
	}
	creds := map[string]string{}
	if raw != "" {
		if err = json.Unmarshal([]byte(raw), &creds); err != nil {
			return domain.ProviderConfig{}, err
		}
	}
	return domain.ProviderConfig{
		ID:          e.ID,
		OrgID:       e.OrgID,
		Type:        domain.ProviderType(e.Type),
		Vendor:      domain.Vendor(e.Vendor),
		Enabled:     e.Enabled,
		Credentials: creds,
		Utime:       time.UnixMilli(e.Utime),
	}, nil
}
