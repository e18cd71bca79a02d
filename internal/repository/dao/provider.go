package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
)

// ProviderDAO 供应商配置由外部 CRUD 维护，引擎只读
type ProviderDAO interface {
	// FindEnabled 查找某个类型下启用的供应商
	FindEnabled(ctx context.Context, orgID int64, typ string) ([]ProviderConfig, error)
	FindByVendor(ctx context.Context, orgID int64, vendor string) (ProviderConfig, error)
	Create(ctx context.Context, p ProviderConfig) (ProviderConfig, error)
}

// ProviderConfig 供应商配置表，一个组织一个供应商一行
type ProviderConfig struct {
	ID          int64  `gorm:"primaryKey;autoIncrement;comment:'供应商配置ID'"`
	OrgID       int64  `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_vendor,priority:1;index:idx_org_type,priority:1;comment:'组织ID'"`
	Type        string `gorm:"type:VARCHAR(16);NOT NULL;index:idx_org_type,priority:2;comment:'SMS/EMAIL/PUSH'"`
	Vendor      string `gorm:"type:VARCHAR(32);NOT NULL;uniqueIndex:uk_org_vendor,priority:2;comment:'TWILIO/ALIYUN/TENCENT/SENDGRID/APNS/FCM'"`
	Enabled     bool   `gorm:"NOT NULL;DEFAULT:false;comment:'是否启用'"`
	Credentials string `gorm:"type:TEXT;NOT NULL;comment:'加密后的凭证JSON'"`
	Ctime       int64
	Utime       int64
}

type providerDAO struct {
	db *egorm.Component
}

func NewProviderDAO(db *egorm.Component) ProviderDAO {
	return &providerDAO{db: db}
}

func (d *providerDAO) FindEnabled(ctx context.Context, orgID int64, typ string) ([]ProviderConfig, error) {
	var res []ProviderConfig
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND type = ? AND enabled = ?", orgID, typ, true).
		Order("id").Find(&res).Error
	return res, err
}

func (d *providerDAO) FindByVendor(ctx context.Context, orgID int64, vendor string) (ProviderConfig, error) {
	var p ProviderConfig
	err := d.db.WithContext(ctx).Where("org_id = ? AND vendor = ?", orgID, vendor).First(&p).Error
	return p, err
}

func (d *providerDAO) Create(ctx context.Context, p ProviderConfig) (ProviderConfig, error) {
	now := time.Now().UnixMilli()
	p.Ctime, p.Utime = now, now
	err := d.db.WithContext(ctx).Create(&p).Error
	return p, err
}
