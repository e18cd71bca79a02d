package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
)

// OrganizationDAO 组织由身份系统同步过来，这里只读
type OrganizationDAO interface {
	FindByID(ctx context.Context, id int64) (Organization, error)
	// Create 同步事件落库，测试也会用到
	Create(ctx context.Context, org Organization) (Organization, error)
}

// Organization 组织表
type Organization struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;comment:'组织ID'"`
	Name      string `gorm:"type:VARCHAR(255);NOT NULL;comment:'组织名称'"`
	APISecret string `gorm:"type:TEXT;NOT NULL;comment:'加密后的API密钥，用于校验外部用户HMAC'"`
	Ctime     int64
	Utime     int64
}

type organizationDAO struct {
	db *egorm.Component
}

func NewOrganizationDAO(db *egorm.Component) OrganizationDAO {
	return &organizationDAO{db: db}
}

func (d *organizationDAO) FindByID(ctx context.Context, id int64) (Organization, error) {
	var org Organization
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	return org, err
}

func (d *organizationDAO) Create(ctx context.Context, org Organization) (Organization, error) {
	now := time.Now().UnixMilli()
	org.Ctime, org.Utime = now, now
	err := d.db.WithContext(ctx).Create(&org).Error
	return org, err
}
