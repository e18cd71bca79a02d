package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

// AudienceDAO 受众由外部 CRUD 维护，引擎只读
type AudienceDAO interface {
	FindByID(ctx context.Context, orgID, id int64) (Audience, []AudienceFilter, error)
	Create(ctx context.Context, a Audience, filters []AudienceFilter) (Audience, error)
}

// Audience 受众表
type Audience struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"`
	OrgID int64  `gorm:"type:BIGINT;NOT NULL;index:idx_org_id;comment:'组织ID'"`
	Name  string `gorm:"type:VARCHAR(255);NOT NULL;comment:'受众名称'"`
	Ctime int64
	Utime int64
}

// AudienceFilter 受众过滤条件表，一个受众内 property 唯一
type AudienceFilter struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	AudienceID int64  `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_audience_property,priority:1"`
	Property   string `gorm:"type:VARCHAR(255);NOT NULL;uniqueIndex:uk_audience_property,priority:2;comment:'基础字段或者 metadata 路径'"`
	Operator   string `gorm:"type:VARCHAR(32);NOT NULL;comment:'EQ/NEQ/GT/LT/GTE/LTE/CONTAINS/DOES_NOT_CONTAIN'"`
	Value      string `gorm:"type:TEXT;NOT NULL"`
	ValueType  string `gorm:"type:VARCHAR(16);NOT NULL;DEFAULT:'STRING';comment:'STRING/NUMBER/DATETIME'"`
	Ctime      int64
	Utime      int64
}

type audienceDAO struct {
	db *egorm.Component
}

func NewAudienceDAO(db *egorm.Component) AudienceDAO {
	return &audienceDAO{db: db}
}

func (d *audienceDAO) FindByID(ctx context.Context, orgID, id int64) (Audience, []AudienceFilter, error) {
	var a Audience
	err := d.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&a).Error
	if err != nil {
		return Audience{}, nil, err
	}
	var filters []AudienceFilter
	err = d.db.WithContext(ctx).Where("audience_id = ?", id).Order("id").Find(&filters).Error
	return a, filters, err
}

func (d *audienceDAO) Create(ctx context.Context, a Audience, filters []AudienceFilter) (Audience, error) {
	now := time.Now().UnixMilli()
	a.Ctime, a.Utime = now, now
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		if len(filters) == 0 {
			return nil
		}
		for i := range filters {
			filters[i].AudienceID = a.ID
			filters[i].Ctime, filters[i].Utime = now, now
		}
		return tx.Create(&filters).Error
	})
	return a, err
}
