package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
	"gorm.io/datatypes"
)

// PreferenceDAO 偏好和订阅归接收者所有，引擎只读
type PreferenceDAO interface {
	FindPreference(ctx context.Context, orgID, recipientID int64, category string) (Preference, error)
	FindSubscriptions(ctx context.Context, orgID int64, topic string) ([]Subscription, error)
	SavePreference(ctx context.Context, p Preference) error
	SaveSubscription(ctx context.Context, s Subscription) error
}

// Preference 接收者在某个分类下的渠道开关
type Preference struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	OrgID       int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_recipient_category,priority:1"`
	RecipientID int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_recipient_category,priority:2"`
	Category    string         `gorm:"type:VARCHAR(255);NOT NULL;uniqueIndex:uk_org_recipient_category,priority:3"`
	Channels    datatypes.JSON `gorm:"comment:'渠道开关'"`
	Ctime       int64
	Utime       int64
}

// Subscription 主题订阅以及主题下的分类开关
type Subscription struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	OrgID       int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_topic_recipient,priority:1"`
	Topic       string         `gorm:"type:VARCHAR(255);NOT NULL;uniqueIndex:uk_org_topic_recipient,priority:2"`
	RecipientID int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_topic_recipient,priority:3"`
	Categories  datatypes.JSON `gorm:"comment:'分类开关'"`
	Ctime       int64
	Utime       int64
}

type preferenceDAO struct {
	db *egorm.Component
}

func NewPreferenceDAO(db *egorm.Component) PreferenceDAO {
	return &preferenceDAO{db: db}
}

func (d *preferenceDAO) FindPreference(ctx context.Context, orgID, recipientID int64, category string) (Preference, error) {
	var p Preference
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND recipient_id = ? AND category = ?", orgID, recipientID, category).
		First(&p).Error
	return p, err
}

func (d *preferenceDAO) FindSubscriptions(ctx context.Context, orgID int64, topic string) ([]Subscription, error) {
	var res []Subscription
	err := d.db.WithContext(ctx).Where("org_id = ? AND topic = ?", orgID, topic).Order("id").Find(&res).Error
	return res, err
}

func (d *preferenceDAO) SavePreference(ctx context.Context, p Preference) error {
	now := time.Now().UnixMilli()
	p.Ctime, p.Utime = now, now
	return d.db.WithContext(ctx).Create(&p).Error
}

func (d *preferenceDAO) SaveSubscription(ctx context.Context, s Subscription) error {
	now := time.Now().UnixMilli()
	s.Ctime, s.Utime = now, now
	return d.db.WithContext(ctx).Create(&s).Error
}
