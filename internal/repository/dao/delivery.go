package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ego-component/egorm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryDAO interface {
	// Upsert 按 (notification_id, channel, target) 写入账本，已经是最终状态的行不会被覆盖
	Upsert(ctx context.Context, d Delivery) (Delivery, error)
	FindByKey(ctx context.Context, notificationID int64, channel, target string) (Delivery, error)
	ListByNotification(ctx context.Context, orgID, notificationID int64) ([]Delivery, error)
}

// Delivery 投递账本
type Delivery struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	OrgID          int64          `gorm:"type:BIGINT;NOT NULL;comment:'组织ID'"`
	NotificationID int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_notification_channel_target,priority:1;comment:'通知ID'"`
	Channel        string         `gorm:"type:VARCHAR(16);NOT NULL;uniqueIndex:uk_notification_channel_target,priority:2;comment:'WEB/SMS/EMAIL/PUSH'"`
	Target         string         `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'';uniqueIndex:uk_notification_channel_target,priority:3;comment:'推送为 平台:设备ID'"`
	Platform       string         `gorm:"type:VARCHAR(16)"`
	Title          string         `gorm:"type:VARCHAR(512)"`
	Content        string         `gorm:"type:TEXT"`
	ActionLink     string         `gorm:"type:VARCHAR(1024)"`
	Status         string         `gorm:"type:VARCHAR(32);NOT NULL;comment:'delivered/attempted/undelivered/not_sent'"`
	ErrorReason    string         `gorm:"type:VARCHAR(1024)"`
	Attempts       int            `gorm:"NOT NULL;DEFAULT:0"`
	Metadata       datatypes.JSON `gorm:"comment:'供应商返回的消息ID等'"`
	Counted        bool           `gorm:"NOT NULL;DEFAULT:false;comment:'是否已经计入通知汇总'"`
	SentAt         sql.NullInt64
	Ctime          int64
	Utime          int64
}

type deliveryDAO struct {
	db *egorm.Component
}

func NewDeliveryDAO(db *egorm.Component) DeliveryDAO {
	return &deliveryDAO{db: db}
}

// keepFinal 已经是 delivered 或者 not_sent 的行保持原值
const keepFinal = "CASE WHEN status IN ('delivered','not_sent') THEN %s ELSE ? END"

func guarded(column string, value any) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: column},
		Value:  gorm.Expr(fmt.Sprintf(keepFinal, column), value),
	}
}

func (d *deliveryDAO) Upsert(ctx context.Context, data Delivery) (Delivery, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	// status 必须放在最后，MySQL 的 ON DUPLICATE KEY UPDATE 按顺序求值
	set := clause.Set{
		guarded("platform", data.Platform),
		guarded("title", data.Title),
		guarded("content", data.Content),
		guarded("action_link", data.ActionLink),
		guarded("error_reason", data.ErrorReason),
		guarded("attempts", data.Attempts),
		guarded("metadata", data.Metadata),
		guarded("sent_at", data.SentAt),
		{Column: clause.Column{Name: "utime"}, Value: now},
		guarded("status", data.Status),
	}
	db := d.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "notification_id"}, {Name: "channel"}, {Name: "target"},
		},
		DoUpdates: set,
	}).Create(&data).Error
	if err != nil {
		return Delivery{}, err
	}
	return d.FindByKey(ctx, data.NotificationID, data.Channel, data.Target)
}

func (d *deliveryDAO) FindByKey(ctx context.Context, notificationID int64, channel, target string) (Delivery, error) {
	var res Delivery
	err := d.db.WithContext(ctx).
		Where("notification_id = ? AND channel = ? AND target = ?", notificationID, channel, target).
		First(&res).Error
	return res, err
}

func (d *deliveryDAO) ListByNotification(ctx context.Context, orgID, notificationID int64) ([]Delivery, error) {
	var res []Delivery
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND notification_id = ?", orgID, notificationID).
		Order("id").Find(&res).Error
	return res, err
}
