package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/ego-component/egorm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationDAO interface {
	// GetOrCreate 一个广播对一个接收者只有一条通知，重放时返回已有的
	GetOrCreate(ctx context.Context, data Notification) (Notification, bool, error)
	GetByID(ctx context.Context, id int64) (Notification, error)
	FindByID(ctx context.Context, orgID, id int64) (Notification, error)
	ListByBroadcast(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]Notification, error)
	// ListInbox 接收者的收件箱，archived 决定只看归档还是只看未归档
	ListInbox(ctx context.Context, orgID, recipientID int64, archived bool, offset, limit int) ([]Notification, error)
	// MarkProcessed 没有任何投递任务的通知直接完成
	MarkProcessed(ctx context.Context, id int64) (bool, error)
	// UpdateTimestamp 收件箱操作，只修改一个时间戳列
	UpdateTimestamp(ctx context.Context, orgID, recipientID, id int64, column string, value sql.NullInt64) error
}

// Notification 通知记录表，一个广播一个接收者一行
type Notification struct {
	ID             int64          `gorm:"primaryKey;autoIncrement:false;comment:'雪花算法ID'"`
	OrgID          int64          `gorm:"type:BIGINT;NOT NULL;index:idx_org_recipient,priority:1;comment:'组织ID'"`
	BroadcastID    int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_broadcast_recipient,priority:1;comment:'广播ID'"`
	RecipientID    int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_broadcast_recipient,priority:2;index:idx_org_recipient,priority:2;comment:'接收者ID'"`
	Category       string         `gorm:"type:VARCHAR(255)"`
	Topic          string         `gorm:"type:VARCHAR(255)"`
	Title          string         `gorm:"type:VARCHAR(512)"`
	Content        string         `gorm:"type:TEXT"`
	ActionLink     string         `gorm:"type:VARCHAR(1024)"`
	AdditionalInfo datatypes.JSON `gorm:"comment:'附加信息'"`
	Status         string         `gorm:"type:VARCHAR(32);NOT NULL;comment:'queued/processed/failed'"`
	Pending        int64          `gorm:"NOT NULL;DEFAULT:0;comment:'尚未完成的投递任务数'"`
	Dispatched     bool           `gorm:"NOT NULL;DEFAULT:false;comment:'投递任务是否已经派发'"`
	SeenAt         sql.NullInt64
	ReadAt         sql.NullInt64
	ClickedAt      sql.NullInt64
	ArchivedAt     sql.NullInt64
	Ctime          int64
	Utime          int64
}

type notificationDAO struct {
	db *egorm.Component
}

func NewNotificationDAO(db *egorm.Component) NotificationDAO {
	return &notificationDAO{db: db}
}

func (d *notificationDAO) GetOrCreate(ctx context.Context, data Notification) (Notification, bool, error) {
	existing, err := d.findByBroadcastRecipient(ctx, data.BroadcastID, data.RecipientID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Notification{}, false, err
	}
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	err = d.db.WithContext(ctx).Create(&data).Error
	if isUniqueConstraintError(err) {
		existing, err = d.findByBroadcastRecipient(ctx, data.BroadcastID, data.RecipientID)
		return existing, false, err
	}
	return data, err == nil, err
}

func (d *notificationDAO) findByBroadcastRecipient(ctx context.Context, broadcastID, recipientID int64) (Notification, error) {
	var n Notification
	err := d.db.WithContext(ctx).
		Where("broadcast_id = ? AND recipient_id = ?", broadcastID, recipientID).
		First(&n).Error
	return n, err
}

func (d *notificationDAO) GetByID(ctx context.Context, id int64) (Notification, error) {
	var n Notification
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	return n, err
}

func (d *notificationDAO) FindByID(ctx context.Context, orgID, id int64) (Notification, error) {
	var n Notification
	err := d.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&n).Error
	return n, err
}

func (d *notificationDAO) ListByBroadcast(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]Notification, error) {
	var res []Notification
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND broadcast_id = ?", orgID, broadcastID).
		Order("id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (d *notificationDAO) ListInbox(ctx context.Context, orgID, recipientID int64, archived bool, offset, limit int) ([]Notification, error) {
	query := d.db.WithContext(ctx).Where("org_id = ? AND recipient_id = ?", orgID, recipientID)
	if archived {
		query = query.Where("archived_at IS NOT NULL")
	} else {
		query = query.Where("archived_at IS NULL")
	}
	var res []Notification
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (d *notificationDAO) MarkProcessed(ctx context.Context, id int64) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND status = ? AND dispatched = ? AND pending = 0", id, domain.NotificationStatusQueued, false).
		Updates(map[string]any{
			"status": domain.NotificationStatusProcessed,
			"utime":  time.Now().UnixMilli(),
		})
	return res.RowsAffected > 0, res.Error
}

var inboxColumns = map[string]struct{}{
	"seen_at":     {},
	"read_at":     {},
	"clicked_at":  {},
	"archived_at": {},
}

func (d *notificationDAO) UpdateTimestamp(ctx context.Context, orgID, recipientID, id int64, column string, value sql.NullInt64) error {
	if _, ok := inboxColumns[column]; !ok {
		return fmt.Errorf("%w: 不支持的列 %s", errs.ErrInvalidParameter, column)
	}
	db := d.db.WithContext(ctx)
	res := db.Model(&Notification{}).
		Where("org_id = ? AND recipient_id = ? AND id = ?", orgID, recipientID, id).
		Updates(map[string]any{
			column:  value,
			"utime": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL 值没有变化时影响行数为 0，需要再确认一次是否存在
	var cnt int64
	err := db.Model(&Notification{}).
		Where("org_id = ? AND recipient_id = ? AND id = ?", orgID, recipientID, id).
		Count(&cnt).Error
	if err != nil {
		return err
	}
	if cnt == 0 {
		return fmt.Errorf("%w: id = %d", errs.ErrNotificationNotFound, id)
	}
	return nil
}
