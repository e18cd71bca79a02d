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
	"gorm.io/gorm/clause"
)

type BroadcastDAO interface {
	// Create 幂等键冲突时返回 errs.ErrBroadcastDuplicate
	Create(ctx context.Context, b Broadcast) (Broadcast, error)
	// CreateScheduled 在同一个事务里创建广播和定时任务
	CreateScheduled(ctx context.Context, b Broadcast, job ScheduledJob) (Broadcast, error)
	FindByID(ctx context.Context, orgID, id int64) (Broadcast, error)
	FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Broadcast, error)
	List(ctx context.Context, orgID int64, status string, offset, limit int) ([]Broadcast, error)
	// CASStatus 只有当前状态在 from 中才会更新
	CASStatus(ctx context.Context, id int64, from []string, to string) (bool, error)
	UpdateMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error
	// Cancel 只有 scheduled 的广播可以取消，同时删除定时任务
	Cancel(ctx context.Context, orgID, id int64) error
	// Reschedule 只有 scheduled 的广播可以修改，同时替换定时任务的触发时间
	Reschedule(ctx context.Context, orgID, id int64, updates map[string]any, fireAt int64) error
	// FindStuck 长时间停留在 processing 的广播，用于运维排查
	FindStuck(ctx context.Context, before int64, limit int) ([]Broadcast, error)
}

// Broadcast 广播表
type Broadcast struct {
	ID             int64          `gorm:"primaryKey;autoIncrement:false;comment:'雪花算法ID'"`
	OrgID          int64          `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_org_idempotency_key,priority:1;index:idx_org_status,priority:1;comment:'组织ID'"`
	IdempotencyKey string         `gorm:"type:VARCHAR(255);NOT NULL;uniqueIndex:uk_org_idempotency_key,priority:2;comment:'组织内唯一的幂等键'"`
	Category       string         `gorm:"type:VARCHAR(255);comment:'分类'"`
	Topic          string         `gorm:"type:VARCHAR(255);comment:'主题'"`
	Title          string         `gorm:"type:VARCHAR(512);comment:'标题'"`
	Content        string         `gorm:"type:TEXT;comment:'内容'"`
	ActionLink     string         `gorm:"type:VARCHAR(1024);comment:'跳转链接'"`
	AdditionalInfo datatypes.JSON `gorm:"comment:'附加信息'"`
	Channels       datatypes.JSON `gorm:"comment:'请求的渠道以及渠道覆盖内容'"`
	Recipients     datatypes.JSON `gorm:"comment:'显式指定的接收者'"`
	AudienceID     int64          `gorm:"type:BIGINT;NOT NULL;DEFAULT:0;comment:'受众ID'"`
	MergeTags      datatypes.JSON `gorm:"comment:'合并标签'"`
	ScheduleAt     sql.NullInt64  `gorm:"comment:'定时发送时间'"`
	Status         string         `gorm:"type:VARCHAR(32);NOT NULL;index:idx_org_status,priority:2;index:idx_status_utime,priority:1;comment:'queued/scheduled/processing/processed/failed/cancelled'"`
	Metadata       datatypes.JSON `gorm:"comment:'软错误等元数据'"`
	Pending        int64          `gorm:"NOT NULL;DEFAULT:0;comment:'尚未完成的通知数，包含一个哨兵'"`
	Resolved       bool           `gorm:"NOT NULL;DEFAULT:false;comment:'接收者是否已经全部分发'"`
	SentAt         sql.NullInt64  `gorm:"comment:'处理完成时间'"`
	Ctime          int64
	Utime          int64          `gorm:"index:idx_status_utime,priority:2"`
}

type broadcastDAO struct {
	db *egorm.Component
}

func NewBroadcastDAO(db *egorm.Component) BroadcastDAO {
	return &broadcastDAO{db: db}
}

func (d *broadcastDAO) Create(ctx context.Context, b Broadcast) (Broadcast, error) {
	now := time.Now().UnixMilli()
	b.Ctime, b.Utime = now, now
	err := d.db.WithContext(ctx).Create(&b).Error
	if isUniqueConstraintError(err) {
		return Broadcast{}, fmt.Errorf("%w", errs.ErrBroadcastDuplicate)
	}
	return b, err
}

func (d *broadcastDAO) CreateScheduled(ctx context.Context, b Broadcast, job ScheduledJob) (Broadcast, error) {
	now := time.Now().UnixMilli()
	b.Ctime, b.Utime = now, now
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w", errs.ErrBroadcastDuplicate)
			}
			return err
		}
		job.BroadcastID = b.ID
		job.OrgID = b.OrgID
		job.Ctime, job.Utime = now, now
		return tx.Create(&job).Error
	})
	return b, err
}

func (d *broadcastDAO) FindByID(ctx context.Context, orgID, id int64) (Broadcast, error) {
	var b Broadcast
	err := d.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&b).Error
	return b, err
}

func (d *broadcastDAO) FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (Broadcast, error) {
	var b Broadcast
	err := d.db.WithContext(ctx).Where("org_id = ? AND idempotency_key = ?", orgID, key).First(&b).Error
	return b, err
}

func (d *broadcastDAO) List(ctx context.Context, orgID int64, status string, offset, limit int) ([]Broadcast, error) {
	query := d.db.WithContext(ctx).Where("org_id = ?", orgID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var res []Broadcast
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (d *broadcastDAO) CASStatus(ctx context.Context, id int64, from []string, to string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Broadcast{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status": to,
			"utime":  time.Now().UnixMilli(),
		})
	return res.RowsAffected > 0, res.Error
}

func (d *broadcastDAO) UpdateMetadata(ctx context.Context, id int64, metadata datatypes.JSON) error {
	return d.db.WithContext(ctx).Model(&Broadcast{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"metadata": metadata,
			"utime":    time.Now().UnixMilli(),
		}).Error
}

func (d *broadcastDAO) Cancel(ctx context.Context, orgID, id int64) error {
	now := time.Now().UnixMilli()
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Broadcast{}).
			Where("org_id = ? AND id = ? AND status = ?", orgID, id, domain.BroadcastStatusScheduled).
			Updates(map[string]any{
				"status": domain.BroadcastStatusCancelled,
				"utime":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return d.notEditable(tx, orgID, id)
		}
		return tx.Where("broadcast_id = ?", id).Delete(&ScheduledJob{}).Error
	})
}

func (d *broadcastDAO) Reschedule(ctx context.Context, orgID, id int64, updates map[string]any, fireAt int64) error {
	now := time.Now().UnixMilli()
	updates["utime"] = now
	updates["schedule_at"] = sql.NullInt64{Int64: fireAt, Valid: true}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Broadcast{}).
			Where("org_id = ? AND id = ? AND status = ?", orgID, id, domain.BroadcastStatusScheduled).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return d.notEditable(tx, orgID, id)
		}
		job := ScheduledJob{BroadcastID: id, OrgID: orgID, FireAt: fireAt, Ctime: now, Utime: now}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "broadcast_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fire_at", "utime"}),
		}).Create(&job).Error
	})
}

// notEditable 区分广播不存在和状态不允许
func (d *broadcastDAO) notEditable(tx *gorm.DB, orgID, id int64) error {
	var b Broadcast
	err := tx.Select("id", "status").Where("org_id = ? AND id = ?", orgID, id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id = %d", errs.ErrBroadcastNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status = %s", errs.ErrBroadcastNotEditable, b.Status)
}

func (d *broadcastDAO) FindStuck(ctx context.Context, before int64, limit int) ([]Broadcast, error) {
	var res []Broadcast
	err := d.db.WithContext(ctx).
		Where("status = ? AND utime < ?", domain.BroadcastStatusProcessing, before).
		Order("utime").Limit(limit).Find(&res).Error
	return res, err
}
