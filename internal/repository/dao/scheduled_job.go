package dao

import (
	"context"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

// ScheduledJobDAO 定时任务只由提交路径和触发路径修改
type ScheduledJobDAO interface {
	FindDue(ctx context.Context, now int64, limit int) ([]ScheduledJob, error)
	// Fire 删除任务并把广播从 scheduled 改成 queued，返回是否抢到了这个任务
	Fire(ctx context.Context, job ScheduledJob) (bool, error)
	FindByBroadcastID(ctx context.Context, broadcastID int64) (ScheduledJob, error)
}

// ScheduledJob 定时任务表，一个广播最多一个
type ScheduledJob struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	BroadcastID int64 `gorm:"type:BIGINT;NOT NULL;uniqueIndex:uk_broadcast_id;comment:'广播ID'"`
	OrgID       int64 `gorm:"type:BIGINT;NOT NULL;comment:'组织ID'"`
	FireAt      int64 `gorm:"type:BIGINT;NOT NULL;index:idx_fire_at;comment:'触发时间'"`
	Ctime       int64
	Utime       int64
}

type scheduledJobDAO struct {
	db *egorm.Component
}

func NewScheduledJobDAO(db *egorm.Component) ScheduledJobDAO {
	return &scheduledJobDAO{db: db}
}

func (d *scheduledJobDAO) FindDue(ctx context.Context, now int64, limit int) ([]ScheduledJob, error) {
	var res []ScheduledJob
	err := d.db.WithContext(ctx).Where("fire_at <= ?", now).Order("fire_at").Limit(limit).Find(&res).Error
	return res, err
}

func (d *scheduledJobDAO) Fire(ctx context.Context, job ScheduledJob) (bool, error) {
	fired := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", job.ID).Delete(&ScheduledJob{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		res = tx.Model(&Broadcast{}).
			Where("id = ? AND status = ?", job.BroadcastID, domain.BroadcastStatusScheduled).
			Updates(map[string]any{
				"status": domain.BroadcastStatusQueued,
				"utime":  time.Now().UnixMilli(),
			})
		if res.Error != nil {
			return res.Error
		}
		fired = res.RowsAffected > 0
		return nil
	})
	return fired, err
}

func (d *scheduledJobDAO) FindByBroadcastID(ctx context.Context, broadcastID int64) (ScheduledJob, error) {
	var job ScheduledJob
	err := d.db.WithContext(ctx).Where("broadcast_id = ?", broadcastID).First(&job).Error
	return job, err
}
