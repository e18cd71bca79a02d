package dao

import (
	"context"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/ego-component/egorm"
	"gorm.io/gorm"
)

// FanInDAO 维护 投递 -> 通知 -> 广播 的完成计数。
// 所有计数都用条件更新，重复调用不会重复计数
type FanInDAO interface {
	// StartProcessing queued -> processing，同时放入一个哨兵计数
	StartProcessing(ctx context.Context, broadcastID int64) (bool, error)
	// Dispatch 记录一个通知派发了 pending 个任务，只有第一次生效
	Dispatch(ctx context.Context, notificationID, broadcastID int64, pending int64) (bool, error)
	// ReleaseSentinel 接收者全部分发后释放哨兵
	ReleaseSentinel(ctx context.Context, broadcastID int64) (bool, error)
	// CompleteDelivery 投递进入不再变化的状态后计入汇总
	CompleteDelivery(ctx context.Context, deliveryID int64) (FanInResult, error)
}

type FanInResult struct {
	NotificationID   int64
	BroadcastID      int64
	NotificationDone bool
	BroadcastDone    bool
}

type fanInDAO struct {
	db *egorm.Component
}

func NewFanInDAO(db *egorm.Component) FanInDAO {
	return &fanInDAO{db: db}
}

func (d *fanInDAO) StartProcessing(ctx context.Context, broadcastID int64) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Broadcast{}).
		Where("id = ? AND status = ?", broadcastID, domain.BroadcastStatusQueued).
		Updates(map[string]any{
			"status":   domain.BroadcastStatusProcessing,
			"pending":  1,
			"resolved": false,
			"utime":    time.Now().UnixMilli(),
		})
	return res.RowsAffected > 0, res.Error
}

func (d *fanInDAO) Dispatch(ctx context.Context, notificationID, broadcastID int64, pending int64) (bool, error) {
	dispatched := false
	now := time.Now().UnixMilli()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Notification{}).
			Where("id = ? AND dispatched = ?", notificationID, false).
			Updates(map[string]any{
				"dispatched": true,
				"pending":    pending,
				"utime":      now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		res = tx.Model(&Broadcast{}).
			Where("id = ?", broadcastID).
			Updates(map[string]any{
				"pending": gorm.Expr("pending + 1"),
				"utime":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		dispatched = true
		return nil
	})
	return dispatched, err
}

func (d *fanInDAO) ReleaseSentinel(ctx context.Context, broadcastID int64) (bool, error) {
	done := false
	now := time.Now().UnixMilli()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Broadcast{}).
			Where("id = ? AND resolved = ? AND pending > 0", broadcastID, false).
			Updates(map[string]any{
				"resolved": true,
				"pending":  gorm.Expr("pending - 1"),
				"utime":    now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		var err error
		done, err = d.finishBroadcast(tx, broadcastID, now)
		return err
	})
	return done, err
}

func (d *fanInDAO) CompleteDelivery(ctx context.Context, deliveryID int64) (FanInResult, error) {
	var result FanInResult
	now := time.Now().UnixMilli()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var del Delivery
		if err := tx.Select("id", "notification_id").Where("id = ?", deliveryID).First(&del).Error; err != nil {
			return err
		}
		result.NotificationID = del.NotificationID
		res := tx.Model(&Delivery{}).
			Where("id = ? AND counted = ?", deliveryID, false).
			Updates(map[string]any{"counted": true, "utime": now})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		res = tx.Model(&Notification{}).
			Where("id = ? AND pending > 0", del.NotificationID).
			Updates(map[string]any{
				"pending": gorm.Expr("pending - 1"),
				"utime":   now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		res = tx.Model(&Notification{}).
			Where("id = ? AND pending = 0 AND status = ?", del.NotificationID, domain.NotificationStatusQueued).
			Updates(map[string]any{
				"status": domain.NotificationStatusProcessed,
				"utime":  now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		result.NotificationDone = true

		var n Notification
		if err := tx.Select("id", "broadcast_id").Where("id = ?", del.NotificationID).First(&n).Error; err != nil {
			return err
		}
		result.BroadcastID = n.BroadcastID
		res = tx.Model(&Broadcast{}).
			Where("id = ? AND pending > 0", n.BroadcastID).
			Updates(map[string]any{
				"pending": gorm.Expr("pending - 1"),
				"utime":   now,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		var err error
		result.BroadcastDone, err = d.finishBroadcast(tx, n.BroadcastID, now)
		return err
	})
	return result, err
}

// finishBroadcast 计数归零的广播进入 processed
func (d *fanInDAO) finishBroadcast(tx *gorm.DB, broadcastID, now int64) (bool, error) {
	res := tx.Model(&Broadcast{}).
		Where("id = ? AND pending = 0 AND status = ?", broadcastID, domain.BroadcastStatusProcessing).
		Updates(map[string]any{
			"status":  domain.BroadcastStatusProcessed,
			"sent_at": now,
			"utime":   now,
		})
	return res.RowsAffected > 0, res.Error
}
