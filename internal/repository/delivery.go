package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gorm.io/gorm"
)

// DeliveryRepository 投递账本
type DeliveryRepository interface {
	// Save 写入账本，返回写入之后的行，已经是最终状态的行保持不变
	Save(ctx context.Context, d domain.Delivery) (domain.Delivery, error)
	// Find 第二个返回值表示账本里是否已经有这一行
	Find(ctx context.Context, task domain.DeliveryTask) (domain.Delivery, bool, error)
	ListByNotification(ctx context.Context, orgID, notificationID int64) ([]domain.Delivery, error)
	// Complete 把一行计入通知和广播的汇总，可以重复调用
	Complete(ctx context.Context, deliveryID int64) (domain.Completion, error)
}

type deliveryRepository struct {
	dao   dao.DeliveryDAO
	fanIn dao.FanInDAO
}

func NewDeliveryRepository(d dao.DeliveryDAO, fanIn dao.FanInDAO) DeliveryRepository {
	return &deliveryRepository{dao: d, fanIn: fanIn}
}

func (r *deliveryRepository) Save(ctx context.Context, d domain.Delivery) (domain.Delivery, error) {
	entity, err := r.toEntity(d)
	if err != nil {
		return domain.Delivery{}, err
	}
	saved, err := r.dao.Upsert(ctx, entity)
	if err != nil {
		return domain.Delivery{}, err
	}
	return r.toDomain(saved)
}

func (r *deliveryRepository) Find(ctx context.Context, task domain.DeliveryTask) (domain.Delivery, bool, error) {
	entity, err := r.dao.FindByKey(ctx, task.NotificationID, string(task.Channel), task.Target())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Delivery{}, false, nil
	}
	if err != nil {
		return domain.Delivery{}, false, err
	}
	d, err := r.toDomain(entity)
	return d, err == nil, err
}

func (r *deliveryRepository) ListByNotification(ctx context.Context, orgID, notificationID int64) ([]domain.Delivery, error) {
	entities, err := r.dao.ListByNotification(ctx, orgID, notificationID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Delivery, 0, len(entities))
	for _, e := range entities {
		d, err := r.toDomain(e)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r *deliveryRepository) Complete(ctx context.Context, deliveryID int64) (domain.Completion, error) {
	res, err := r.fanIn.CompleteDelivery(ctx, deliveryID)
	if err != nil {
		return domain.Completion{}, err
	}
	return domain.Completion{
		NotificationID:   res.NotificationID,
		BroadcastID:      res.BroadcastID,
		NotificationDone: res.NotificationDone,
		BroadcastDone:    res.BroadcastDone,
	}, nil
}

func (r *deliveryRepository) toEntity(d domain.Delivery) (dao.Delivery, error) {
	entity := dao.Delivery{
		OrgID:          d.OrgID,
		NotificationID: d.NotificationID,
		Channel:        string(d.Channel),
		Target:         d.Target,
		Platform:       string(d.Platform),
		Title:          d.Title,
		Content:        d.Content,
		ActionLink:     d.ActionLink,
		Status:         string(d.Status),
		ErrorReason:    d.ErrorReason,
		Attempts:       d.Attempts,
		Counted:        d.Counted,
	}
	if !d.SentAt.IsZero() {
		entity.SentAt = sql.NullInt64{Int64: d.SentAt.UnixMilli(), Valid: true}
	}
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return dao.Delivery{}, err
		}
		entity.Metadata = raw
	}
	return entity, nil
}

func (r *deliveryRepository) toDomain(e dao.Delivery) (domain.Delivery, error) {
	d := domain.Delivery{
		ID:             e.ID,
		OrgID:          e.OrgID,
		NotificationID: e.NotificationID,
		Channel:        domain.Channel(e.Channel),
		Target:         e.Target,
		Platform:       domain.Platform(e.Platform),
		Title:          e.Title,
		Content:        e.Content,
		ActionLink:     e.ActionLink,
		Status:         domain.DeliveryStatus(e.Status),
		ErrorReason:    e.ErrorReason,
		Attempts:       e.Attempts,
		Counted:        e.Counted,
		SentAt:         millis(e.SentAt),
		Ctime:          time.UnixMilli(e.Ctime),
		Utime:          time.UnixMilli(e.Utime),
	}
	if len(e.Metadata) > 0 {
		if err := json.Unmarshal(e.Metadata, &d.Metadata); err != nil {
			return domain.Delivery{}, err
		}
	}
	return d, nil
}
