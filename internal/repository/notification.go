package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gorm.io/gorm"
)

// NotificationRepository 通知仓储
type NotificationRepository interface {
	// GetOrCreate 第二个返回值表示是否是本次新建的
	GetOrCreate(ctx context.Context, n domain.Notification) (domain.Notification, bool, error)
	GetByID(ctx context.Context, id int64) (domain.Notification, error)
	FindByID(ctx context.Context, orgID, id int64) (domain.Notification, error)
	ListByBroadcast(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]domain.Notification, error)
	ListInbox(ctx context.Context, orgID, recipientID int64, archived bool, offset, limit int) ([]domain.Notification, error)
	// Dispatch 记录派发的任务数，只有第一次生效
	Dispatch(ctx context.Context, n domain.Notification, pending int) (bool, error)
	MarkProcessed(ctx context.Context, id int64) (bool, error)
	ApplyInboxAction(ctx context.Context, orgID, recipientID, id int64, action domain.InboxAction, now time.Time) error
}

type notificationRepository struct {
	dao   dao.NotificationDAO
	fanIn dao.FanInDAO
}

func NewNotificationRepository(d dao.NotificationDAO, fanIn dao.FanInDAO) NotificationRepository {
	return &notificationRepository{dao: d, fanIn: fanIn}
}

func (r *notificationRepository) GetOrCreate(ctx context.Context, n domain.Notification) (domain.Notification, bool, error) {
	entity, err := r.toEntity(n)
	if err != nil {
		return domain.Notification{}, false, err
	}
	res, created, err := r.dao.GetOrCreate(ctx, entity)
	if err != nil {
		return domain.Notification{}, false, err
	}
	dn, err := r.toDomain(res)
	return dn, created, err
}

func (r *notificationRepository) GetByID(ctx context.Context, id int64) (domain.Notification, error) {
	entity, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Notification{}, r.notFound(err, id)
	}
	return r.toDomain(entity)
}

func (r *notificationRepository) FindByID(ctx context.Context, orgID, id int64) (domain.Notification, error) {
	entity, err := r.dao.FindByID(ctx, orgID, id)
	if err != nil {
		return domain.Notification{}, r.notFound(err, id)
	}
	return r.toDomain(entity)
}

func (r *notificationRepository) notFound(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id = %d", errs.ErrNotificationNotFound, id)
	}
	return err
}

func (r *notificationRepository) ListByBroadcast(ctx context.Context, orgID, broadcastID int64, offset, limit int) ([]domain.Notification, error) {
	entities, err := r.dao.ListByBroadcast(ctx, orgID, broadcastID, offset, limit)
	if err != nil {
		return nil, err
	}
	return r.toDomains(entities)
}

func (r *notificationRepository) ListInbox(ctx context.Context, orgID, recipientID int64, archived bool, offset, limit int) ([]domain.Notification, error) {
	entities, err := r.dao.ListInbox(ctx, orgID, recipientID, archived, offset, limit)
	if err != nil {
		return nil, err
	}
	return r.toDomains(entities)
}

func (r *notificationRepository) Dispatch(ctx context.Context, n domain.Notification, pending int) (bool, error) {
	return r.fanIn.Dispatch(ctx, n.ID, n.BroadcastID, int64(pending))
}

func (r *notificationRepository) MarkProcessed(ctx context.Context, id int64) (bool, error) {
	return r.dao.MarkProcessed(ctx, id)
}

func (r *notificationRepository) ApplyInboxAction(ctx context.Context, orgID, recipientID, id int64, action domain.InboxAction, now time.Time) error {
	if !action.IsValid() {
		return fmt.Errorf("%w: action = %s", errs.ErrInvalidParameter, action)
	}
	column, set := action.Column()
	value := sql.NullInt64{}
	if set {
		value = sql.NullInt64{Int64: now.UnixMilli(), Valid: true}
	}
	return r.dao.UpdateTimestamp(ctx, orgID, recipientID, id, column, value)
}

func (r *notificationRepository) toDomains(entities []dao.Notification) ([]domain.Notification, error) {
	res := make([]domain.Notification, 0, len(entities))
	for _, e := range entities {
		n, err := r.toDomain(e)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func (r *notificationRepository) toEntity(n domain.Notification) (dao.Notification, error) {
	info, err := json.Marshal(n.AdditionalInfo)
	if err != nil {
		return dao.Notification{}, err
	}
	status := n.Status
	if status == "" {
		status = domain.NotificationStatusQueued
	}
	return dao.Notification{
		ID:             n.ID,
		OrgID:          n.OrgID,
		BroadcastID:    n.BroadcastID,
		RecipientID:    n.RecipientID,
		Category:       n.Category,
		Topic:          n.Topic,
		Title:          n.Title,
		Content:        n.Content,
		ActionLink:     n.ActionLink,
		AdditionalInfo: info,
		Status:         string(status),
	}, nil
}

func millis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}

func (r *notificationRepository) toDomain(e dao.Notification) (domain.Notification, error) {
	n := domain.Notification{
		ID:          e.ID,
		OrgID:       e.OrgID,
		BroadcastID: e.BroadcastID,
		RecipientID: e.RecipientID,
		Category:    e.Category,
		Topic:       e.Topic,
		Title:       e.Title,
		Content:     e.Content,
		ActionLink:  e.ActionLink,
		Status:      domain.NotificationStatus(e.Status),
		Pending:     e.Pending,
		Dispatched:  e.Dispatched,
		SeenAt:      millis(e.SeenAt),
		ReadAt:      millis(e.ReadAt),
		ClickedAt:   millis(e.ClickedAt),
		ArchivedAt:  millis(e.ArchivedAt),
		Ctime:       time.UnixMilli(e.Ctime),
		Utime:       time.UnixMilli(e.Utime),
	}
	if len(e.AdditionalInfo) > 0 {
		if err := json.Unmarshal(e.AdditionalInfo, &n.AdditionalInfo); err != nil {
			return domain.Notification{}, err
		}
	}
	return n, nil
}
