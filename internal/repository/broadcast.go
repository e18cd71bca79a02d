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

type BroadcastRepository interface {
	// Create 立即发送的广播，状态为 queued
	Create(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error)
	// CreateScheduled 定时广播，同时写入定时任务
	CreateScheduled(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error)
	FindByID(ctx context.Context, orgID, id int64) (domain.Broadcast, error)
	FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (domain.Broadcast, error)
	List(ctx context.Context, orgID int64, status domain.BroadcastStatus, offset, limit int) ([]domain.Broadcast, error)
	// MarkFailed 入队失败，只有 queued 可以变成 failed
	MarkFailed(ctx context.Context, id int64) error
	UpdateMetadata(ctx context.Context, id int64, metadata domain.BroadcastMetadata) error
	Cancel(ctx context.Context, orgID, id int64) error
	Edit(ctx context.Context, orgID, id int64, edit domain.BroadcastEdit) error
	// StartProcessing queued -> processing，返回是否由本次调用完成了切换
	StartProcessing(ctx context.Context, id int64) (bool, error)
	// ReleaseSentinel 全部接收者分发完毕，返回广播是否因此结束
	ReleaseSentinel(ctx context.Context, id int64) (bool, error)
	FindStuck(ctx context.Context, before time.Time, limit int) ([]domain.Broadcast, error)
}

type broadcastRepository struct {
	dao   dao.BroadcastDAO
	fanIn dao.FanInDAO
}

func NewBroadcastRepository(d dao.BroadcastDAO, fanIn dao.FanInDAO) BroadcastRepository {
	return &broadcastRepository{dao: d, fanIn: fanIn}
}

func (r *broadcastRepository) Create(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error) {
	b.Status = domain.BroadcastStatusQueued
	entity, err := r.toEntity(b)
	if err != nil {
		return domain.Broadcast{}, err
	}
	created, err := r.dao.Create(ctx, entity)
	if err != nil {
		return domain.Broadcast{}, err
	}
	return r.toDomain(created)
}

func (r *broadcastRepository) CreateScheduled(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error) {
	b.Status = domain.BroadcastStatusScheduled
	entity, err := r.toEntity(b)
	if err != nil {
		return domain.Broadcast{}, err
	}
	created, err := r.dao.CreateScheduled(ctx, entity, dao.ScheduledJob{FireAt: b.ScheduleAt.UnixMilli()})
	if err != nil {
		return domain.Broadcast{}, err
	}
	return r.toDomain(created)
}

func (r *broadcastRepository) FindByID(ctx context.Context, orgID, id int64) (domain.Broadcast, error) {
	entity, err := r.dao.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Broadcast{}, fmt.Errorf("%w: id = %d", errs.ErrBroadcastNotFound, id)
		}
		return domain.Broadcast{}, err
	}
	return r.toDomain(entity)
}

func (r *broadcastRepository) FindByIdempotencyKey(ctx context.Context, orgID int64, key string) (domain.Broadcast, error) {
	entity, err := r.dao.FindByIdempotencyKey(ctx, orgID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Broadcast{}, fmt.Errorf("%w: key = %s", errs.ErrBroadcastNotFound, key)
		}
		return domain.Broadcast{}, err
	}
	return r.toDomain(entity)
}

func (r *broadcastRepository) List(ctx context.Context, orgID int64, status domain.BroadcastStatus, offset, limit int) ([]domain.Broadcast, error) {
	entities, err := r.dao.List(ctx, orgID, string(status), offset, limit)
	if err != nil {
		return nil, err
	}
	return r.toDomains(entities)
}

func (r *broadcastRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.dao.CASStatus(ctx, id, []string{string(domain.BroadcastStatusQueued)}, string(domain.BroadcastStatusFailed))
	return err
}

func (r *broadcastRepository) UpdateMetadata(ctx context.Context, id int64, metadata domain.BroadcastMetadata) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return r.dao.UpdateMetadata(ctx, id, raw)
}

func (r *broadcastRepository) Cancel(ctx context.Context, orgID, id int64) error {
	return r.dao.Cancel(ctx, orgID, id)
}

func (r *broadcastRepository) Edit(ctx context.Context, orgID, id int64, edit domain.BroadcastEdit) error {
	updates := map[string]any{}
	if edit.Title != nil {
		updates["title"] = *edit.Title
	}
	if edit.Content != nil {
		updates["content"] = *edit.Content
	}
	if edit.ActionLink != nil {
		updates["action_link"] = *edit.ActionLink
	}
	return r.dao.Reschedule(ctx, orgID, id, updates, edit.ScheduleAt.UnixMilli())
}

func (r *broadcastRepository) StartProcessing(ctx context.Context, id int64) (bool, error) {
	return r.fanIn.StartProcessing(ctx, id)
}

func (r *broadcastRepository) ReleaseSentinel(ctx context.Context, id int64) (bool, error) {
	return r.fanIn.ReleaseSentinel(ctx, id)
}

func (r *broadcastRepository) FindStuck(ctx context.Context, before time.Time, limit int) ([]domain.Broadcast, error) {
	entities, err := r.dao.FindStuck(ctx, before.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return r.toDomains(entities)
}

func (r *broadcastRepository) toDomains(entities []dao.Broadcast) ([]domain.Broadcast, error) {
	res := make([]domain.Broadcast, 0, len(entities))
	for _, e := range entities {
		b, err := r.toDomain(e)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, nil
}

func (r *broadcastRepository) toEntity(b domain.Broadcast) (dao.Broadcast, error) {
	entity := dao.Broadcast{
		ID:             b.ID,
		OrgID:          b.OrgID,
		IdempotencyKey: b.IdempotencyKey,
		Category:       b.Category,
		Topic:          b.Topic,
		Title:          b.Title,
		Content:        b.Content,
		ActionLink:     b.ActionLink,
		AudienceID:     b.AudienceID,
		Status:         string(b.Status),
		Pending:        b.Pending,
		Resolved:       b.Resolved,
	}
	if !b.ScheduleAt.IsZero() {
		entity.ScheduleAt = sql.NullInt64{Int64: b.ScheduleAt.UnixMilli(), Valid: true}
	}
	if !b.SentAt.IsZero() {
		entity.SentAt = sql.NullInt64{Int64: b.SentAt.UnixMilli(), Valid: true}
	}
	var err error
	fields := []struct {
		dst *[]byte
		src any
	}{
		{dst: (*[]byte)(&entity.AdditionalInfo), src: b.AdditionalInfo},
		{dst: (*[]byte)(&entity.Channels), src: b.Channels},
		{dst: (*[]byte)(&entity.Recipients), src: b.Recipients},
		{dst: (*[]byte)(&entity.MergeTags), src: b.MergeTags},
		{dst: (*[]byte)(&entity.Metadata), src: b.Metadata},
	}
	for _, f := range fields {
		if *f.dst, err = json.Marshal(f.src); err != nil {
			return dao.Broadcast{}, err
		}
	}
	return entity, nil
}

func (r *broadcastRepository) toDomain(e dao.Broadcast) (domain.Broadcast, error) {
	b := domain.Broadcast{
		ID:             e.ID,
		OrgID:          e.OrgID,
		IdempotencyKey: e.IdempotencyKey,
		Category:       e.Category,
		Topic:          e.Topic,
		Title:          e.Title,
		Content:        e.Content,
		ActionLink:     e.ActionLink,
		AudienceID:     e.AudienceID,
		Status:         domain.BroadcastStatus(e.Status),
		Pending:        e.Pending,
		Resolved:       e.Resolved,
		Ctime:          time.UnixMilli(e.Ctime),
		Utime:          time.UnixMilli(e.Utime),
	}
	if e.ScheduleAt.Valid {
		b.ScheduleAt = time.UnixMilli(e.ScheduleAt.Int64)
	}
	if e.SentAt.Valid {
		b.SentAt = time.UnixMilli(e.SentAt.Int64)
	}
	fields := []struct {
		src []byte
		dst any
	}{
		{src: e.AdditionalInfo, dst: &b.AdditionalInfo},
		{src: e.Channels, dst: &b.Channels},
		{src: e.Recipients, dst: &b.Recipients},
		{src: e.MergeTags, dst: &b.MergeTags},
		{src: e.Metadata, dst: &b.Metadata},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return domain.Broadcast{}, err
		}
	}
	return b, nil
}
