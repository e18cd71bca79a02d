package repository

import (
	"context"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"github.com/ecodeclub/ekit/slice"
)

type ScheduledJobRepository interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error)
	// Fire 抢占一个到期任务，抢到之后广播进入 queued
	Fire(ctx context.Context, job domain.ScheduledJob) (bool, error)
}

type scheduledJobRepository struct {
	dao dao.ScheduledJobDAO
}

func NewScheduledJobRepository(d dao.ScheduledJobDAO) ScheduledJobRepository {
	return &scheduledJobRepository{dao: d}
}

func (r *scheduledJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	jobs, err := r.dao.FindDue(ctx, now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return slice.Map(jobs, func(_ int, j dao.ScheduledJob) domain.ScheduledJob {
		return domain.ScheduledJob{
			ID:          j.ID,
			BroadcastID: j.BroadcastID,
			OrgID:       j.OrgID,
			FireAt:      time.UnixMilli(j.FireAt),
		}
	}), nil
}

func (r *scheduledJobRepository) Fire(ctx context.Context, job domain.ScheduledJob) (bool, error) {
	return r.dao.Fire(ctx, dao.ScheduledJob{
		ID:          job.ID,
		BroadcastID: job.BroadcastID,
		OrgID:       job.OrgID,
		FireAt:      job.FireAt.UnixMilli(),
	})
}
