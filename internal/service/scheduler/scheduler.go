package scheduler

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/pkg/loopjob"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const loopKey = "broadcast_platform_scheduler"

type Config struct {
	BatchSize int           `yaml:"batchSize"`
	Interval  time.Duration `yaml:"interval"`
}

// Scheduler 定时广播。定时任务只由提交路径和触发路径修改，
// 取消、修改与触发都要求广播处于 scheduled，先提交的一方生效
type Scheduler struct {
	broadcastRepo repository.BroadcastRepository
	jobRepo       repository.ScheduledJobRepository
	producer      broadcastevt.Producer
	dclient       dlock.Client
	cfg           Config

	now    func() time.Time
	logger *elog.Component
}

func NewScheduler(
	broadcastRepo repository.BroadcastRepository,
	jobRepo repository.ScheduledJobRepository,
	producer broadcastevt.Producer,
	dclient dlock.Client,
	cfg Config,
) *Scheduler {
	return &Scheduler{
		broadcastRepo: broadcastRepo,
		jobRepo:       jobRepo,
		producer:      producer,
		dclient:       dclient,
		cfg:           cfg,
		now:           time.Now,
		logger:        elog.DefaultLogger,
	}
}

// Schedule 广播和定时任务在一个事务中写入
func (s *Scheduler) Schedule(ctx context.Context, b domain.Broadcast) (domain.Broadcast, error) {
	return s.broadcastRepo.CreateScheduled(ctx, b)
}

func (s *Scheduler) Cancel(ctx context.Context, orgID, id int64) error {
	return s.broadcastRepo.Cancel(ctx, orgID, id)
}

// Reschedule 没有指定新的时间时保持原来的触发时间。
// 修改之后的广播要能通过提交时的校验，落库时仍然以 scheduled 做 CAS
func (s *Scheduler) Reschedule(ctx context.Context, orgID, id int64, edit domain.BroadcastEdit) error {
	b, err := s.broadcastRepo.FindByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	if b.Status != domain.BroadcastStatusScheduled {
		return fmt.Errorf("%w: status = %s", errs.ErrBroadcastNotEditable, b.Status)
	}
	if edit.ScheduleAt.IsZero() {
		edit.ScheduleAt = b.ScheduleAt
	} else if !edit.ScheduleAt.After(s.now()) {
		return fmt.Errorf("%w: scheduleAt 必须晚于当前时间", errs.ErrInvalidParameter)
	}
	if err = edit.Apply(b).Validate(); err != nil {
		return err
	}
	return s.broadcastRepo.Edit(ctx, orgID, id, edit)
}

// Start 启动触发循环，当 ctx 被取消的时候结束
func (s *Scheduler) Start(ctx context.Context) {
	go loopjob.NewInfiniteLoop(s.dclient, s.loop, loopKey).Run(ctx)
}

func (s *Scheduler) loop(ctx context.Context) error {
	start := s.now()
	fired, err := s.FireDue(ctx)
	if err != nil {
		return err
	}
	// 一批没有处理完，立刻处理下一批
	if fired >= s.cfg.BatchSize {
		return nil
	}
	if elapsed := s.now().Sub(start); elapsed < s.cfg.Interval {
		timer := time.NewTimer(s.cfg.Interval - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return nil
}

// FireDue 触发一批到期的定时任务，返回本次抢到的任务数
func (s *Scheduler) FireDue(ctx context.Context) (int, error) {
	jobs, err := s.jobRepo.FindDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("查找到期任务失败 %w", err)
	}
	fired := 0
	for _, job := range jobs {
		ok, err := s.jobRepo.Fire(ctx, job)
		if err != nil {
			s.logger.Error("触发定时任务失败", elog.Int64("broadcastId", job.BroadcastID), elog.FieldErr(err))
			continue
		}
		if !ok {
			// 被取消了，或者被别的节点抢走了
			continue
		}
		fired++
		err = s.producer.Produce(ctx, broadcastevt.Event{OrgID: job.OrgID, BroadcastID: job.BroadcastID})
		if err == nil {
			continue
		}
		s.logger.Error("定时广播入队失败", elog.Int64("broadcastId", job.BroadcastID), elog.FieldErr(err))
		if err = s.broadcastRepo.MarkFailed(ctx, job.BroadcastID); err != nil {
			s.logger.Error("标记广播失败状态失败", elog.Int64("broadcastId", job.BroadcastID), elog.FieldErr(err))
		}
	}
	return fired, nil
}
