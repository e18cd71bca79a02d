package coordinator

import (
	"context"
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/pkg/loopjob"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const recoverLoopKey = "broadcast_recover_stuck"

type RecoverConfig struct {
	// 处理中超过这个时间还没有扇出完毕，认为扇出中断了
	OlderThan time.Duration `yaml:"olderThan"`
	BatchSize int           `yaml:"batchSize"`
	Interval  time.Duration `yaml:"interval"`
}

// Recoverer 扇出中断的广播重新入队。Run 可以重复执行，所以重复入队是安全的
type Recoverer struct {
	repo     repository.BroadcastRepository
	producer broadcastevt.Producer
	dclient  dlock.Client
	cfg      RecoverConfig

	now    func() time.Time
	logger *elog.Component
}

func NewRecoverer(
	repo repository.BroadcastRepository,
	producer broadcastevt.Producer,
	dclient dlock.Client,
	cfg RecoverConfig,
) *Recoverer {
	return &Recoverer{
		repo:     repo,
		producer: producer,
		dclient:  dclient,
		cfg:      cfg,
		now:      time.Now,
		logger:   elog.DefaultLogger,
	}
}

func (r *Recoverer) Start(ctx context.Context) {
	go loopjob.NewInfiniteLoop(r.dclient, r.loop, recoverLoopKey).Run(ctx)
}

func (r *Recoverer) loop(ctx context.Context) error {
	cnt, err := r.Recover(ctx)
	if err != nil {
		return err
	}
	if cnt < r.cfg.BatchSize {
		timer := time.NewTimer(r.cfg.Interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return nil
}

// Recover 返回本次扫描到的广播数。已经扇出完毕、只是在等投递结果的广播只记录日志
func (r *Recoverer) Recover(ctx context.Context) (int, error) {
	bs, err := r.repo.FindStuck(ctx, r.now().Add(-r.cfg.OlderThan), r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, b := range bs {
		if b.Resolved {
			r.logger.Warn("广播长时间没有结束",
				elog.Int64("broadcastId", b.ID),
				elog.Int64("pending", b.Pending))
			continue
		}
		err = r.producer.Produce(ctx, broadcastevt.Event{OrgID: b.OrgID, BroadcastID: b.ID})
		if err != nil {
			r.logger.Error("中断的广播重新入队失败", elog.Int64("broadcastId", b.ID), elog.FieldErr(err))
			continue
		}
		r.logger.Info("中断的广播重新入队", elog.Int64("broadcastId", b.ID))
	}
	return len(bs), nil
}
