package loopjob

import (
	"context"
	"fmt"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

// 在没有分布式任务调度平台的情况下，使用这个来调度

const (
	defaultTimeout  = time.Second * 3
	defaultInterval = time.Minute
)

// InfiniteLoop 只有抢到分布式锁的节点执行 biz，
// 每执行一次 biz 续约一次，续约失败就放弃锁重新抢
type InfiniteLoop struct {
	dclient dlock.Client
	key     string
	logger  *elog.Component
	biz     func(ctx context.Context) error
	// 锁的过期时间，也是抢锁失败之后的等待时间
	interval time.Duration
}

func NewInfiniteLoop(
	dclient dlock.Client,
	// 你要执行的业务。注意当 ctx 被取消的时候，就会退出全部循环
	biz func(ctx context.Context) error,
	key string,
) *InfiniteLoop {
	return &InfiniteLoop{
		dclient:  dclient,
		key:      key,
		logger:   elog.DefaultLogger.With(elog.String("key", key)),
		biz:      biz,
		interval: defaultInterval,
	}
}

func (l *InfiniteLoop) WithInterval(interval time.Duration) *InfiniteLoop {
	l.interval = interval
	return l
}

// Run 当 ctx 被取消的时候，就会退出
func (l *InfiniteLoop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		lock, err := l.dclient.NewLock(ctx, l.key, l.interval)
		if err != nil {
			l.logger.Error("初始化分布式锁失败，重试", elog.FieldErr(err))
			l.wait(ctx)
			continue
		}

		lockCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		// 没有拿到锁，不管是系统错误，还是锁被人持有，都没有关系
		err = lock.Lock(lockCtx)
		cancel()
		if err != nil {
			l.logger.Debug("没有抢到分布式锁", elog.FieldErr(err))
			l.wait(ctx)
			continue
		}

		err = l.bizLoop(ctx, lock)
		if err != nil && ctx.Err() == nil {
			l.logger.Error("执行业务失败，将执行重试", elog.FieldErr(err))
		}
		// 此时 ctx 可能已经被取消了，但是锁还是要释放
		unCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		//nolint:contextcheck // 原始 ctx 可能已被取消
		unErr := lock.Unlock(unCtx)
		cancel()
		if unErr != nil {
			l.logger.Error("释放分布式锁失败", elog.FieldErr(unErr))
		}
		if ctx.Err() == nil {
			l.wait(ctx)
		}
	}
	l.logger.Info("任务被取消，退出任务循环")
}

func (l *InfiniteLoop) bizLoop(ctx context.Context, lock dlock.Lock) error {
	for {
		err := l.biz(ctx)
		if err != nil {
			l.logger.Error("业务执行失败", elog.FieldErr(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		refCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		err = lock.Refresh(refCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("分布式锁续约失败 %w", err)
		}
	}
}

func (l *InfiniteLoop) wait(ctx context.Context) {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
