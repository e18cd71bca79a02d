package ratelimit

import (
	"context"
	_ "embed"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/slide_window.lua
	slidingWindowScript string

	_ Limiter = (*RedisSlidingWindowLimiter)(nil)
)

// RedisSlidingWindowLimiter 按供应商配额限流，窗口保存在 redis 的有序集合里
type RedisSlidingWindowLimiter struct {
	cmd       redis.Cmdable
	cfg       Config
	keyPrefix string
	now       func() time.Time
}

func NewRedisSlidingWindowLimiter(cmd redis.Cmdable, cfg Config) *RedisSlidingWindowLimiter {
	return &RedisSlidingWindowLimiter{
		cmd:       cmd,
		cfg:       cfg,
		keyPrefix: "broadcast:ratelimit:",
		now:       time.Now,
	}
}

func (r *RedisSlidingWindowLimiter) Limit(ctx context.Context, key Key) (bool, error) {
	q := r.cfg.quota(key.Vendor)
	if q.Rate <= 0 || q.Interval <= 0 {
		return false, nil
	}
	// 成员要唯一，同一毫秒内的多次调用各占一个位置
	member, err := uuid.NewV4()
	if err != nil {
		return false, err
	}
	return r.cmd.Eval(ctx, slidingWindowScript,
		[]string{r.keyPrefix + key.String()},
		q.Interval.Milliseconds(),
		q.Rate,
		r.now().UnixMilli(),
		member.String(),
	).Bool()
}
