package ratelimit

import (
	"context"
	"strconv"
	"time"
)

//go:generate mockgen -source=./types.go -package=limitmocks -destination=./mocks/limiter.mock.go -typed Limiter
type Limiter interface {
	// Limit 返回 true 表示本次请求被限流，没有占用窗口
	Limit(ctx context.Context, key Key) (bool, error)
}

// Key 同一个组织的同一个供应商共享一个窗口
type Key struct {
	OrgID  int64
	Vendor string
}

func (k Key) String() string {
	return "provider:" + k.Vendor + ":" + strconv.FormatInt(k.OrgID, 10)
}

// Quota 窗口内最多 Rate 次调用，Rate 小于等于 0 表示不限流
type Quota struct {
	Interval time.Duration `yaml:"interval"`
	Rate     int           `yaml:"rate"`
}

type Config struct {
	Default Quota `yaml:"default"`
	// 供应商自己的配额，覆盖 Default
	Vendors map[string]Quota `yaml:"vendors"`
}

func (c Config) quota(vendor string) Quota {
	if q, ok := c.Vendors[vendor]; ok {
		return q
	}
	return c.Default
}
