// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/ecodeclub/ekit/retry"
)

// NewRetry 根据配置创建退避策略。最大次数由调用方根据 MaxAttempts 控制
func NewRetry(cfg domain.RetryConfig) (retry.Strategy, error) {
	maxRetries := int32(cfg.MaxAttempts - 1)
	// 根据 config 中的字段来检测
	switch cfg.Type {
	case "fixed":
		if cfg.FixedInterval == nil {
			return nil, fmt.Errorf("fixed retry 缺少 fixedInterval 配置")
		}
		return retry.NewFixedIntervalRetryStrategy(msToDuration(cfg.FixedInterval.Interval), maxRetries)
	case "exponential":
		if cfg.ExponentialBackoff == nil {
			return nil, fmt.Errorf("exponential retry 缺少 exponentialBackoff 配置")
		}
		return retry.NewExponentialBackoffRetryStrategy(
			msToDuration(cfg.ExponentialBackoff.InitialInterval),
			msToDuration(cfg.ExponentialBackoff.MaxInterval),
			maxRetries)
	default:
		return nil, fmt.Errorf("unknown retry type: %s", cfg.Type)
	}
}

// FullJitter 在 [0, d] 之间均匀取值
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ConfigHolder 保存当前生效的重试配置，支持热更新
type ConfigHolder struct {
	v atomic.Pointer[domain.RetryConfig]
}

func NewConfigHolder(cfg domain.RetryConfig) *ConfigHolder {
	h := &ConfigHolder{}
	h.Store(cfg)
	return h
}

func (h *ConfigHolder) Load() domain.RetryConfig {
	return *h.v.Load()
}

// Store 非法配置直接拒绝，保留旧配置
func (h *ConfigHolder) Store(cfg domain.RetryConfig) bool {
	if cfg.MaxAttempts <= 0 {
		return false
	}
	if _, err := NewRetry(cfg); err != nil {
		return false
	}
	h.v.Store(&cfg)
	return true
}
