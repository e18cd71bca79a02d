package domain

// RetryConfig 投递重试策略，可以通过 etcd 热更新
type RetryConfig struct {
	Type               string                    `json:"type" yaml:"type"` // fixed 或者 exponential
	FixedInterval      *FixedIntervalConfig      `json:"fixedInterval" yaml:"fixedInterval"`
	ExponentialBackoff *ExponentialBackoffConfig `json:"exponentialBackoff" yaml:"exponentialBackoff"`
	// 对供应商的最大调用次数，包括第一次
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
	// 是否在退避时间上叠加全抖动
	Jitter bool `json:"jitter" yaml:"jitter"`
}

type ExponentialBackoffConfig struct {
	// 初始重试间隔 单位ms
	InitialInterval int `json:"initialInterval" yaml:"initialInterval"`
	// 最大重试间隔 单位ms
	MaxInterval int `json:"maxInterval" yaml:"maxInterval"`
}

type FixedIntervalConfig struct {
	// 单位ms
	Interval int `json:"interval" yaml:"interval"`
}

const defaultMaxAttempts = 5

// DefaultRetryConfig 指数退避，最多调用 5 次
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Type: "exponential",
		ExponentialBackoff: &ExponentialBackoffConfig{
			InitialInterval: 1000,
			MaxInterval:     60000,
		},
		MaxAttempts: defaultMaxAttempts,
		Jitter:      true,
	}
}
