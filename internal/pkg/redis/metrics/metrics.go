package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Hook 统计 redis 命令。限流脚本、站内信 PUBLISH、配置缓存失效通知都走同一个客户端
type Hook struct {
	commandCounter  *prometheus.CounterVec
	commandDuration *prometheus.SummaryVec
	pipelineCounter *prometheus.CounterVec
}

func NewMetricsHook(reg prometheus.Registerer) *Hook {
	h := &Hook{
		commandCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broadcast",
				Name:      "redis_commands_total",
				Help:      "Total number of Redis commands executed",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  "broadcast",
				Name:       "redis_command_duration_seconds",
				Help:       "Redis command execution time in seconds",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"command"},
		),
		pipelineCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "broadcast",
				Name:      "redis_pipelines_total",
				Help:      "Total number of Redis pipeline executions",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(h.commandCounter, h.commandDuration, h.pipelineCounter)
	return h
}

func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.commandDuration.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
		h.commandCounter.WithLabelValues(cmd.Name(), status(err)).Inc()
		return err
	}
}

func (h *Hook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		res := status(err)
		for _, cmd := range cmds {
			if status(cmd.Err()) == statusError {
				res = statusError
				break
			}
		}
		h.pipelineCounter.WithLabelValues(res).Inc()
		return err
	}
}

func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// redis.Nil 不算错误
func status(err error) string {
	if err != nil && !errors.Is(err, redis.Nil) {
		return statusError
	}
	return statusSuccess
}

// WithMetrics 为客户端添加指标收集
func WithMetrics(client *redis.Client, reg prometheus.Registerer) *redis.Client {
	client.AddHook(NewMetricsHook(reg))
	return client
}

var _ redis.Hook = (*Hook)(nil)
