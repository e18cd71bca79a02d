// Package metrics 为投递网关添加指标收集的装饰器
package metrics

import (
	"context"
	"errors"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/prometheus/client_golang/prometheus"
)

var _ provider.Provider = (*Provider)(nil)

// Provider 为投递网关添加指标收集的装饰器
type Provider struct {
	provider            provider.Provider
	sendDurationSummary *prometheus.SummaryVec
	sendCounter         *prometheus.CounterVec
	sendStatusCounter   *prometheus.CounterVec
}

// NewProvider 创建一个新的带有指标收集的网关
func NewProvider(p provider.Provider) *Provider {
	sendDurationSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "provider_send_duration_seconds",
			Help:       "供应商发送通知耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"vendor", "channel", "status"},
	)

	sendCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_send_total",
			Help: "供应商发送通知总数",
		},
		[]string{"vendor", "channel"},
	)

	sendStatusCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_send_status_total",
			Help: "供应商发送通知状态统计",
		},
		[]string{"vendor", "channel", "status"},
	)

	return &Provider{
		provider:            p,
		sendDurationSummary: register(sendDurationSummary),
		sendCounter:         register(sendCounter),
		sendStatusCounter:   register(sendStatusCounter),
	}
}

// register 重复注册时复用已经注册的指标
func register[T prometheus.Collector](c T) T {
	err := prometheus.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	return c
}

// Send 发送通知并记录指标
func (p *Provider) Send(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	startTime := time.Now()
	vendor := string(msg.Provider.Vendor)
	if msg.Channel == domain.ChannelWeb {
		vendor = "REDIS"
	}

	p.sendCounter.WithLabelValues(vendor, string(msg.Channel)).Inc()

	result, err := p.provider.Send(ctx, msg)

	duration := time.Since(startTime).Seconds()
	status := statusLabel(result, err)
	p.sendStatusCounter.WithLabelValues(vendor, string(msg.Channel), status).Inc()
	p.sendDurationSummary.WithLabelValues(vendor, string(msg.Channel), status).Observe(duration)

	return result, err
}

func statusLabel(result domain.SendResult, err error) string {
	switch {
	case err == nil:
		return string(result.Outcome)
	case errors.Is(err, errs.ErrProviderPermanent):
		return "permanent_error"
	default:
		return "transient_error"
	}
}
