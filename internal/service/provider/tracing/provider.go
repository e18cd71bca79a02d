package tracing

import (
	"context"
	"strconv"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ provider.Provider = (*Provider)(nil)

// Provider 为投递网关添加链路追踪的装饰器
type Provider struct {
	provider provider.Provider
	tracer   trace.Tracer
}

// NewProvider 创建一个新的带有链路追踪的网关
func NewProvider(p provider.Provider) *Provider {
	return &Provider{
		provider: p,
		tracer:   otel.Tracer("broadcast-platform/provider"),
	}
}

func (p *Provider) Send(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	ctx, span := p.tracer.Start(ctx, "Provider.Send",
		trace.WithAttributes(
			attribute.String("notification.id", strconv.FormatInt(msg.NotificationID, 10)),
			attribute.String("org.id", strconv.FormatInt(msg.OrgID, 10)),
			attribute.String("notification.channel", string(msg.Channel)),
			attribute.String("provider.vendor", string(msg.Provider.Vendor)),
		))
	defer span.End()

	result, err := p.provider.Send(ctx, msg)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("delivery.outcome", string(result.Outcome)),
			attribute.String("delivery.message_id", result.MessageID),
		)
	}

	return result, err
}
