package gateway

import (
	"context"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
)

var _ provider.Provider = (*Gateway)(nil)

// Gateway 按渠道分发到具体供应商
type Gateway struct {
	registry *Registry
	inApp    provider.InAppPublisher
}

func NewGateway(registry *Registry, inApp provider.InAppPublisher) *Gateway {
	return &Gateway{registry: registry, inApp: inApp}
}

func (g *Gateway) Send(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	if msg.Channel == domain.ChannelWeb {
		return g.inApp.Publish(ctx, msg)
	}
	client, err := g.registry.Get(ctx, msg.Provider)
	if err != nil {
		return domain.SendResult{}, err
	}
	switch msg.Channel {
	case domain.ChannelSMS:
		if p, ok := client.(provider.SMSProvider); ok {
			return p.SendSMS(ctx, msg)
		}
	case domain.ChannelEmail:
		if p, ok := client.(provider.EmailProvider); ok {
			return p.SendEmail(ctx, msg)
		}
	case domain.ChannelPush:
		if p, ok := client.(provider.PushProvider); ok {
			return p.SendPush(ctx, msg)
		}
	}
	return domain.SendResult{}, provider.Permanent(
		fmt.Errorf("供应商 %s 不支持渠道 %s", msg.Provider.Vendor, msg.Channel))
}
