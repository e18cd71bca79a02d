package push

import (
	"context"
	"errors"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

var _ provider.PushProvider = (*APNS)(nil)

type apnsClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNS 使用 p8 key 做 token 认证
type APNS struct {
	client apnsClient
}

func NewAPNS(cfg domain.ProviderConfig) (*APNS, error) {
	if err := provider.RequireCredential(cfg, "keyId", "teamId", "authKey"); err != nil {
		return nil, err
	}
	key, err := token.AuthKeyFromBytes([]byte(cfg.Credential("authKey")))
	if err != nil {
		return nil, provider.Permanent(fmt.Errorf("APNS authKey 解析失败 %w", err))
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: key,
		KeyID:   cfg.Credential("keyId"),
		TeamID:  cfg.Credential("teamId"),
	})
	if cfg.Credential("production") == "true" {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &APNS{client: client}, nil
}

func (a *APNS) SendPush(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	n := &apns2.Notification{
		DeviceToken: msg.To,
		Topic:       msg.BundleID,
		Payload:     apnsPayload(msg),
	}
	resp, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		return domain.SendResult{}, provider.Transient(err)
	}
	if !resp.Sent() {
		return domain.SendResult{}, apnsError(resp)
	}
	return domain.SendResult{
		Outcome:   domain.SendOutcomeDelivered,
		MessageID: resp.ApnsID,
		Metadata:  map[string]string{"apns_id": resp.ApnsID},
	}, nil
}

func apnsPayload(msg domain.Message) *payload.Payload {
	p := payload.NewPayload().AlertTitle(msg.Title).AlertBody(msg.Body)
	if msg.Subtitle != "" {
		p = p.AlertSubtitle(msg.Subtitle)
	}
	if msg.Badge != nil {
		p = p.Badge(*msg.Badge)
	}
	if msg.Sound != "" {
		p = p.Sound(msg.Sound)
	}
	if msg.ActionLink != "" {
		p = p.Custom("action_link", msg.ActionLink)
	}
	for k, v := range msg.Data {
		p = p.Custom(k, v)
	}
	return p
}

func apnsError(resp *apns2.Response) error {
	err := fmt.Errorf("APNS 响应 %d: %s", resp.StatusCode, resp.Reason)
	switch resp.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return provider.Permanent(err)
	case apns2.ReasonTooManyRequests, apns2.ReasonServiceUnavailable,
		apns2.ReasonInternalServerError, apns2.ReasonShutdown:
		return provider.Transient(err)
	}
	if resp.StatusCode == 0 {
		return provider.Transient(errors.New(resp.Reason))
	}
	return provider.FromHTTPStatus(resp.StatusCode, err)
}
