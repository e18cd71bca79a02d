package provider

import (
	"context"
	"fmt"
	"net/http"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
)

// Provider 投递网关，按渠道把消息交给具体的供应商
//
//go:generate mockgen -source=./types.go -destination=./mocks/provider.mock.go -package=providermocks -typed Provider
type Provider interface {
	Send(ctx context.Context, msg domain.Message) (domain.SendResult, error)
}

type SMSProvider interface {
	SendSMS(ctx context.Context, msg domain.Message) (domain.SendResult, error)
}

type EmailProvider interface {
	SendEmail(ctx context.Context, msg domain.Message) (domain.SendResult, error)
}

type PushProvider interface {
	SendPush(ctx context.Context, msg domain.Message) (domain.SendResult, error)
}

// InAppPublisher 站内信的实时推送
type InAppPublisher interface {
	Publish(ctx context.Context, msg domain.Message) (domain.SendResult, error)
}

// Transient 可以重试的错误
func Transient(err error) error {
	return fmt.Errorf("%w: %w", errs.ErrProviderTransient, err)
}

// Permanent 重试没有意义的错误
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errs.ErrProviderPermanent, err)
}

// FromHTTPStatus 429 和 5xx 可以重试，其余 4xx 不可以
func FromHTTPStatus(code int, err error) error {
	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return Transient(err)
	}
	if code >= http.StatusBadRequest {
		return Permanent(err)
	}
	// 没有拿到响应，一般是网络问题
	return Transient(err)
}

// RequireCredential 缺少凭证属于配置错误
func RequireCredential(cfg domain.ProviderConfig, keys ...string) error {
	for _, k := range keys {
		if cfg.Credential(k) == "" {
			return Permanent(fmt.Errorf("供应商 %s 缺少凭证 %s", cfg.Vendor, k))
		}
	}
	return nil
}
