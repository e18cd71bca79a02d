package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var _ provider.EmailProvider = (*SendGrid)(nil)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid 支持动态模板，也支持纯文本
type SendGrid struct {
	client    sendGridClient
	fromEmail string
	fromName  string
	sandbox   bool
}

func NewSendGrid(cfg domain.ProviderConfig) (*SendGrid, error) {
	if err := provider.RequireCredential(cfg, "apiKey", "fromEmail"); err != nil {
		return nil, err
	}
	return &SendGrid{
		client:    sendgrid.NewSendClient(cfg.Credential("apiKey")),
		fromEmail: cfg.Credential("fromEmail"),
		fromName:  cfg.Credential("fromName"),
		sandbox:   cfg.Credential("sandbox") == "true",
	}, nil
}

func (s *SendGrid) SendEmail(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	if msg.To == "" {
		return domain.SendResult{}, provider.Permanent(errors.New("邮箱为空"))
	}
	m := s.buildMail(msg)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return domain.SendResult{}, provider.Transient(err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return domain.SendResult{}, provider.FromHTTPStatus(resp.StatusCode,
			fmt.Errorf("sendgrid 响应 %d: %s", resp.StatusCode, resp.Body))
	}
	id := firstHeader(resp.Headers, "X-Message-Id")
	return domain.SendResult{
		Outcome:   domain.SendOutcomeDelivered,
		MessageID: id,
		Metadata:  map[string]string{"sg_x_message_id": id},
	}, nil
}

func (s *SendGrid) buildMail(msg domain.Message) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))
	if msg.TemplateID != "" {
		m.SetTemplateID(msg.TemplateID)
		for k, v := range msg.MergeTags {
			p.SetDynamicTemplateData(k, v)
		}
	} else {
		m.Subject = subject(msg)
		m.AddContent(mail.NewContent("text/plain", msg.Body))
	}
	m.AddPersonalizations(p)
	if s.sandbox {
		settings := mail.NewMailSettings()
		settings.SetSandboxMode(mail.NewSetting(true))
		m.SetMailSettings(settings)
	}
	return m
}

func subject(msg domain.Message) string {
	if msg.Subject != "" {
		return msg.Subject
	}
	return msg.Title
}

func firstHeader(headers map[string][]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

