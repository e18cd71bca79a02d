package sms

import (
	"context"
	"errors"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var _ provider.SMSProvider = (*Twilio)(nil)

type twilioClient interface {
	CreateMessage(params *twapi.CreateMessageParams) (*twapi.ApiV2010Message, error)
}

// Twilio 自由文本短信
type Twilio struct {
	client              twilioClient
	from                string
	messagingServiceSid string
}

func NewTwilio(cfg domain.ProviderConfig) (*Twilio, error) {
	if err := provider.RequireCredential(cfg, "accountSid", "authToken"); err != nil {
		return nil, err
	}
	if cfg.Credential("from") == "" && cfg.Credential("messagingServiceSid") == "" {
		return nil, provider.Permanent(errors.New("Twilio 需要 from 或者 messagingServiceSid"))
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.Credential("accountSid"),
		Password: cfg.Credential("authToken"),
	})
	return &Twilio{
		client:              client.Api,
		from:                cfg.Credential("from"),
		messagingServiceSid: cfg.Credential("messagingServiceSid"),
	}, nil
}

func (t *Twilio) SendSMS(_ context.Context, msg domain.Message) (domain.SendResult, error) {
	params := &twapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetBody(msg.Body)
	if t.messagingServiceSid != "" {
		params.SetMessagingServiceSid(t.messagingServiceSid)
	} else {
		params.SetFrom(t.from)
	}
	resp, err := t.client.CreateMessage(params)
	if err != nil {
		var restErr *twclient.TwilioRestError
		if errors.As(err, &restErr) {
			return domain.SendResult{}, provider.FromHTTPStatus(restErr.Status, err)
		}
		return domain.SendResult{}, provider.Transient(err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	status := ""
	if resp.Status != nil {
		status = *resp.Status
	}
	return domain.SendResult{
		Outcome:   TwilioOutcome(status),
		MessageID: sid,
		Reason:    twilioReason(status),
		Metadata:  map[string]string{"twilio_message_sid": sid},
	}, nil
}

// TwilioOutcome 请求被接受但是状态是失败的，记为 attempted
func TwilioOutcome(status string) domain.SendOutcome {
	switch status {
	case "failed", "undelivered", "canceled":
		return domain.SendOutcomeAttempted
	default:
		return domain.SendOutcomeDelivered
	}
}

func twilioReason(status string) string {
	if TwilioOutcome(status) == domain.SendOutcomeAttempted {
		return "twilio status " + status
	}
	return ""
}
