package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	"github.com/alibabacloud-go/tea/tea"
)

const aliyunOK = "OK"

var _ provider.SMSProvider = (*Aliyun)(nil)

type aliyunClient interface {
	SendSms(request *dysmsapi.SendSmsRequest) (*dysmsapi.SendSmsResponse, error)
}

// Aliyun 阿里云短信只支持模板
type Aliyun struct {
	client   aliyunClient
	signName string
}

func NewAliyun(cfg domain.ProviderConfig) (*Aliyun, error) {
	if err := provider.RequireCredential(cfg, "accessKeyId", "accessKeySecret", "signName"); err != nil {
		return nil, err
	}
	regionID := cfg.Credential("regionId")
	if regionID == "" {
		regionID = "cn-hangzhou"
	}
	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.Credential("accessKeyId")),
		AccessKeySecret: tea.String(cfg.Credential("accessKeySecret")),
		RegionId:        tea.String(regionID),
		Endpoint:        tea.String("dysmsapi.aliyuncs.com"),
	})
	if err != nil {
		return nil, provider.Permanent(err)
	}
	return &Aliyun{client: client, signName: cfg.Credential("signName")}, nil
}

func (a *Aliyun) SendSMS(_ context.Context, msg domain.Message) (domain.SendResult, error) {
	if msg.TemplateID == "" {
		return domain.SendResult{}, provider.Permanent(errors.New("阿里云短信必须指定模板"))
	}
	params := "{}"
	if len(msg.MergeTags) > 0 {
		raw, err := json.Marshal(msg.MergeTags)
		if err != nil {
			return domain.SendResult{}, provider.Permanent(err)
		}
		params = string(raw)
	}
	resp, err := a.client.SendSms(&dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(aliyunPhone(msg.To)),
		SignName:      tea.String(a.signName),
		TemplateCode:  tea.String(msg.TemplateID),
		TemplateParam: tea.String(params),
	})
	if err != nil {
		var sdkErr *tea.SDKError
		if errors.As(err, &sdkErr) && sdkErr.StatusCode != nil {
			return domain.SendResult{}, provider.FromHTTPStatus(tea.IntValue(sdkErr.StatusCode), err)
		}
		return domain.SendResult{}, provider.Transient(err)
	}
	if resp.Body == nil || resp.Body.Code == nil {
		return domain.SendResult{}, provider.Transient(errors.New("阿里云短信响应异常"))
	}
	code := tea.StringValue(resp.Body.Code)
	if code != aliyunOK {
		return domain.SendResult{}, aliyunError(code, tea.StringValue(resp.Body.Message))
	}
	return domain.SendResult{
		Outcome:   domain.SendOutcomeDelivered,
		MessageID: tea.StringValue(resp.Body.BizId),
		Metadata: map[string]string{
			"aliyun_biz_id":     tea.StringValue(resp.Body.BizId),
			"aliyun_request_id": tea.StringValue(resp.Body.RequestId),
		},
	}, nil
}

// aliyunError 流控和系统错误可以重试
func aliyunError(code, message string) error {
	err := fmt.Errorf("Code = %s, Message = %s", code, message)
	if strings.Contains(code, "LIMIT_CONTROL") || strings.HasPrefix(code, "isp.") {
		return provider.Transient(err)
	}
	return provider.Permanent(err)
}

// aliyunPhone 国内号码去掉 +86，国际号码去掉 +
func aliyunPhone(phone string) string {
	if strings.HasPrefix(phone, "+86") {
		return strings.TrimPrefix(phone, "+86")
	}
	return strings.TrimPrefix(phone, "+")
}
