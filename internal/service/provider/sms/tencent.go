package sms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tcsms "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/sms/v20210111"
)

const tencentOK = "Ok"

var _ provider.SMSProvider = (*Tencent)(nil)

type tencentClient interface {
	SendSmsWithContext(ctx context.Context, request *tcsms.SendSmsRequest) (*tcsms.SendSmsResponse, error)
}

// Tencent 腾讯云短信只支持模板，参数按顺序填充
type Tencent struct {
	client   tencentClient
	appID    string
	signName string
}

func NewTencent(cfg domain.ProviderConfig) (*Tencent, error) {
	if err := provider.RequireCredential(cfg, "secretId", "secretKey", "appId", "signName"); err != nil {
		return nil, err
	}
	region := cfg.Credential("region")
	if region == "" {
		region = "ap-guangzhou"
	}
	client, err := tcsms.NewClient(common.NewCredential(cfg.Credential("secretId"), cfg.Credential("secretKey")),
		region, profile.NewClientProfile())
	if err != nil {
		return nil, provider.Permanent(err)
	}
	return &Tencent{client: client, appID: cfg.Credential("appId"), signName: cfg.Credential("signName")}, nil
}

func (t *Tencent) SendSMS(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	if msg.TemplateID == "" {
		return domain.SendResult{}, provider.Permanent(errors.New("腾讯云短信必须指定模板"))
	}
	req := tcsms.NewSendSmsRequest()
	req.SmsSdkAppId = common.StringPtr(t.appID)
	req.SignName = common.StringPtr(t.signName)
	req.TemplateId = common.StringPtr(msg.TemplateID)
	req.TemplateParamSet = common.StringPtrs(TemplateParamSet(msg.MergeTags))
	req.PhoneNumberSet = common.StringPtrs([]string{msg.To})

	resp, err := t.client.SendSmsWithContext(ctx, req)
	if err != nil {
		var sdkErr *tcerr.TencentCloudSDKError
		if errors.As(err, &sdkErr) {
			return domain.SendResult{}, tencentError(sdkErr.GetCode(), sdkErr.GetMessage())
		}
		return domain.SendResult{}, provider.Transient(err)
	}
	if resp.Response == nil || len(resp.Response.SendStatusSet) == 0 {
		return domain.SendResult{}, provider.Transient(errors.New("腾讯云短信响应异常"))
	}
	status := resp.Response.SendStatusSet[0]
	code := stringValue(status.Code)
	if code != tencentOK {
		return domain.SendResult{}, tencentError(code, stringValue(status.Message))
	}
	return domain.SendResult{
		Outcome:   domain.SendOutcomeDelivered,
		MessageID: stringValue(status.SerialNo),
		Metadata: map[string]string{
			"tencent_serial_no":  stringValue(status.SerialNo),
			"tencent_request_id": stringValue(resp.Response.RequestId),
		},
	}, nil
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func tencentError(code, message string) error {
	err := fmt.Errorf("Code = %s, Message = %s", code, message)
	if strings.HasPrefix(code, "LimitExceeded") ||
		strings.HasPrefix(code, "InternalError") ||
		strings.HasPrefix(code, "ClientError.NetworkError") {
		return provider.Transient(err)
	}
	return provider.Permanent(err)
}

// TemplateParamSet 腾讯云模板变量是 {1} {2} 这种位置参数，
// 合并标签按数字键排序，非数字键排在后面按字典序
func TemplateParamSet(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	res := make([]string, 0, len(keys))
	for _, k := range keys {
		res = append(res, tags[k])
	}
	return res
}
