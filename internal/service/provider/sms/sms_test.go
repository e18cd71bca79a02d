package sms

import (
	"context"
	"errors"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	tcsms "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/sms/v20210111"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestTemplateParamSet(t *testing.T) {
	t.Parallel()
	res := TemplateParamSet(map[string]string{
		"10":   "j",
		"2":    "b",
		"1":    "a",
		"name": "n",
		"code": "c",
	})
	assert.Equal(t, []string{"a", "b", "j", "c", "n"}, res)
	assert.Empty(t, TemplateParamSet(nil))
}

func TestAliyunPhone(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "13800000000", aliyunPhone("+8613800000000"))
	assert.Equal(t, "6591234567", aliyunPhone("+6591234567"))
	assert.Equal(t, "13800000000", aliyunPhone("13800000000"))
}

type fakeAliyunClient struct {
	req  *dysmsapi.SendSmsRequest
	resp *dysmsapi.SendSmsResponse
	err  error
}

func (f *fakeAliyunClient) SendSms(req *dysmsapi.SendSmsRequest) (*dysmsapi.SendSmsResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestAliyun_SendSMS(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		msg     domain.Message
		resp    *dysmsapi.SendSmsResponse
		err     error
		wantErr error
		wantID  string
	}{
		{
			name: "发送成功",
			msg:  domain.Message{To: "+8613800000000", TemplateID: "SMS_1", MergeTags: map[string]string{"code": "1234"}},
			resp: &dysmsapi.SendSmsResponse{Body: &dysmsapi.SendSmsResponseBody{
				Code: tea.String("OK"), BizId: tea.String("biz-1"), RequestId: tea.String("req-1"),
			}},
			wantID: "biz-1",
		},
		{
			name:    "没有模板",
			msg:     domain.Message{To: "+8613800000000", Body: "hello"},
			wantErr: errs.ErrProviderPermanent,
		},
		{
			name: "流控",
			msg:  domain.Message{To: "+8613800000000", TemplateID: "SMS_1"},
			resp: &dysmsapi.SendSmsResponse{Body: &dysmsapi.SendSmsResponseBody{
				Code: tea.String("isv.BUSINESS_LIMIT_CONTROL"), Message: tea.String("触发流控"),
			}},
			wantErr: errs.ErrProviderTransient,
		},
		{
			name: "手机号错误",
			msg:  domain.Message{To: "+8613800000000", TemplateID: "SMS_1"},
			resp: &dysmsapi.SendSmsResponse{Body: &dysmsapi.SendSmsResponseBody{
				Code: tea.String("isv.MOBILE_NUMBER_ILLEGAL"), Message: tea.String("非法手机号"),
			}},
			wantErr: errs.ErrProviderPermanent,
		},
		{
			name:    "网络错误",
			msg:     domain.Message{To: "+8613800000000", TemplateID: "SMS_1"},
			err:     errors.New("connection reset"),
			wantErr: errs.ErrProviderTransient,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := &fakeAliyunClient{resp: tc.resp, err: tc.err}
			a := &Aliyun{client: client, signName: "签名"}
			res, err := a.SendSMS(context.Background(), tc.msg)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.SendOutcomeDelivered, res.Outcome)
			assert.Equal(t, tc.wantID, res.MessageID)
			assert.Equal(t, "13800000000", tea.StringValue(client.req.PhoneNumbers))
			assert.Equal(t, `{"code":"1234"}`, tea.StringValue(client.req.TemplateParam))
		})
	}
}

type fakeTencentClient struct {
	req  *tcsms.SendSmsRequest
	resp *tcsms.SendSmsResponse
	err  error
}

func (f *fakeTencentClient) SendSmsWithContext(_ context.Context, req *tcsms.SendSmsRequest) (*tcsms.SendSmsResponse, error) {
	f.req = req
	return f.resp, f.err
}

func tencentResponse(code string) *tcsms.SendSmsResponse {
	resp := tcsms.NewSendSmsResponse()
	resp.Response = &tcsms.SendSmsResponseParams{
		RequestId: common.StringPtr("req-1"),
		SendStatusSet: []*tcsms.SendStatus{{
			Code:     common.StringPtr(code),
			Message:  common.StringPtr("message"),
			SerialNo: common.StringPtr("serial-1"),
		}},
	}
	return resp
}

func TestTencent_SendSMS(t *testing.T) {
	t.Parallel()
	msg := domain.Message{To: "+8613800000000", TemplateID: "1001", MergeTags: map[string]string{"2": "b", "1": "a"}}

	client := &fakeTencentClient{resp: tencentResponse("Ok")}
	tc := &Tencent{client: client, appID: "1400", signName: "签名"}
	res, err := tc.SendSMS(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "serial-1", res.MessageID)
	assert.Equal(t, "req-1", res.Metadata["tencent_request_id"])
	assert.Equal(t, []string{"a", "b"}, common.StringValues(client.req.TemplateParamSet))

	tc.client = &fakeTencentClient{resp: tencentResponse("LimitExceeded.PhoneNumberDailyLimit")}
	_, err = tc.SendSMS(context.Background(), msg)
	assert.ErrorIs(t, err, errs.ErrProviderTransient)

	tc.client = &fakeTencentClient{resp: tencentResponse("FailedOperation.TemplateIncorrectOrUnapproved")}
	_, err = tc.SendSMS(context.Background(), msg)
	assert.ErrorIs(t, err, errs.ErrProviderPermanent)

	tc.client = &fakeTencentClient{err: tcerr.NewTencentCloudSDKError("AuthFailure.SecretIdNotFound", "bad secret", "req-2")}
	_, err = tc.SendSMS(context.Background(), msg)
	assert.ErrorIs(t, err, errs.ErrProviderPermanent)

	// 响应里缺失的字段按空字符串处理
	resp := tencentResponse("Ok")
	resp.Response.RequestId = nil
	resp.Response.SendStatusSet[0].SerialNo = nil
	tc.client = &fakeTencentClient{resp: resp}
	res, err = tc.SendSMS(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, res.MessageID)
	assert.Empty(t, res.Metadata["tencent_request_id"])

	resp = tencentResponse("")
	resp.Response.SendStatusSet[0].Code = nil
	tc.client = &fakeTencentClient{resp: resp}
	_, err = tc.SendSMS(context.Background(), msg)
	assert.ErrorIs(t, err, errs.ErrProviderPermanent)
}

type fakeTwilioClient struct {
	params *twapi.CreateMessageParams
	resp   *twapi.ApiV2010Message
	err    error
}

func (f *fakeTwilioClient) CreateMessage(params *twapi.CreateMessageParams) (*twapi.ApiV2010Message, error) {
	f.params = params
	return f.resp, f.err
}

func TestTwilio_SendSMS(t *testing.T) {
	t.Parallel()
	sid, status := "SM1", "queued"
	client := &fakeTwilioClient{resp: &twapi.ApiV2010Message{Sid: &sid, Status: &status}}
	tw := &Twilio{client: client, from: "+15550000000"}
	res, err := tw.SendSMS(context.Background(), domain.Message{To: "+15551111111", Body: "标题\n内容"})
	require.NoError(t, err)
	assert.Equal(t, domain.SendOutcomeDelivered, res.Outcome)
	assert.Equal(t, "SM1", res.Metadata["twilio_message_sid"])
	assert.Equal(t, "+15550000000", *client.params.From)
	assert.Equal(t, "标题\n内容", *client.params.Body)

	failed := "undelivered"
	tw.client = &fakeTwilioClient{resp: &twapi.ApiV2010Message{Sid: &sid, Status: &failed}}
	res, err = tw.SendSMS(context.Background(), domain.Message{To: "+15551111111", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.SendOutcomeAttempted, res.Outcome)
}

func TestTwilioOutcome(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.SendOutcomeAttempted, TwilioOutcome("failed"))
	assert.Equal(t, domain.SendOutcomeAttempted, TwilioOutcome("canceled"))
	assert.Equal(t, domain.SendOutcomeDelivered, TwilioOutcome("sent"))
	assert.Equal(t, domain.SendOutcomeDelivered, TwilioOutcome("accepted"))
}
