package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"firebase.google.com/go/v4/messaging"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPNSClient struct {
	n    *apns2.Notification
	resp *apns2.Response
	err  error
}

func (f *fakeAPNSClient) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	f.n = n
	return f.resp, f.err
}

func TestAPNS_SendPush(t *testing.T) {
	t.Parallel()
	badge := 3
	msg := domain.Message{
		To:       "device-token",
		BundleID: "com.example.app",
		Title:    "标题",
		Subtitle: "副标题",
		Body:     "内容",
		Badge:    &badge,
		Sound:    "default",
		Data:     map[string]any{"orderId": "1"},
	}
	testCases := []struct {
		name    string
		resp    *apns2.Response
		err     error
		wantErr error
	}{
		{
			name: "发送成功",
			resp: &apns2.Response{StatusCode: http.StatusOK, ApnsID: "apns-1"},
		},
		{
			name:    "设备 token 失效",
			resp:    &apns2.Response{StatusCode: http.StatusGone, Reason: apns2.ReasonUnregistered},
			wantErr: errs.ErrProviderPermanent,
		},
		{
			name:    "限流",
			resp:    &apns2.Response{StatusCode: http.StatusTooManyRequests, Reason: apns2.ReasonTooManyRequests},
			wantErr: errs.ErrProviderTransient,
		},
		{
			name:    "证书错误",
			resp:    &apns2.Response{StatusCode: http.StatusForbidden, Reason: apns2.ReasonInvalidProviderToken},
			wantErr: errs.ErrProviderPermanent,
		},
		{
			name:    "网络错误",
			err:     errors.New("timeout"),
			wantErr: errs.ErrProviderTransient,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := &fakeAPNSClient{resp: tc.resp, err: tc.err}
			a := &APNS{client: client}
			res, err := a.SendPush(context.Background(), msg)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "apns-1", res.Metadata["apns_id"])
			assert.Equal(t, "com.example.app", client.n.Topic)
			assert.Equal(t, "device-token", client.n.DeviceToken)
			p, ok := client.n.Payload.(*payload.Payload)
			require.True(t, ok)
			raw, err := json.Marshal(p)
			require.NoError(t, err)
			var body struct {
				Aps struct {
					Alert struct {
						Title    string `json:"title"`
						Subtitle string `json:"subtitle"`
						Body     string `json:"body"`
					} `json:"alert"`
					Badge int    `json:"badge"`
					Sound string `json:"sound"`
				} `json:"aps"`
				OrderID string `json:"orderId"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, "标题", body.Aps.Alert.Title)
			assert.Equal(t, "副标题", body.Aps.Alert.Subtitle)
			assert.Equal(t, "内容", body.Aps.Alert.Body)
			assert.Equal(t, 3, body.Aps.Badge)
			assert.Equal(t, "default", body.Aps.Sound)
			assert.Equal(t, "1", body.OrderID)
		})
	}
}

type fakeFCMClient struct {
	msg *messaging.Message
	id  string
	err error
}

func (f *fakeFCMClient) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.msg = msg
	return f.id, f.err
}

func TestFCM_SendPush(t *testing.T) {
	t.Parallel()
	client := &fakeFCMClient{id: "projects/p/messages/1"}
	f := &FCM{client: client}
	res, err := f.SendPush(context.Background(), domain.Message{
		To:         "android-token",
		Title:      "标题",
		Body:       "内容",
		ActionLink: "https://example.com",
		Data:       map[string]any{"count": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/p/messages/1", res.Metadata["fcm_message_id"])
	assert.Equal(t, "android-token", client.msg.Token)
	assert.Equal(t, map[string]string{"count": "2", "action_link": "https://example.com"}, client.msg.Data)

	f.client = &fakeFCMClient{err: errors.New("unavailable")}
	_, err = f.SendPush(context.Background(), domain.Message{To: "android-token"})
	assert.ErrorIs(t, err, errs.ErrProviderTransient)
}
