package metrics

import (
	"context"
	"fmt"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	providermocks "gitee.com/flycash/broadcast-platform/internal/service/provider/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestProvider_Send(t *testing.T) {
	testCases := []struct {
		name       string
		msg        domain.Message
		result     domain.SendResult
		err        error
		wantVendor string
		wantStatus string
	}{
		{
			name:       "发送成功",
			msg:        domain.Message{Channel: domain.ChannelSMS, Provider: domain.ProviderConfig{Vendor: domain.VendorTwilio}},
			result:     domain.SendResult{Outcome: domain.SendOutcomeDelivered},
			wantVendor: "TWILIO",
			wantStatus: "delivered",
		},
		{
			name:       "站内信",
			msg:        domain.Message{Channel: domain.ChannelWeb},
			result:     domain.SendResult{Outcome: domain.SendOutcomeDelivered},
			wantVendor: "REDIS",
			wantStatus: "delivered",
		},
		{
			name:       "永久错误",
			msg:        domain.Message{Channel: domain.ChannelSMS, Provider: domain.ProviderConfig{Vendor: domain.VendorTwilio}},
			err:        fmt.Errorf("%w: 号码无效", errs.ErrProviderPermanent),
			wantVendor: "TWILIO",
			wantStatus: "permanent_error",
		},
		{
			name:       "临时错误",
			msg:        domain.Message{Channel: domain.ChannelSMS, Provider: domain.ProviderConfig{Vendor: domain.VendorTwilio}},
			err:        fmt.Errorf("%w: 503", errs.ErrProviderTransient),
			wantVendor: "TWILIO",
			wantStatus: "transient_error",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			mockProvider := providermocks.NewMockProvider(ctrl)
			mockProvider.EXPECT().Send(gomock.Any(), tc.msg).Return(tc.result, tc.err)

			p := NewProvider(mockProvider)
			channel := string(tc.msg.Channel)
			total := testutil.ToFloat64(p.sendCounter.WithLabelValues(tc.wantVendor, channel))
			status := testutil.ToFloat64(p.sendStatusCounter.WithLabelValues(tc.wantVendor, channel, tc.wantStatus))

			result, err := p.Send(context.Background(), tc.msg)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.result, result)
			assert.Equal(t, total+1, testutil.ToFloat64(p.sendCounter.WithLabelValues(tc.wantVendor, channel)))
			assert.Equal(t, status+1, testutil.ToFloat64(p.sendStatusCounter.WithLabelValues(tc.wantVendor, channel, tc.wantStatus)))
		})
	}
}
