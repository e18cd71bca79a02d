package provider

import (
	"errors"
	"net/http"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		code      int
		transient bool
	}{
		{name: "限流", code: http.StatusTooManyRequests, transient: true},
		{name: "服务端错误", code: http.StatusBadGateway, transient: true},
		{name: "参数错误", code: http.StatusBadRequest, transient: false},
		{name: "认证失败", code: http.StatusUnauthorized, transient: false},
		{name: "没有响应", code: 0, transient: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := FromHTTPStatus(tc.code, errors.New("mock error"))
			assert.Equal(t, tc.transient, errors.Is(err, errs.ErrProviderTransient))
			assert.Equal(t, !tc.transient, errors.Is(err, errs.ErrProviderPermanent))
		})
	}
}

func TestRequireCredential(t *testing.T) {
	t.Parallel()
	cfg := domain.ProviderConfig{
		Vendor:      domain.VendorTwilio,
		Credentials: map[string]string{"accountSid": "AC1"},
	}
	assert.NoError(t, RequireCredential(cfg, "accountSid"))
	err := RequireCredential(cfg, "accountSid", "authToken")
	assert.ErrorIs(t, err, errs.ErrProviderPermanent)
	assert.Contains(t, err.Error(), "authToken")
}
