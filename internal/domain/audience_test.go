package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDatetime(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		value  string
		want   string
		wantOK bool
	}{
		{name: "日期", value: "2024-06-01", want: "2024-06-01T00:00:00Z", wantOK: true},
		{name: "带时区", value: "2024-06-01T02:00:00+08:00", want: "2024-05-31T18:00:00Z", wantOK: true},
		{name: "UTC 带毫秒", value: " 2024-06-01T02:00:00.123Z ", want: "2024-06-01T02:00:00Z", wantOK: true},
		{name: "没有时区", value: "2024-06-01 08:30:00", want: "2024-06-01T08:30:00Z", wantOK: true},
		{name: "格式不支持", value: "2024/06/01"},
		{name: "不是时间", value: "gold"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeDatetime(tc.value)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDatetimeFields(t *testing.T) {
	t.Parallel()
	got := DatetimeFields(map[string]any{
		"signup": "2024-06-01T02:00:00+08:00",
		"plan":   map[string]any{"tier": "gold", "renewal": "2025-01-01"},
		"age":    30,
		"tags":   []any{"2024-06-01"},
	})
	assert.Equal(t, map[string]any{
		"signup": "2024-05-31T18:00:00Z",
		"plan":   map[string]any{"renewal": "2025-01-01T00:00:00Z"},
	}, got)
}
