package router

import (
	"context"
	"testing"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Route(t *testing.T) {
	t.Parallel()
	db := testioc.InitSQLiteDB()
	require.NoError(t, dao.InitTables(db))
	prefRepo := repository.NewPreferenceRepository(dao.NewPreferenceDAO(db))
	require.NoError(t, prefRepo.SavePreference(context.Background(), domain.Preference{
		OrgID: 1, RecipientID: 10, Category: "marketing",
		Channels: map[domain.Channel]bool{domain.ChannelEmail: true, domain.ChannelSMS: false},
	}))
	r := NewRouter(prefRepo)

	all := map[domain.Channel]domain.ChannelRequest{
		domain.ChannelWeb:   {},
		domain.ChannelSMS:   {},
		domain.ChannelEmail: {},
		domain.ChannelPush:  {},
	}
	full := domain.Recipient{
		ID: 10, Email: "a@example.com", Phone: "+8613800000000",
		Devices: []domain.Device{
			{ID: 1, Platform: domain.PlatformIOS},
			{ID: 2, Platform: domain.PlatformAndroid},
		},
	}
	n := domain.Notification{ID: 100}

	testCases := []struct {
		name        string
		broadcast   domain.Broadcast
		recipient   domain.Recipient
		wantTasks   []string
		wantNotSent map[domain.Channel]string
	}{
		{
			name:      "没有分类，全部渠道",
			broadcast: domain.Broadcast{ID: 5, OrgID: 1, Channels: all},
			recipient: full,
			wantTasks: []string{"100:EMAIL:", "100:PUSH:IOS:1", "100:PUSH:ANDROID:2", "100:SMS:", "100:WEB:"},
		},
		{
			name:      "偏好关闭和缺失的渠道",
			broadcast: domain.Broadcast{ID: 5, OrgID: 1, Category: "marketing", Channels: all},
			recipient: full,
			wantTasks: []string{"100:EMAIL:"},
			wantNotSent: map[domain.Channel]string{
				domain.ChannelPush: domain.ReasonUserDisabled,
				domain.ChannelSMS:  domain.ReasonUserDisabled,
				domain.ChannelWeb:  domain.ReasonUserDisabled,
			},
		},
		{
			name:      "没有设置偏好的分类",
			broadcast: domain.Broadcast{ID: 5, OrgID: 1, Category: "billing", Channels: all},
			recipient: domain.Recipient{ID: 10},
			wantTasks: []string{"100:WEB:"},
			wantNotSent: map[domain.Channel]string{
				domain.ChannelEmail: domain.ReasonNoEmail,
				domain.ChannelPush:  domain.ReasonNoDevice,
				domain.ChannelSMS:   domain.ReasonNoPhone,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			plan, err := r.Route(context.Background(), tc.broadcast, n, tc.recipient)
			require.NoError(t, err)
			keys := make([]string, 0, len(plan.Tasks))
			for _, task := range plan.Tasks {
				assert.Equal(t, int64(5), task.BroadcastID)
				assert.Equal(t, tc.recipient.ID, task.RecipientID)
				keys = append(keys, task.Key())
			}
			assert.Equal(t, tc.wantTasks, keys)
			assert.Len(t, plan.NotSent, len(tc.wantNotSent))
			for _, d := range plan.NotSent {
				assert.Equal(t, domain.DeliveryStatusNotSent, d.Status)
				assert.True(t, d.Counted)
				assert.Equal(t, tc.wantNotSent[d.Channel], d.ErrorReason)
			}
		})
	}
}
