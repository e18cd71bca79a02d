package inbox

import (
	"context"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testioc.InitSQLiteDB()
	require.NoError(t, dao.InitTables(db))
	c, err := crypto.New("0123456789abcdef0123456789abcdef", "salt")
	require.NoError(t, err)
	recipientRepo := repository.NewRecipientRepository(dao.NewRecipientDAO(db), c)
	notificationRepo := repository.NewNotificationRepository(dao.NewNotificationDAO(db), dao.NewFanInDAO(db))

	alice, err := recipientRepo.Upsert(ctx, 1, domain.RecipientPayload{ExternalID: "alice"})
	require.NoError(t, err)
	bob, err := recipientRepo.Upsert(ctx, 1, domain.RecipientPayload{ExternalID: "bob"})
	require.NoError(t, err)
	for i, rid := range []int64{alice.ID, alice.ID, bob.ID} {
		_, _, err = notificationRepo.GetOrCreate(ctx, domain.Notification{
			ID:          int64(100 + i),
			OrgID:       1,
			BroadcastID: int64(10 + i),
			RecipientID: rid,
			Title:       "通知",
			Status:      domain.NotificationStatusProcessed,
		})
		require.NoError(t, err)
	}

	now := time.UnixMilli(1700000000000)
	svc := NewService(recipientRepo, notificationRepo).(*service)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Mark(ctx, 1, "alice", 100, domain.InboxActionRead))
	require.NoError(t, svc.Mark(ctx, 1, "alice", 100, domain.InboxActionSeen))
	require.NoError(t, svc.Mark(ctx, 1, "alice", 101, domain.InboxActionArchive))

	inbox, err := svc.List(ctx, 1, "alice", false, 0, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, int64(100), inbox[0].ID)
	assert.True(t, now.Equal(inbox[0].ReadAt))
	assert.True(t, now.Equal(inbox[0].SeenAt))
	assert.True(t, inbox[0].ClickedAt.IsZero())

	archived, err := svc.List(ctx, 1, "alice", true, 0, 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, int64(101), archived[0].ID)

	// 清空时间戳
	require.NoError(t, svc.Mark(ctx, 1, "alice", 100, domain.InboxActionUnread))
	inbox, err = svc.List(ctx, 1, "alice", false, 0, 10)
	require.NoError(t, err)
	assert.True(t, inbox[0].ReadAt.IsZero())

	testCases := []struct {
		name       string
		orgID      int64
		externalID string
		id         int64
		action     domain.InboxAction
		wantErr    error
	}{
		{name: "非法操作", orgID: 1, externalID: "alice", id: 100, action: "delete", wantErr: errs.ErrInvalidParameter},
		{name: "用户不存在", orgID: 1, externalID: "carol", id: 100, action: domain.InboxActionRead, wantErr: errs.ErrRecipientNotFound},
		{name: "别人的通知", orgID: 1, externalID: "alice", id: 102, action: domain.InboxActionRead, wantErr: errs.ErrNotificationNotFound},
		{name: "别的组织", orgID: 2, externalID: "alice", id: 100, action: domain.InboxActionRead, wantErr: errs.ErrRecipientNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Mark(ctx, tc.orgID, tc.externalID, tc.id, tc.action)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
