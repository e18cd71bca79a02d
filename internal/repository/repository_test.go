package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	ca "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

func TestRepositorySuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RepositoryTestSuite))
}

type RepositoryTestSuite struct {
	suite.Suite
	db     *gorm.DB
	crypto *crypto.Crypto
	cache  *memoryProviderCache
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = testioc.InitSQLiteDB()
	s.Require().NoError(dao.InitTables(s.db))
	c, err := crypto.New("0123456789abcdef0123456789abcdef", "salt")
	s.Require().NoError(err)
	s.crypto = c
	s.cache = &memoryProviderCache{c: ca.New(time.Minute, time.Minute)}
}

func (s *RepositoryTestSuite) TestRecipientEncrypted() {
	t := s.T()
	ctx := context.Background()
	repo := NewRecipientRepository(dao.NewRecipientDAO(s.db), s.crypto)

	r, err := repo.Upsert(ctx, 1, domain.RecipientPayload{
		ExternalID: "u1",
		Email:      "Alice@Example.com",
		Phone:      "+8613800000000",
		FirstName:  "Alice",
		Metadata:   map[string]any{"plan": "pro"},
		Devices:    []domain.DevicePayload{{Token: "tok", Platform: domain.PlatformIOS}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice@Example.com", r.Email)
	assert.Equal(t, "pro", r.Metadata["plan"])
	require.Len(t, r.Devices, 1)
	assert.Equal(t, "tok", r.Devices[0].Token)

	// 库里是密文
	var entity dao.Recipient
	require.NoError(t, s.db.Where("id = ?", r.ID).First(&entity).Error)
	assert.NotEqual(t, "Alice@Example.com", entity.Email)
	assert.NotEqual(t, "+8613800000000", entity.Phone)

	// 邮箱查找不区分大小写
	found, err := repo.FindByEmail(ctx, 1, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)
	assert.Equal(t, "Alice", found.FirstName)

	_, err = repo.FindByEmail(ctx, 1, "bob@example.com")
	assert.ErrorIs(t, err, errs.ErrRecipientNotFound)
	_, err = repo.FindByID(ctx, 2, r.ID)
	assert.ErrorIs(t, err, errs.ErrRecipientNotFound)
}

func (s *RepositoryTestSuite) TestProviderCached() {
	t := s.T()
	ctx := context.Background()
	repo := NewProviderRepository(dao.NewProviderDAO(s.db), s.cache, s.crypto)

	_, err := repo.Create(ctx, domain.ProviderConfig{
		OrgID:       1,
		Type:        domain.ProviderTypeSMS,
		Vendor:      domain.VendorTwilio,
		Enabled:     true,
		Credentials: map[string]string{"accountSid": "AC1", "authToken": "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.cache.invalidated.Load())

	cfgs, err := repo.FindEnabled(ctx, 1, domain.ProviderTypeSMS)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "secret", cfgs[0].Credential("authToken"))

	// 第二次命中缓存，即使数据库被改掉
	require.NoError(t, s.db.Model(&dao.ProviderConfig{}).Where("org_id = ?", 1).Update("enabled", false).Error)
	cfgs, err = repo.FindEnabled(ctx, 1, domain.ProviderTypeSMS)
	require.NoError(t, err)
	assert.Len(t, cfgs, 1)

	require.NoError(t, s.cache.Invalidate(ctx, 1))
	cfgs, err = repo.FindEnabled(ctx, 1, domain.ProviderTypeSMS)
	require.NoError(t, err)
	assert.Empty(t, cfgs)

	_, err = repo.FindByVendor(ctx, 1, domain.VendorSendGrid)
	assert.ErrorIs(t, err, errs.ErrProviderNotConfigured)
}

func (s *RepositoryTestSuite) TestBroadcastRoundTrip() {
	t := s.T()
	ctx := context.Background()
	repo := NewBroadcastRepository(dao.NewBroadcastDAO(s.db), dao.NewFanInDAO(s.db))
	badge := 3
	scheduleAt := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	b, err := repo.CreateScheduled(ctx, domain.Broadcast{
		ID:             42,
		OrgID:          1,
		IdempotencyKey: "k",
		Title:          "hello",
		Content:        "world",
		Channels: map[domain.Channel]domain.ChannelRequest{
			domain.ChannelPush: {Badge: &badge},
			domain.ChannelWeb:  {},
		},
		Recipients: []domain.RecipientPayload{{ExternalID: "u1"}},
		MergeTags:  map[string]string{"coupon": "X1"},
		ScheduleAt: scheduleAt,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastStatusScheduled, b.Status)

	found, err := repo.FindByID(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, scheduleAt.UnixMilli(), found.ScheduleAt.UnixMilli())
	assert.Equal(t, 3, *found.Channels[domain.ChannelPush].Badge)
	assert.Equal(t, "X1", found.MergeTags["coupon"])
	assert.Equal(t, "u1", found.Recipients[0].ExternalID)

	newTitle := "hi"
	err = repo.Edit(ctx, 1, 42, domain.BroadcastEdit{ScheduleAt: scheduleAt.Add(time.Hour), Title: &newTitle})
	require.NoError(t, err)
	found, err = repo.FindByID(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, "hi", found.Title)
	assert.Equal(t, "world", found.Content)

	require.NoError(t, repo.Cancel(ctx, 1, 42))
	err = repo.Edit(ctx, 1, 42, domain.BroadcastEdit{ScheduleAt: scheduleAt})
	assert.ErrorIs(t, err, errs.ErrBroadcastNotEditable)

	_, err = repo.FindByID(ctx, 2, 42)
	assert.ErrorIs(t, err, errs.ErrBroadcastNotFound)
}

func (s *RepositoryTestSuite) TestInboxAction() {
	t := s.T()
	ctx := context.Background()
	repo := NewNotificationRepository(dao.NewNotificationDAO(s.db), dao.NewFanInDAO(s.db))
	n, created, err := repo.GetOrCreate(ctx, domain.Notification{
		ID: 7, OrgID: 1, BroadcastID: 1, RecipientID: 9, Title: "t",
		AdditionalInfo: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.NotificationStatusQueued, n.Status)

	now := time.UnixMilli(time.Now().UnixMilli())
	require.NoError(t, repo.ApplyInboxAction(ctx, 1, 9, 7, domain.InboxActionRead, now))
	n, err = repo.FindByID(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, n.ReadAt.Equal(now))
	assert.Equal(t, "v", n.AdditionalInfo["k"])

	require.NoError(t, repo.ApplyInboxAction(ctx, 1, 9, 7, domain.InboxActionUnread, now))
	n, err = repo.FindByID(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, n.ReadAt.IsZero())

	err = repo.ApplyInboxAction(ctx, 1, 9, 7, domain.InboxAction("delete"), now)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

// memoryProviderCache 没有跨节点通知的缓存
type memoryProviderCache struct {
	c           *ca.Cache
	invalidated atomic.Int64
}

func (m *memoryProviderCache) Get(_ context.Context, orgID int64, typ domain.ProviderType) ([]domain.ProviderConfig, error) {
	v, ok := m.c.Get(cache.ProviderKey(orgID, typ))
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v.([]domain.ProviderConfig), nil
}

func (m *memoryProviderCache) Set(_ context.Context, orgID int64, typ domain.ProviderType, cfgs []domain.ProviderConfig) error {
	m.c.Set(cache.ProviderKey(orgID, typ), cfgs, ca.DefaultExpiration)
	return nil
}

func (m *memoryProviderCache) Invalidate(_ context.Context, orgID int64) error {
	m.invalidated.Add(1)
	m.c.Flush()
	return nil
}
