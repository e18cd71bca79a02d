package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/pkg/crypto"
	"gitee.com/flycash/broadcast-platform/internal/pkg/ratelimit"
	"gitee.com/flycash/broadcast-platform/internal/pkg/retry"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/cache"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	providermocks "gitee.com/flycash/broadcast-platform/internal/service/provider/mocks"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

func TestWorkerSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(WorkerTestSuite))
}

type WorkerTestSuite struct {
	suite.Suite
	broadcastRepo    repository.BroadcastRepository
	notificationRepo repository.NotificationRepository
	recipientRepo    repository.RecipientRepository
	providerRepo     repository.ProviderRepository
	deliveryRepo     repository.DeliveryRepository

	recipient domain.Recipient
	completer *recordCompleter
}

func (s *WorkerTestSuite) SetupTest() {
	t := s.T()
	ctx := context.Background()
	db := testioc.InitSQLiteDB()
	require.NoError(t, dao.InitTables(db))
	c, err := crypto.New("0123456789abcdef0123456789abcdef", "salt")
	require.NoError(t, err)

	fanIn := dao.NewFanInDAO(db)
	s.broadcastRepo = repository.NewBroadcastRepository(dao.NewBroadcastDAO(db), fanIn)
	s.notificationRepo = repository.NewNotificationRepository(dao.NewNotificationDAO(db), fanIn)
	s.recipientRepo = repository.NewRecipientRepository(dao.NewRecipientDAO(db), c)
	s.providerRepo = repository.NewProviderRepository(dao.NewProviderDAO(db), nopProviderCache{}, c)
	s.deliveryRepo = repository.NewDeliveryRepository(dao.NewDeliveryDAO(db), fanIn)
	s.completer = &recordCompleter{}

	_, err = s.providerRepo.Create(ctx, domain.ProviderConfig{
		OrgID:       1,
		Type:        domain.ProviderTypeSMS,
		Vendor:      domain.VendorAliyun,
		Enabled:     true,
		Credentials: map[string]string{"accessKeyId": "ak", "accessKeySecret": "sk", "signName": "广播"},
	})
	require.NoError(t, err)
	_, err = s.providerRepo.Create(ctx, domain.ProviderConfig{
		OrgID:       1,
		Type:        domain.ProviderTypePush,
		Vendor:      domain.VendorAPNS,
		Enabled:     false,
		Credentials: map[string]string{"keyId": "k", "teamId": "t", "authKey": "a"},
	})
	require.NoError(t, err)

	s.recipient, err = s.recipientRepo.Upsert(ctx, 1, domain.RecipientPayload{
		ExternalID: "alice",
		Phone:      "+8613800000000",
		FirstName:  "Alice",
		Devices:    []domain.DevicePayload{{Token: "ios-token", Platform: domain.PlatformIOS}},
	})
	require.NoError(t, err)

	_, err = s.broadcastRepo.Create(ctx, domain.Broadcast{
		ID:      100,
		OrgID:   1,
		Title:   "账单",
		Content: "本月账单已出",
		Channels: map[domain.Channel]domain.ChannelRequest{
			domain.ChannelSMS:   {TemplateID: "SMS_1"},
			domain.ChannelEmail: {},
			domain.ChannelPush:  {},
		},
		MergeTags:  map[string]string{"amount": "100"},
		Recipients: []domain.RecipientPayload{{ExternalID: "alice"}},
	})
	require.NoError(t, err)
	_, _, err = s.notificationRepo.GetOrCreate(ctx, domain.Notification{
		ID:          200,
		OrgID:       1,
		BroadcastID: 100,
		RecipientID: s.recipient.ID,
		Title:       "账单",
		Content:     "本月账单已出",
		Status:      domain.NotificationStatusQueued,
	})
	require.NoError(t, err)
}

func (s *WorkerTestSuite) newWorker(gateway provider.Provider, sleeps *[]time.Duration) *Worker {
	cfg := domain.DefaultRetryConfig()
	cfg.Jitter = false
	w := NewWorker(s.broadcastRepo, s.notificationRepo, s.recipientRepo, s.providerRepo,
		s.deliveryRepo, gateway, s.completer, retry.NewConfigHolder(cfg))
	w.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return w
}

func (s *WorkerTestSuite) smsTask() domain.DeliveryTask {
	return domain.DeliveryTask{
		OrgID:          1,
		BroadcastID:    100,
		NotificationID: 200,
		RecipientID:    s.recipient.ID,
		Channel:        domain.ChannelSMS,
	}
}

func (s *WorkerTestSuite) TestHandle() {
	testCases := []struct {
		name       string
		task       func() domain.DeliveryTask
		mock       func(gateway *providermocks.MockProvider)
		wantStatus domain.DeliveryStatus
		wantReason string
		wantTimes  int
		wantSleeps []time.Duration
	}{
		{
			name: "成功",
			task: s.smsTask,
			mock: func(gateway *providermocks.MockProvider) {
				gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, msg domain.Message) (domain.SendResult, error) {
						assert.Equal(s.T(), "+8613800000000", msg.To)
						assert.Equal(s.T(), "SMS_1", msg.TemplateID)
						assert.Equal(s.T(), map[string]string{"first_name": "Alice", "amount": "100"}, msg.MergeTags)
						assert.Equal(s.T(), domain.VendorAliyun, msg.Provider.Vendor)
						return domain.SendResult{
							Outcome:  domain.SendOutcomeDelivered,
							Metadata: map[string]string{"aliyun_biz_id": "b1"},
						}, nil
					})
			},
			wantStatus: domain.DeliveryStatusDelivered,
			wantTimes:  1,
		},
		{
			name: "临时错误重试到上限",
			task: s.smsTask,
			mock: func(gateway *providermocks.MockProvider) {
				gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
					Return(domain.SendResult{}, provider.Transient(errors.New("timeout"))).Times(5)
			},
			wantStatus: domain.DeliveryStatusUndelivered,
			wantReason: "timeout",
			wantTimes:  5,
			wantSleeps: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
		{
			name: "重试之后成功",
			task: s.smsTask,
			mock: func(gateway *providermocks.MockProvider) {
				gomock.InOrder(
					gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
						Return(domain.SendResult{}, provider.Transient(errors.New("timeout"))),
					gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
						Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered}, nil),
				)
			},
			wantStatus: domain.DeliveryStatusDelivered,
			wantTimes:  2,
			wantSleeps: []time.Duration{time.Second},
		},
		{
			name: "永久错误不重试",
			task: s.smsTask,
			mock: func(gateway *providermocks.MockProvider) {
				gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
					Return(domain.SendResult{}, provider.Permanent(errors.New("invalid phone")))
			},
			wantStatus: domain.DeliveryStatusNotSent,
			wantReason: "invalid phone",
			wantTimes:  1,
		},
		{
			name: "供应商返回未送达",
			task: s.smsTask,
			mock: func(gateway *providermocks.MockProvider) {
				gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
					Return(domain.SendResult{Outcome: domain.SendOutcomeUndelivered, Reason: "blocked"}, nil)
			},
			wantStatus: domain.DeliveryStatusUndelivered,
			wantReason: "blocked",
			wantTimes:  1,
		},
		{
			name: "没有启用的邮件供应商",
			task: func() domain.DeliveryTask {
				task := s.smsTask()
				task.Channel = domain.ChannelEmail
				return task
			},
			mock:       func(*providermocks.MockProvider) {},
			wantStatus: domain.DeliveryStatusNotSent,
			wantReason: domain.ReasonProviderNotConfigured,
		},
		{
			name: "推送供应商被禁用",
			task: func() domain.DeliveryTask {
				task := s.smsTask()
				task.Channel = domain.ChannelPush
				task.Platform = domain.PlatformIOS
				task.DeviceID = s.recipient.Devices[0].ID
				return task
			},
			mock:       func(*providermocks.MockProvider) {},
			wantStatus: domain.DeliveryStatusNotSent,
			wantReason: domain.ReasonProviderNotConfigured,
		},
		{
			name: "接收者已经被删除",
			task: func() domain.DeliveryTask {
				task := s.smsTask()
				task.RecipientID = 9999
				return task
			},
			mock:       func(*providermocks.MockProvider) {},
			wantStatus: domain.DeliveryStatusNotSent,
			wantReason: domain.ReasonRecipientNotFound,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.SetupTest()
			t := s.T()
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			gateway := providermocks.NewMockProvider(ctrl)
			tc.mock(gateway)

			var sleeps []time.Duration
			w := s.newWorker(gateway, &sleeps)
			task := tc.task()
			require.NoError(t, w.Handle(ctx, task))

			d, found, err := s.deliveryRepo.Find(ctx, task)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, tc.wantStatus, d.Status)
			assert.Contains(t, d.ErrorReason, tc.wantReason)
			assert.Equal(t, tc.wantTimes, d.Attempts)
			assert.Equal(t, tc.wantSleeps, sleeps)
			assert.Equal(t, []int64{d.ID}, s.completer.ids)
		})
	}
}

func (s *WorkerTestSuite) TestReplayFinal() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := providermocks.NewMockProvider(ctrl)
	gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered}, nil).Times(1)

	var sleeps []time.Duration
	w := s.newWorker(gateway, &sleeps)
	require.NoError(t, w.Handle(ctx, s.smsTask()))
	// 重复投递只补做汇总
	require.NoError(t, w.Handle(ctx, s.smsTask()))
	require.Len(t, s.completer.ids, 2)
	assert.Equal(t, s.completer.ids[0], s.completer.ids[1])
}

func (s *WorkerTestSuite) TestReplayUndelivered() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := providermocks.NewMockProvider(ctrl)
	gomock.InOrder(
		gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(domain.SendResult{}, provider.Transient(errors.New("timeout"))).Times(5),
		gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered}, nil).Times(1),
	)

	var sleeps []time.Duration
	w := s.newWorker(gateway, &sleeps)
	require.NoError(t, w.Handle(ctx, s.smsTask()))
	d, _, err := s.deliveryRepo.Find(ctx, s.smsTask())
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusUndelivered, d.Status)
	assert.Equal(t, 5, d.Attempts)

	// undelivered 不是终态，重放会再走一轮，次数累加
	require.NoError(t, w.Handle(ctx, s.smsTask()))
	d, _, err = s.deliveryRepo.Find(ctx, s.smsTask())
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDelivered, d.Status)
	assert.Equal(t, 6, d.Attempts)
	require.Len(t, s.completer.ids, 2)
	assert.Equal(t, s.completer.ids[0], s.completer.ids[1])
}

func (s *WorkerTestSuite) TestRateLimited() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := providermocks.NewMockProvider(ctrl)
	gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered}, nil)

	var sleeps []time.Duration
	limiter := &countdownLimiter{limited: 2}
	w := s.newWorker(gateway, &sleeps).WithLimiter(limiter, 100*time.Millisecond)
	require.NoError(t, w.Handle(ctx, s.smsTask()))

	assert.Equal(t, []string{"provider:ALIYUN:1", "provider:ALIYUN:1", "provider:ALIYUN:1"}, limiter.keys)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, sleeps)
	d, _, err := s.deliveryRepo.Find(ctx, s.smsTask())
	require.NoError(t, err)
	// 等待限流不消耗次数
	assert.Equal(t, 1, d.Attempts)
}

func (s *WorkerTestSuite) TestLimiterUnavailable() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := providermocks.NewMockProvider(ctrl)
	gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(domain.SendResult{Outcome: domain.SendOutcomeDelivered}, nil)

	var sleeps []time.Duration
	w := s.newWorker(gateway, &sleeps).WithLimiter(&countdownLimiter{err: errors.New("redis down")}, time.Second)
	require.NoError(t, w.Handle(ctx, s.smsTask()))
	assert.Empty(t, sleeps)
}

func (s *WorkerTestSuite) TestContextCancelled() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gateway := providermocks.NewMockProvider(ctrl)
	gateway.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.Message) (domain.SendResult, error) {
			cancel()
			return domain.SendResult{}, provider.Transient(context.Canceled)
		})

	var sleeps []time.Duration
	w := s.newWorker(gateway, &sleeps)
	err := w.Handle(ctx, s.smsTask())
	assert.ErrorIs(t, err, context.Canceled)
	// 没有结束的任务不计入汇总
	assert.Empty(t, s.completer.ids)
}

type recordCompleter struct {
	ids []int64
}

func (c *recordCompleter) Complete(_ context.Context, deliveryID int64) error {
	c.ids = append(c.ids, deliveryID)
	return nil
}

type countdownLimiter struct {
	limited int
	err     error
	keys    []string
}

func (l *countdownLimiter) Limit(_ context.Context, key ratelimit.Key) (bool, error) {
	l.keys = append(l.keys, key.String())
	if l.err != nil {
		return false, l.err
	}
	if l.limited > 0 {
		l.limited--
		return true, nil
	}
	return false, nil
}

type nopProviderCache struct{}

func (nopProviderCache) Get(context.Context, int64, domain.ProviderType) ([]domain.ProviderConfig, error) {
	return nil, cache.ErrKeyNotFound
}

func (nopProviderCache) Set(context.Context, int64, domain.ProviderType, []domain.ProviderConfig) error {
	return nil
}

func (nopProviderCache) Invalidate(context.Context, int64) error {
	return nil
}
