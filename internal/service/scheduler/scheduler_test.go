package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/errs"
	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	broadcastmocks "gitee.com/flycash/broadcast-platform/internal/event/broadcast/mocks"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/repository/dao"
	testioc "gitee.com/flycash/broadcast-platform/internal/test/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

func TestSchedulerSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(SchedulerTestSuite))
}

type SchedulerTestSuite struct {
	suite.Suite
	broadcastRepo repository.BroadcastRepository
	jobRepo       repository.ScheduledJobRepository
	scheduleAt    time.Time
}

func (s *SchedulerTestSuite) SetupTest() {
	db := testioc.InitSQLiteDB()
	s.Require().NoError(dao.InitTables(db))
	s.broadcastRepo = repository.NewBroadcastRepository(dao.NewBroadcastDAO(db), dao.NewFanInDAO(db))
	s.jobRepo = repository.NewScheduledJobRepository(dao.NewScheduledJobDAO(db))
	s.scheduleAt = time.Now().Add(time.Hour).Truncate(time.Millisecond)
}

func (s *SchedulerTestSuite) newScheduler(ctrl *gomock.Controller) (*Scheduler, *broadcastmocks.MockProducer) {
	producer := broadcastmocks.NewMockProducer(ctrl)
	sch := NewScheduler(s.broadcastRepo, s.jobRepo, producer, nil, Config{BatchSize: 10, Interval: time.Second})
	// 触发时已经到了定时时间
	sch.now = func() time.Time {
		return s.scheduleAt.Add(time.Second)
	}
	return sch, producer
}

func (s *SchedulerTestSuite) schedule(ctx context.Context, sch *Scheduler, id int64) {
	b, err := sch.Schedule(ctx, domain.Broadcast{
		ID:             id,
		OrgID:          1,
		IdempotencyKey: fmt.Sprintf("preview-%d", id),
		Title:          "预告",
		Content:        "明天上线",
		Channels:       map[domain.Channel]domain.ChannelRequest{domain.ChannelWeb: {}},
		Topic:          "news",
		ScheduleAt:     s.scheduleAt,
	})
	s.Require().NoError(err)
	s.Require().Equal(domain.BroadcastStatusScheduled, b.Status)
}

func (s *SchedulerTestSuite) TestFireDue() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sch, producer := s.newScheduler(ctrl)
	s.schedule(ctx, sch, 10)

	// 还没有到时间
	jobs, err := s.jobRepo.FindDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	producer.EXPECT().Produce(gomock.Any(), broadcastevt.Event{OrgID: 1, BroadcastID: 10}).Return(nil)
	fired, err := sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	b, err := s.broadcastRepo.FindByID(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastStatusQueued, b.Status)

	// 任务已经被删除，不会再次触发
	fired, err = sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	// 已经触发的广播不能再取消或者修改
	assert.ErrorIs(t, sch.Cancel(ctx, 1, 10), errs.ErrBroadcastNotEditable)
	assert.ErrorIs(t, sch.Reschedule(ctx, 1, 10, domain.BroadcastEdit{}), errs.ErrBroadcastNotEditable)
}

func (s *SchedulerTestSuite) TestFireDueEnqueueFailed() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sch, producer := s.newScheduler(ctrl)
	s.schedule(ctx, sch, 11)

	producer.EXPECT().Produce(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	fired, err := sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	b, err := s.broadcastRepo.FindByID(ctx, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastStatusFailed, b.Status)
}

func (s *SchedulerTestSuite) TestCancel() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sch, _ := s.newScheduler(ctrl)
	s.schedule(ctx, sch, 12)

	require.NoError(t, sch.Cancel(ctx, 1, 12))
	b, err := s.broadcastRepo.FindByID(ctx, 1, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastStatusCancelled, b.Status)

	// 取消之后不会触发，producer 没有任何调用
	fired, err := sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	assert.ErrorIs(t, sch.Cancel(ctx, 1, 12), errs.ErrBroadcastNotEditable)
	assert.ErrorIs(t, sch.Cancel(ctx, 2, 12), errs.ErrBroadcastNotFound)
}

func (s *SchedulerTestSuite) TestReschedule() {
	t := s.T()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sch, producer := s.newScheduler(ctrl)
	s.schedule(ctx, sch, 13)

	title := "预告（更新）"
	require.NoError(t, sch.Reschedule(ctx, 1, 13, domain.BroadcastEdit{Title: &title}))
	b, err := s.broadcastRepo.FindByID(ctx, 1, 13)
	require.NoError(t, err)
	assert.Equal(t, title, b.Title)
	assert.Equal(t, "明天上线", b.Content)
	assert.True(t, s.scheduleAt.Equal(b.ScheduleAt))

	// 推迟一天，原来的时间不再触发
	later := s.scheduleAt.Add(24 * time.Hour)
	require.NoError(t, sch.Reschedule(ctx, 1, 13, domain.BroadcastEdit{ScheduleAt: later}))
	fired, err := sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	producer.EXPECT().Produce(gomock.Any(), broadcastevt.Event{OrgID: 1, BroadcastID: 13}).Return(nil)
	sch.now = func() time.Time {
		return later
	}
	fired, err = sch.FireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func (s *SchedulerTestSuite) TestRescheduleInvalid() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()
	sch, _ := s.newScheduler(ctrl)
	s.schedule(ctx, sch, 14)

	empty := " "
	testCases := []struct {
		name string
		edit domain.BroadcastEdit
	}{
		{
			name: "内容清空之后站内信没有内容",
			edit: domain.BroadcastEdit{Content: &empty},
		},
		{
			name: "新的时间已经过去",
			edit: domain.BroadcastEdit{ScheduleAt: s.scheduleAt.Add(-time.Minute)},
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			t := s.T()
			err := sch.Reschedule(ctx, 1, 14, tc.edit)
			assert.ErrorIs(t, err, errs.ErrInvalidParameter)

			// 没有落库
			b, err := s.broadcastRepo.FindByID(ctx, 1, 14)
			require.NoError(t, err)
			assert.Equal(t, "明天上线", b.Content)
			assert.True(t, s.scheduleAt.Equal(b.ScheduleAt))
			assert.Equal(t, domain.BroadcastStatusScheduled, b.Status)
		})
	}
}
