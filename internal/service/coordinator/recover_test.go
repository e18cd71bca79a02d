package coordinator

import (
	"context"
	"errors"
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	broadcastmocks "gitee.com/flycash/broadcast-platform/internal/event/broadcast/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func (s *CoordinatorTestSuite) TestRecover() {
	t := s.T()
	ctx := context.Background()
	// 1001 扇出中断，1002 还在排队
	s.createBroadcast(ctx, 1001)
	s.createBroadcast(ctx, 1002)
	ok, err := s.broadcastRepo.StartProcessing(ctx, 1001)
	require.NoError(t, err)
	require.True(t, ok)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	producer := broadcastmocks.NewMockProducer(ctrl)
	gomock.InOrder(
		producer.EXPECT().Produce(gomock.Any(), broadcastevt.Event{OrgID: 1, BroadcastID: 1001}).Return(nil),
		producer.EXPECT().Produce(gomock.Any(), broadcastevt.Event{OrgID: 1, BroadcastID: 1001}).Return(errors.New("broker down")),
	)
	r := NewRecoverer(s.broadcastRepo, producer, nil, RecoverConfig{OlderThan: time.Minute, BatchSize: 10})
	r.now = func() time.Time {
		return time.Now().Add(time.Hour)
	}

	cnt, err := r.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	// 入队失败只记录日志，下一轮还会扫描到
	cnt, err = r.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	// 扇出完毕之后不再入队
	require.NoError(t, s.coordinator.Run(ctx, 1, 1001))
	cnt, err = r.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	// 还没有超时
	r.now = time.Now
	cnt, err = r.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}
