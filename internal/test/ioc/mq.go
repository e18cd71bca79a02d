package ioc

import (
	"context"
	"sync"
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	deliveryevt "gitee.com/flycash/broadcast-platform/internal/event/delivery"
	"github.com/ecodeclub/ekit/retry"
	"github.com/ecodeclub/mq-api"
	"github.com/ecodeclub/mq-api/memory"
)

var (
	q          mq.MQ
	mqInitOnce sync.Once
)

// InitMQ 测试共用一个内存队列
func InitMQ() mq.MQ {
	mqInitOnce.Do(func() {
		const maxInterval = 10 * time.Second
		const maxRetries = 10
		strategy, err := retry.NewExponentialBackoffRetryStrategy(time.Second, maxInterval, maxRetries)
		if err != nil {
			panic(err)
		}
		for {
			q, err = NewMQ()
			if err == nil {
				break
			}
			next, ok := strategy.Next()
			if !ok {
				panic("InitMQ 重试失败......")
			}
			time.Sleep(next)
		}
	})
	return q
}

// NewMQ 每次返回一个新的内存队列，已经创建好广播和投递两个 topic
func NewMQ() (mq.MQ, error) {
	type Topic struct {
		Name       string
		Partitions int
	}
	topics := []Topic{
		{Name: broadcastevt.Topic, Partitions: 2},
		{Name: deliveryevt.Topic, Partitions: 4},
	}
	qq := memory.NewMQ()
	for _, t := range topics {
		err := qq.CreateTopic(context.Background(), t.Name, t.Partitions)
		if err != nil {
			return nil, err
		}
	}
	return qq, nil
}
