package mqx

import (
	"context"
	"fmt"

	"github.com/ecodeclub/mq-api"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"
)

// PoolConsumer 基于 mq-api，最多 concurrency 个消息同时处理
type PoolConsumer struct {
	consumer    mq.Consumer
	handler     Handler
	concurrency int
	redeliverer
}

func NewPoolConsumer(q mq.MQ, topic, groupID string, producer Producer, handler Handler, concurrency, maxRedelivery int) (*PoolConsumer, error) {
	consumer, err := q.Consumer(topic, groupID)
	if err != nil {
		return nil, err
	}
	return &PoolConsumer{
		consumer:    consumer,
		handler:     handler,
		concurrency: concurrency,
		redeliverer: redeliverer{
			producer:      producer,
			maxRedelivery: maxRedelivery,
			logger:        elog.DefaultLogger,
		},
	}, nil
}

func (c *PoolConsumer) Start(ctx context.Context) {
	go func() {
		for ctx.Err() == nil {
			er := c.Consume(ctx)
			if er != nil {
				c.logger.Error("消费消息失败", elog.FieldErr(er))
			}
		}
	}()
}

// Consume 直到 ctx 取消或者通道关闭才返回
func (c *PoolConsumer) Consume(ctx context.Context) error {
	msgCh, err := c.consumer.ConsumeChan(ctx)
	if err != nil {
		return fmt.Errorf("获取消息失败: %w", err)
	}
	var eg errgroup.Group
	eg.SetLimit(c.concurrency)
	for {
		select {
		case <-ctx.Done():
			return eg.Wait()
		case m, ok := <-msgCh:
			if !ok {
				return eg.Wait()
			}
			msg := fromMQ(m)
			eg.Go(func() error {
				if er := c.handle(ctx, c.handler, msg); er != nil {
					c.logger.Error("重新投递失败，消息丢失",
						elog.String("topic", msg.Topic),
						elog.FieldErr(er))
				}
				return nil
			})
		}
	}
}
