package mqx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

type BatchConfig struct {
	// 处理完这么多条消息之后提交一次
	BatchSize int `yaml:"batchSize"`
	// 提交的最长间隔，也是拉取消息的超时时间
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRedelivery int           `yaml:"maxRedelivery"`
}

// BatchConsumer 拉取 kafka 消息并发处理，每个分区只提交连续处理完的 offset。
// 处理中的消息只占用自己的并发名额，慢消息不会拖住同一批的其他消息
type BatchConsumer struct {
	consumer Consumer
	handler  Handler
	cfg      BatchConfig
	redeliverer
}

func NewBatchConsumer(consumer Consumer, producer Producer, handler Handler, cfg BatchConfig) *BatchConsumer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &BatchConsumer{
		consumer: consumer,
		handler:  handler,
		cfg:      cfg,
		redeliverer: redeliverer{
			producer:      producer,
			maxRedelivery: cfg.MaxRedelivery,
			logger:        elog.DefaultLogger,
		},
	}
}

func (c *BatchConsumer) Start(ctx context.Context) {
	go func() {
		for ctx.Err() == nil {
			er := c.Consume(ctx)
			if er != nil {
				c.logger.Error("消费消息失败", elog.FieldErr(er))
			}
		}
	}()
}

// Consume 持续消费，直到 ctx 被取消、拉取失败或者有消息重新投递失败。
// 返回之前等待处理中的消息并提交进度，重新投递失败的分区回退到失败的那条消息
func (c *BatchConsumer) Consume(ctx context.Context) error {
	tracker := newOffsetTracker()
	var eg errgroup.Group
	eg.SetLimit(c.cfg.Concurrency)

	var result *multierror.Error
	lastCommit := time.Now()
	for ctx.Err() == nil && !tracker.failed() {
		if time.Since(lastCommit) >= c.cfg.BatchTimeout || tracker.uncommitted() >= c.cfg.BatchSize {
			if err := c.commit(tracker); err != nil {
				result = multierror.Append(result, err)
				break
			}
			lastCommit = time.Now()
		}
		m, err := c.consumer.ReadMessage(c.cfg.BatchTimeout)
		if err != nil {
			var kErr kafka.Error
			if errors.As(err, &kErr) && kErr.Code() == kafka.ErrTimedOut {
				continue
			}
			result = multierror.Append(result, fmt.Errorf("获取消息失败: %w", err))
			break
		}
		tp := m.TopicPartition
		tracker.add(tp)
		msg := fromKafka(m)
		eg.Go(func() error {
			tracker.done(tp, c.handle(ctx, c.handler, msg))
			return nil
		})
	}
	_ = eg.Wait()

	if err := c.commit(tracker); err != nil {
		result = multierror.Append(result, err)
	}
	if rewind := tracker.rewind(); len(rewind) > 0 {
		if _, err := c.consumer.SeekPartitions(rewind); err != nil {
			result = multierror.Append(result, fmt.Errorf("回退消费位置失败: %w", err))
		}
		result = multierror.Append(result, fmt.Errorf("消息重新投递失败，%d 个分区回退重新消费", len(rewind)))
	}
	return result.ErrorOrNil()
}

func (c *BatchConsumer) commit(tracker *offsetTracker) error {
	offsets := tracker.commitable()
	if len(offsets) == 0 {
		return nil
	}
	if _, err := c.consumer.CommitOffsets(offsets); err != nil {
		c.logger.Warn("提交消息失败", elog.FieldErr(err), elog.Any("offsets", offsets))
		return err
	}
	tracker.committed(offsets)
	return nil
}
