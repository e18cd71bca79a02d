package mqx

import (
	"context"
	"fmt"

	"github.com/gotomicro/ego/core/elog"
)

// redeliverer 处理失败的消息重新发回队列，超过次数之后只记录日志
type redeliverer struct {
	producer      Producer
	maxRedelivery int
	logger        *elog.Component
}

// handle 只有重新投递失败才返回错误，此时不能提交消费进度
func (r *redeliverer) handle(ctx context.Context, handler Handler, msg Message) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}
	if msg.Redelivery >= r.maxRedelivery {
		r.logger.Error("消息处理失败，超过重试次数，放弃",
			elog.String("topic", msg.Topic),
			elog.String("key", string(msg.Key)),
			elog.Int("redelivery", msg.Redelivery),
			elog.FieldErr(err))
		return nil
	}
	r.logger.Warn("消息处理失败，重新投递",
		elog.String("topic", msg.Topic),
		elog.String("key", string(msg.Key)),
		elog.Int("redelivery", msg.Redelivery),
		elog.FieldErr(err))
	next := msg
	next.Redelivery++
	if perr := r.producer.Produce(ctx, next); perr != nil {
		return fmt.Errorf("重新投递消息失败 %w", perr)
	}
	return nil
}
