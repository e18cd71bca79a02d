package delivery

import (
	"context"
	"encoding/json"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
	"github.com/gotomicro/ego/core/elog"
)

// TaskHandler 处理一个投递任务
type TaskHandler interface {
	Handle(ctx context.Context, task domain.DeliveryTask) error
}

func NewHandler(h TaskHandler) mqx.Handler {
	logger := elog.DefaultLogger
	return func(ctx context.Context, msg mqx.Message) error {
		var task domain.DeliveryTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			logger.Warn("解析投递任务失败", elog.FieldErr(err), elog.String("msg", string(msg.Value)))
			return nil
		}
		return h.Handle(ctx, task)
	}
}
