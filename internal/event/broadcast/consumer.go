package broadcast

import (
	"context"
	"encoding/json"

	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
	"github.com/gotomicro/ego/core/elog"
)

// Runner 执行一个广播的扇出
type Runner interface {
	Run(ctx context.Context, orgID, broadcastID int64) error
}

// NewHandler 解析失败的消息直接丢弃
func NewHandler(runner Runner) mqx.Handler {
	logger := elog.DefaultLogger
	return func(ctx context.Context, msg mqx.Message) error {
		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Warn("解析广播事件失败", elog.FieldErr(err), elog.String("msg", string(msg.Value)))
			return nil
		}
		return runner.Run(ctx, evt.OrgID, evt.BroadcastID)
	}
}
