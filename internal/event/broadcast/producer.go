package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
)

//go:generate mockgen -source=./producer.go -package=broadcastmocks -destination=./mocks/producer.mock.go -typed Producer
type Producer interface {
	Produce(ctx context.Context, evt Event) error
}

type producer struct {
	producer mqx.Producer
}

func NewProducer(p mqx.Producer) Producer {
	return &producer{producer: p}
}

func (p *producer) Produce(ctx context.Context, evt Event) error {
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化广播事件失败 %w", err)
	}
	return p.producer.Produce(ctx, mqx.Message{
		Topic: Topic,
		Key:   []byte(strconv.FormatInt(evt.BroadcastID, 10)),
		Value: val,
	})
}
