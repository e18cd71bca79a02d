package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
)

const Topic = "delivery_tasks"

//go:generate mockgen -source=./producer.go -package=deliverymocks -destination=./mocks/producer.mock.go -typed Producer
type Producer interface {
	Produce(ctx context.Context, tasks ...domain.DeliveryTask) error
}

type producer struct {
	producer mqx.Producer
}

func NewProducer(p mqx.Producer) Producer {
	return &producer{producer: p}
}

// Produce 任务的唯一标识作为分区键
func (p *producer) Produce(ctx context.Context, tasks ...domain.DeliveryTask) error {
	for _, t := range tasks {
		val, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("序列化投递任务失败 %w", err)
		}
		err = p.producer.Produce(ctx, mqx.Message{
			Topic: Topic,
			Key:   []byte(t.Key()),
			Value: val,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
