package mqx

import (
	"context"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// RedeliveryHeader 消息被重新投递的次数
const RedeliveryHeader = "redelivery"

// Message 与具体消息队列无关的消息
type Message struct {
	Topic      string
	Key        []byte
	Value      []byte
	Redelivery int
}

// Handler 返回错误的消息会被重新投递
type Handler func(ctx context.Context, msg Message) error

//go:generate mockgen -source=./types.go -package=mqxmocks -destination=./mocks/producer.mock.go -typed Producer
type Producer interface {
	Produce(ctx context.Context, msg Message) error
}

//go:generate mockgen -source=./types.go -package=mqxmocks -destination=./mocks/consumer.mock.go -typed Consumer
type Consumer interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	// CommitOffsets 提交的是下一条要消费的 offset
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	SeekPartitions(partitions []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

func parseRedelivery(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
