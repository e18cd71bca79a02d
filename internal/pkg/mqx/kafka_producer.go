package mqx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

var _ Producer = (*KafkaProducer)(nil)

// KafkaProducer 等待 delivery report 之后才返回
type KafkaProducer struct {
	producer *kafka.Producer
}

func NewKafkaProducer(producer *kafka.Producer) *KafkaProducer {
	return &KafkaProducer{producer: producer}
}

func (p *KafkaProducer) Produce(ctx context.Context, msg Message) error {
	deliveryChan := make(chan kafka.Event, 1)
	topic := msg.Topic
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
		Headers: []kafka.Header{
			{Key: RedeliveryHeader, Value: []byte(strconv.Itoa(msg.Redelivery))},
		},
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("发送消息失败 %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("未知的 delivery report %v", e)
		}
		return m.TopicPartition.Error
	}
}

func fromKafka(m *kafka.Message) Message {
	msg := Message{Key: m.Key, Value: m.Value}
	if m.TopicPartition.Topic != nil {
		msg.Topic = *m.TopicPartition.Topic
	}
	for _, h := range m.Headers {
		if h.Key == RedeliveryHeader {
			msg.Redelivery = parseRedelivery(string(h.Value))
		}
	}
	return msg
}
