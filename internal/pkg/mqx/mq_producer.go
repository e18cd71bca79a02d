package mqx

import (
	"context"
	"strconv"
	"sync"

	"github.com/ecodeclub/mq-api"
)

var _ Producer = (*MQProducer)(nil)

// MQProducer 基于 mq-api，按 topic 懒加载生产者
type MQProducer struct {
	q         mq.MQ
	mu        sync.Mutex
	producers map[string]mq.Producer
}

func NewMQProducer(q mq.MQ) *MQProducer {
	return &MQProducer{q: q, producers: make(map[string]mq.Producer)}
}

func (p *MQProducer) Produce(ctx context.Context, msg Message) error {
	producer, err := p.producer(msg.Topic)
	if err != nil {
		return err
	}
	_, err = producer.Produce(ctx, &mq.Message{
		Topic:  msg.Topic,
		Key:    msg.Key,
		Value:  msg.Value,
		Header: mq.Header{RedeliveryHeader: strconv.Itoa(msg.Redelivery)},
	})
	return err
}

func (p *MQProducer) producer(topic string) (mq.Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if producer, ok := p.producers[topic]; ok {
		return producer, nil
	}
	producer, err := p.q.Producer(topic)
	if err != nil {
		return nil, err
	}
	p.producers[topic] = producer
	return producer, nil
}

func fromMQ(m *mq.Message) Message {
	msg := Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
	if m.Header != nil {
		msg.Redelivery = parseRedelivery(m.Header[RedeliveryHeader])
	}
	return msg
}
