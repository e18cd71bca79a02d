package ioc

import (
	"context"
	"fmt"
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	deliveryevt "gitee.com/flycash/broadcast-platform/internal/event/delivery"
	"gitee.com/flycash/broadcast-platform/internal/pkg/mqx"
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/delivery"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/ecodeclub/mq-api"
	"github.com/ecodeclub/mq-api/memory"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
)

const (
	QueueDriverKafka  = "kafka"
	QueueDriverMemory = "memory"
)

type ConsumerConfig struct {
	GroupID string          `yaml:"groupId"`
	Batch   mqx.BatchConfig `yaml:"batch"`
}

type QueueConfig struct {
	Driver     string `yaml:"driver"`
	Partitions int    `yaml:"partitions"`
	Kafka      struct {
		BootstrapServers string `yaml:"bootstrapServers"`
		CreateTopics     bool   `yaml:"createTopics"`
	} `yaml:"kafka"`
	Broadcast ConsumerConfig `yaml:"broadcast"`
	Delivery  ConsumerConfig `yaml:"delivery"`
}

// Queue 持有队列驱动，memory 驱动只适合单机部署
type Queue struct {
	cfg      QueueConfig
	mq       mq.MQ
	producer mqx.Producer
}

func InitQueue() *Queue {
	cfg := QueueConfig{
		Driver:     QueueDriverMemory,
		Partitions: 4,
		Broadcast: ConsumerConfig{
			GroupID: "broadcast_coordinator",
			Batch:   mqx.BatchConfig{BatchSize: 10, BatchTimeout: time.Second, Concurrency: 4, MaxRedelivery: 3},
		},
		Delivery: ConsumerConfig{
			GroupID: "delivery_worker",
			Batch:   mqx.BatchConfig{BatchSize: 100, BatchTimeout: time.Second, Concurrency: 32, MaxRedelivery: 3},
		},
	}
	if err := econf.UnmarshalKey("queue", &cfg); err != nil {
		panic(err)
	}
	topics := []string{broadcastevt.Topic, deliveryevt.Topic}

	switch cfg.Driver {
	case QueueDriverKafka:
		if cfg.Kafka.CreateTopics {
			createKafkaTopics(cfg, topics)
		}
		p, err := kafka.NewProducer(&kafka.ConfigMap{
			"bootstrap.servers": cfg.Kafka.BootstrapServers,
			"acks":              "all",
		})
		if err != nil {
			panic(fmt.Sprintf("创建生产者失败: %v", err))
		}
		return &Queue{cfg: cfg, producer: mqx.NewKafkaProducer(p)}
	case QueueDriverMemory:
		q := memory.NewMQ()
		for _, topic := range topics {
			if err := q.CreateTopic(context.Background(), topic, cfg.Partitions); err != nil {
				panic(err)
			}
		}
		return &Queue{cfg: cfg, mq: q, producer: mqx.NewMQProducer(q)}
	default:
		panic(fmt.Sprintf("未知的队列驱动 %s", cfg.Driver))
	}
}

func InitMQProducer(q *Queue) mqx.Producer {
	return q.producer
}

func InitBroadcastProducer(p mqx.Producer) broadcastevt.Producer {
	return broadcastevt.NewProducer(p)
}

func InitDeliveryProducer(p mqx.Producer) deliveryevt.Producer {
	return deliveryevt.NewProducer(p)
}

// Consumers 广播任务和投递任务两组消费者
type Consumers []Task

func InitConsumers(q *Queue, c *coordinator.Coordinator, w *delivery.Worker) Consumers {
	return Consumers{
		q.consumer(broadcastevt.Topic, q.cfg.Broadcast, broadcastevt.NewHandler(c)),
		q.consumer(deliveryevt.Topic, q.cfg.Delivery, deliveryevt.NewHandler(w)),
	}
}

func (q *Queue) consumer(topic string, cc ConsumerConfig, handler mqx.Handler) Task {
	if q.mq != nil {
		c, err := mqx.NewPoolConsumer(q.mq, topic, cc.GroupID, q.producer, handler,
			cc.Batch.Concurrency, cc.Batch.MaxRedelivery)
		if err != nil {
			panic(err)
		}
		return c
	}
	kc, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  q.cfg.Kafka.BootstrapServers,
		"group.id":           cc.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		panic(fmt.Sprintf("创建消费者失败: %v", err))
	}
	if err = kc.SubscribeTopics([]string{topic}, nil); err != nil {
		panic(err)
	}
	return mqx.NewBatchConsumer(kc, q.producer, handler, cc.Batch)
}

func createKafkaTopics(cfg QueueConfig, topics []string) {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Kafka.BootstrapServers,
	})
	if err != nil {
		panic(fmt.Sprintf("创建kafka连接失败: %v", err))
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: 1,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := adminClient.CreateTopics(ctx, specs)
	if err != nil {
		panic(fmt.Sprintf("创建topic失败: %v", err))
	}
	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			elog.DefaultLogger.Error("创建topic失败", elog.String("topic", result.Topic), elog.FieldErr(result.Error))
		}
	}
}
