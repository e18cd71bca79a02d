package inapp

import (
	"context"
	"encoding/json"
	"strconv"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"github.com/redis/go-redis/v9"
)

var _ provider.InAppPublisher = (*RedisPublisher)(nil)

// RedisPublisher 通过 redis pub/sub 把新通知推给在线的用户，
// 没有在线订阅者也算投递成功，用户之后可以从收件箱拉取
type RedisPublisher struct {
	client redis.Cmdable
}

func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	evt := domain.NotificationCreatedEvent{
		Object: "event",
		Type:   "notification.created",
		Data: domain.NotificationCreatedData{
			ID:             msg.NotificationID,
			Category:       msg.Category,
			Topic:          msg.Topic,
			Title:          msg.Title,
			Content:        msg.Body,
			ActionLink:     msg.ActionLink,
			AdditionalInfo: msg.Data,
		},
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return domain.SendResult{}, provider.Permanent(err)
	}
	receivers, err := p.client.Publish(ctx, domain.RecipientGroup(msg.RecipientID), body).Result()
	if err != nil {
		return domain.SendResult{}, provider.Transient(err)
	}
	return domain.SendResult{
		Outcome:  domain.SendOutcomeDelivered,
		Metadata: map[string]string{"receivers": strconv.FormatInt(receivers, 10)},
	}, nil
}
