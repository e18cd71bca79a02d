package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"gitee.com/flycash/broadcast-platform/internal/domain"
	"gitee.com/flycash/broadcast-platform/internal/service/provider"
	"google.golang.org/api/option"
)

var _ provider.PushProvider = (*FCM)(nil)

type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM 使用 service account 认证
type FCM struct {
	client fcmClient
}

func NewFCM(ctx context.Context, cfg domain.ProviderConfig) (*FCM, error) {
	if err := provider.RequireCredential(cfg, "serviceAccount"); err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Credential("projectId")},
		option.WithCredentialsJSON([]byte(cfg.Credential("serviceAccount"))))
	if err != nil {
		return nil, provider.Permanent(fmt.Errorf("FCM 初始化失败 %w", err))
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, provider.Permanent(fmt.Errorf("FCM 初始化失败 %w", err))
	}
	return &FCM{client: client}, nil
}

func (f *FCM) SendPush(ctx context.Context, msg domain.Message) (domain.SendResult, error) {
	id, err := f.client.Send(ctx, &messaging.Message{
		Token: msg.To,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: fcmData(msg),
	})
	if err != nil {
		return domain.SendResult{}, fcmError(err)
	}
	return domain.SendResult{
		Outcome:   domain.SendOutcomeDelivered,
		MessageID: id,
		Metadata:  map[string]string{"fcm_message_id": id},
	}, nil
}

// fcmData FCM 的 data 只接受字符串
func fcmData(msg domain.Message) map[string]string {
	if len(msg.Data) == 0 && msg.ActionLink == "" {
		return nil
	}
	res := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		res[k] = fmt.Sprint(v)
	}
	if msg.ActionLink != "" {
		res["action_link"] = msg.ActionLink
	}
	return res
}

func fcmError(err error) error {
	switch {
	case messaging.IsUnregistered(err), errorutils.IsInvalidArgument(err),
		errorutils.IsPermissionDenied(err), errorutils.IsUnauthenticated(err),
		errorutils.IsNotFound(err):
		return provider.Permanent(err)
	default:
		// 限流、服务不可用、网络错误
		return provider.Transient(err)
	}
}
