package delivery

import (
	"gitee.com/flycash/broadcast-platform/internal/domain"
)

// buildMessage 渠道覆盖优先，其次是广播本身的内容
func buildMessage(b domain.Broadcast, n domain.Notification, r domain.Recipient, task domain.DeliveryTask) domain.Message {
	req := b.Channels[task.Channel]
	msg := domain.Message{
		OrgID:          task.OrgID,
		NotificationID: n.ID,
		RecipientID:    r.ID,
		Channel:        task.Channel,
		Platform:       task.Platform,
		Title:          n.Title,
		Subtitle:       req.Subtitle,
		Subject:        req.Subject,
		Body:           n.Content,
		ActionLink:     n.ActionLink,
		TemplateID:     req.TemplateID,
		MergeTags:      mergeTags(r, b),
		Badge:          req.Badge,
		Sound:          req.Sound,
		Category:       n.Category,
		Topic:          n.Topic,
		Data:           n.AdditionalInfo,
	}
	if req.Title != "" {
		msg.Title = req.Title
	}
	if msg.Subject == "" {
		msg.Subject = msg.Title
	}
	if req.Body != "" {
		msg.Body = req.Body
	}
	switch task.Channel {
	case domain.ChannelSMS:
		msg.To = r.Phone
		// 短信没有标题，拼到正文前面
		if req.Body == "" && msg.Title != "" {
			msg.Body = msg.Title + "\n" + msg.Body
		}
	case domain.ChannelEmail:
		msg.To = r.Email
	}
	return msg
}

// mergeTags 接收者的姓名是默认标签，广播中的同名标签优先
func mergeTags(r domain.Recipient, b domain.Broadcast) map[string]string {
	tags := r.MergeTags()
	for k, v := range b.MergeTags {
		tags[k] = v
	}
	return tags
}

func withDevice(msg domain.Message, d domain.Device) domain.Message {
	msg.To = d.Token
	msg.Platform = d.Platform
	msg.BundleID = d.BundleID
	return msg
}
