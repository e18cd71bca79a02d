package domain

import (
	"fmt"
	"time"
)

// DeliveryStatus 单个渠道（推送是单个设备）的投递状态
type DeliveryStatus string

const (
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusAttempted   DeliveryStatus = "attempted"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
	DeliveryStatusNotSent     DeliveryStatus = "not_sent"
)

// IsFinal 重放时不需要再调用供应商的状态
func (s DeliveryStatus) IsFinal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusNotSent
}

// 不发送的原因
const (
	ReasonUserDisabled          = "user disabled"
	ReasonNoPhone               = "no phone provided for user"
	ReasonNoEmail               = "no email provided for user"
	ReasonNoDevice              = "no device registered for user"
	ReasonRecipientNotFound     = "recipient not found"
	ReasonDeviceNotFound        = "device not found"
	ReasonProviderNotConfigured = "no enabled provider configured for channel"
)

// Delivery 投递账本中的一行
type Delivery struct {
	ID             int64
	OrgID          int64
	NotificationID int64
	Channel        Channel
	// 推送为 平台:设备ID，其余渠道为空
	Target      string
	Platform    Platform
	Title       string
	Content     string
	ActionLink  string
	Status      DeliveryStatus
	ErrorReason string
	Attempts    int
	Metadata    map[string]string
	// 是否已经计入通知的汇总
	Counted bool
	SentAt  time.Time
	Ctime   time.Time
	Utime   time.Time
}

// DeliveryTask 一个投递任务，对应一个 (通知, 渠道[, 设备])
type DeliveryTask struct {
	OrgID          int64    `json:"orgId"`
	BroadcastID    int64    `json:"broadcastId"`
	NotificationID int64    `json:"notificationId"`
	RecipientID    int64    `json:"recipientId"`
	Channel        Channel  `json:"channel"`
	DeviceID       int64    `json:"deviceId,omitempty"`
	Platform       Platform `json:"platform,omitempty"`
}

func (t DeliveryTask) Target() string {
	return DeliveryTarget(t.Platform, t.DeviceID)
}

// Key 任务的唯一标识，也是消息队列的分区键
func (t DeliveryTask) Key() string {
	return fmt.Sprintf("%d:%s:%s", t.NotificationID, t.Channel, t.Target())
}

// NotSent 生成一条不发送的投递记录
func (t DeliveryTask) NotSent(reason string) Delivery {
	return Delivery{
		OrgID:          t.OrgID,
		NotificationID: t.NotificationID,
		Channel:        t.Channel,
		Target:         t.Target(),
		Platform:       t.Platform,
		Status:         DeliveryStatusNotSent,
		ErrorReason:    reason,
	}
}

func DeliveryTarget(p Platform, deviceID int64) string {
	if deviceID == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", p, deviceID)
}

// Completion 一个投递计入汇总之后的结果
type Completion struct {
	NotificationID   int64
	BroadcastID      int64
	NotificationDone bool
	BroadcastDone    bool
}
