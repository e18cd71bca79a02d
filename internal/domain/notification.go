package domain

import (
	"fmt"
	"time"
)

// NotificationStatus 通知状态，通知是广播汇总的单位
type NotificationStatus string

const (
	NotificationStatusQueued    NotificationStatus = "queued"
	NotificationStatusProcessed NotificationStatus = "processed"
	NotificationStatusFailed    NotificationStatus = "failed"
)

// Notification 一个广播对一个接收者的记录
type Notification struct {
	ID             int64
	OrgID          int64
	BroadcastID    int64
	RecipientID    int64
	Category       string
	Topic          string
	Title          string
	Content        string
	ActionLink     string
	AdditionalInfo map[string]any
	Status         NotificationStatus
	// 尚未完成的投递任务数
	Pending    int64
	Dispatched bool
	SeenAt     time.Time
	ReadAt     time.Time
	ClickedAt  time.Time
	ArchivedAt time.Time
	Ctime      time.Time
	Utime      time.Time
}

// InboxAction 终端用户对收件箱的操作，只修改时间戳
type InboxAction string

const (
	InboxActionRead      InboxAction = "read"
	InboxActionUnread    InboxAction = "unread"
	InboxActionSeen      InboxAction = "seen"
	InboxActionClicked   InboxAction = "clicked"
	InboxActionArchive   InboxAction = "archive"
	InboxActionUnarchive InboxAction = "unarchive"
)

func (a InboxAction) IsValid() bool {
	switch a {
	case InboxActionRead, InboxActionUnread, InboxActionSeen,
		InboxActionClicked, InboxActionArchive, InboxActionUnarchive:
		return true
	default:
		return false
	}
}

// Column 操作对应的时间戳字段，以及是置位还是清空
func (a InboxAction) Column() (column string, set bool) {
	switch a {
	case InboxActionRead:
		return "read_at", true
	case InboxActionUnread:
		return "read_at", false
	case InboxActionSeen:
		return "seen_at", true
	case InboxActionClicked:
		return "clicked_at", true
	case InboxActionArchive:
		return "archived_at", true
	default:
		return "archived_at", false
	}
}

// NotificationCreatedEvent 站内信实时推送的消息体
type NotificationCreatedEvent struct {
	Object string                  `json:"object"`
	Type   string                  `json:"type"`
	Data   NotificationCreatedData `json:"data"`
}

type NotificationCreatedData struct {
	ID             int64          `json:"id"`
	Category       string         `json:"category"`
	Topic          string         `json:"topic"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	ActionLink     string         `json:"action_link"`
	AdditionalInfo map[string]any `json:"additional_info"`
}

// RecipientGroup 接收者的实时订阅分组
func RecipientGroup(recipientID int64) string {
	return fmt.Sprintf("user_%d", recipientID)
}
