package broadcast

import (
	"time"

	"gitee.com/flycash/broadcast-platform/internal/domain"
)

type SubmitReq struct {
	IdempotencyKey string                                   `json:"idempotencyKey"`
	Category       string                                   `json:"category"`
	Topic          string                                   `json:"topic"`
	Title          string                                   `json:"title"`
	Content        string                                   `json:"content"`
	ActionLink     string                                   `json:"actionLink"`
	AdditionalInfo map[string]any                           `json:"additionalInfo"`
	Channels       map[domain.Channel]domain.ChannelRequest `json:"channels"`
	Recipients     []domain.RecipientPayload                `json:"recipients"`
	AudienceID     int64                                    `json:"audienceId"`
	MergeTags      map[string]string                        `json:"mergeTags"`
	// 为空表示立即发送
	ScheduleAt *time.Time `json:"scheduleAt"`
}

func (r SubmitReq) toDomain(orgID int64) domain.Broadcast {
	b := domain.Broadcast{
		OrgID:          orgID,
		IdempotencyKey: r.IdempotencyKey,
		Category:       r.Category,
		Topic:          r.Topic,
		Title:          r.Title,
		Content:        r.Content,
		ActionLink:     r.ActionLink,
		AdditionalInfo: r.AdditionalInfo,
		Channels:       r.Channels,
		Recipients:     r.Recipients,
		AudienceID:     r.AudienceID,
		MergeTags:      r.MergeTags,
	}
	if r.ScheduleAt != nil {
		b.ScheduleAt = *r.ScheduleAt
	}
	return b
}

type EditReq struct {
	ScheduleAt *time.Time `json:"scheduleAt"`
	Title      *string    `json:"title"`
	Content    *string    `json:"content"`
	ActionLink *string    `json:"actionLink"`
}

func (r EditReq) toDomain() domain.BroadcastEdit {
	edit := domain.BroadcastEdit{
		Title:      r.Title,
		Content:    r.Content,
		ActionLink: r.ActionLink,
	}
	if r.ScheduleAt != nil {
		edit.ScheduleAt = *r.ScheduleAt
	}
	return edit
}

type Broadcast struct {
	ID             int64                                    `json:"id,string"`
	IdempotencyKey string                                   `json:"idempotencyKey"`
	Category       string                                   `json:"category,omitempty"`
	Topic          string                                   `json:"topic,omitempty"`
	Title          string                                   `json:"title"`
	Content        string                                   `json:"content"`
	ActionLink     string                                   `json:"actionLink,omitempty"`
	AdditionalInfo map[string]any                           `json:"additionalInfo,omitempty"`
	Channels       map[domain.Channel]domain.ChannelRequest `json:"channels"`
	AudienceID     int64                                    `json:"audienceId,omitempty"`
	MergeTags      map[string]string                        `json:"mergeTags,omitempty"`
	ScheduleAt     *time.Time                               `json:"scheduleAt,omitempty"`
	Status         string                                   `json:"status"`
	Metadata       domain.BroadcastMetadata                 `json:"metadata"`
	SentAt         *time.Time                               `json:"sentAt,omitempty"`
	Ctime          time.Time                                `json:"ctime"`
	Utime          time.Time                                `json:"utime"`
}

func newBroadcast(b domain.Broadcast) Broadcast {
	return Broadcast{
		ID:             b.ID,
		IdempotencyKey: b.IdempotencyKey,
		Category:       b.Category,
		Topic:          b.Topic,
		Title:          b.Title,
		Content:        b.Content,
		ActionLink:     b.ActionLink,
		AdditionalInfo: b.AdditionalInfo,
		Channels:       b.Channels,
		AudienceID:     b.AudienceID,
		MergeTags:      b.MergeTags,
		ScheduleAt:     timePtr(b.ScheduleAt),
		Status:         string(b.Status),
		Metadata:       b.Metadata,
		SentAt:         timePtr(b.SentAt),
		Ctime:          b.Ctime,
		Utime:          b.Utime,
	}
}

type Notification struct {
	ID          int64      `json:"id,string"`
	BroadcastID int64      `json:"broadcastId,string"`
	RecipientID int64      `json:"recipientId"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ActionLink  string     `json:"actionLink,omitempty"`
	Status      string     `json:"status"`
	SeenAt      *time.Time `json:"seenAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	ClickedAt   *time.Time `json:"clickedAt,omitempty"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
	Ctime       time.Time  `json:"ctime"`
}

func newNotification(n domain.Notification) Notification {
	return Notification{
		ID:          n.ID,
		BroadcastID: n.BroadcastID,
		RecipientID: n.RecipientID,
		Title:       n.Title,
		Content:     n.Content,
		ActionLink:  n.ActionLink,
		Status:      string(n.Status),
		SeenAt:      timePtr(n.SeenAt),
		ReadAt:      timePtr(n.ReadAt),
		ClickedAt:   timePtr(n.ClickedAt),
		ArchivedAt:  timePtr(n.ArchivedAt),
		Ctime:       n.Ctime,
	}
}

type Delivery struct {
	ID          int64             `json:"id"`
	Channel     string            `json:"channel"`
	Target      string            `json:"target,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	Status      string            `json:"status"`
	ErrorReason string            `json:"errorReason,omitempty"`
	Attempts    int               `json:"attempts"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SentAt      *time.Time        `json:"sentAt,omitempty"`
}

func newDelivery(d domain.Delivery) Delivery {
	return Delivery{
		ID:          d.ID,
		Channel:     string(d.Channel),
		Target:      d.Target,
		Platform:    string(d.Platform),
		Status:      string(d.Status),
		ErrorReason: d.ErrorReason,
		Attempts:    d.Attempts,
		Metadata:    d.Metadata,
		SentAt:      timePtr(d.SentAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
