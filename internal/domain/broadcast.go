package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gitee.com/flycash/broadcast-platform/internal/errs"
	"github.com/hashicorp/go-multierror"
)

// BroadcastStatus 广播状态
type BroadcastStatus string

const (
	BroadcastStatusQueued     BroadcastStatus = "queued"     // 已入队
	BroadcastStatusScheduled  BroadcastStatus = "scheduled"  // 定时等待中
	BroadcastStatusProcessing BroadcastStatus = "processing" // 处理中
	BroadcastStatusProcessed  BroadcastStatus = "processed"  // 全部接收者处理完毕
	BroadcastStatusFailed     BroadcastStatus = "failed"     // 入队失败
	BroadcastStatusCancelled  BroadcastStatus = "cancelled"  // 定时广播被取消
)

func (s BroadcastStatus) IsTerminal() bool {
	return s == BroadcastStatusProcessed || s == BroadcastStatusFailed || s == BroadcastStatusCancelled
}

// ChannelRequest 渠道请求以及该渠道的内容覆盖
type ChannelRequest struct {
	Title      string `json:"title,omitempty"`
	Subtitle   string `json:"subtitle,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	Badge      *int   `json:"badge,omitempty"`
	Sound      string `json:"sound,omitempty"`
}

// DevicePayload 请求中携带的设备信息
type DevicePayload struct {
	Token    string   `json:"token"`
	Platform Platform `json:"platform"`
	BundleID string   `json:"bundleId,omitempty"`
}

// RecipientPayload 显式指定的接收者
type RecipientPayload struct {
	ExternalID string          `json:"externalId,omitempty"`
	Email      string          `json:"email,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	FirstName  string          `json:"firstName,omitempty"`
	LastName   string          `json:"lastName,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Devices    []DevicePayload `json:"devices,omitempty"`
}

// ResolutionError 接收者解析阶段的软错误，不会中断广播
type ResolutionError struct {
	ExternalID string `json:"externalId,omitempty"`
	Email      string `json:"email,omitempty"`
	AudienceID int64  `json:"audienceId,omitempty"`
	Reason     string `json:"reason"`
}

const (
	ReasonEmailNotExist    = "User email does not exist"
	ReasonAudienceNotExist = "Audience does not exist"
)

type BroadcastErrors struct {
	Recipients []ResolutionError `json:"recipients,omitempty"`
}

type BroadcastMetadata struct {
	Errors BroadcastErrors `json:"errors"`
}

// Broadcast 一次广播请求
type Broadcast struct {
	ID             int64
	OrgID          int64
	IdempotencyKey string
	Category       string
	Topic          string
	Title          string
	Content        string
	ActionLink     string
	AdditionalInfo map[string]any
	Channels       map[Channel]ChannelRequest
	Recipients     []RecipientPayload
	AudienceID     int64
	MergeTags      map[string]string
	// 零值表示立即发送
	ScheduleAt time.Time
	Status     BroadcastStatus
	Metadata   BroadcastMetadata
	Pending    int64
	// 接收者是否已经全部分发完毕
	Resolved bool
	SentAt   time.Time
	Ctime    time.Time
	Utime    time.Time
}

// ShouldSchedule 只有未来的时间才需要走定时
func (b Broadcast) ShouldSchedule(now time.Time) bool {
	return !b.ScheduleAt.IsZero() && b.ScheduleAt.After(now)
}

// RequestedChannels 按固定顺序返回请求的渠道
func (b Broadcast) RequestedChannels() []Channel {
	res := make([]Channel, 0, len(b.Channels))
	for c := range b.Channels {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i] < res[j]
	})
	return res
}

// ChannelText 渠道最终使用的自由文本
func (b Broadcast) ChannelText(c Channel) string {
	req := b.Channels[c]
	if req.Body != "" {
		return req.Body
	}
	return b.Content
}

// Validate 校验请求本身，供应商配置与受众是否存在由服务层校验
func (b Broadcast) Validate() error {
	var result *multierror.Error
	if b.OrgID <= 0 {
		result = multierror.Append(result, fmt.Errorf("OrgID = %d", b.OrgID))
	}
	if len(b.Channels) == 0 {
		result = multierror.Append(result, fmt.Errorf("渠道不能为空"))
	}
	for _, c := range b.RequestedChannels() {
		if !c.IsValid() {
			result = multierror.Append(result, fmt.Errorf("渠道非法 %q", c))
			continue
		}
		req := b.Channels[c]
		if strings.TrimSpace(b.ChannelText(c)) == "" && req.TemplateID == "" {
			result = multierror.Append(result, fmt.Errorf("渠道 %s 既没有内容也没有模板", c))
		}
	}
	if b.AudienceID > 0 && len(b.Recipients) > 0 {
		result = multierror.Append(result, fmt.Errorf("audience_id 与 recipients 不能同时指定"))
	}
	if b.AudienceID <= 0 && len(b.Recipients) == 0 && b.Topic == "" {
		result = multierror.Append(result, fmt.Errorf("recipients、audience_id、topic 至少指定一个"))
	}
	for i, r := range b.Recipients {
		if r.ExternalID == "" && r.Email == "" {
			result = multierror.Append(result, fmt.Errorf("第 %d 个接收者缺少 externalId 或 email", i))
		}
		for _, d := range r.Devices {
			if d.Token == "" || !d.Platform.IsValid() {
				result = multierror.Append(result, fmt.Errorf("第 %d 个接收者的设备信息非法", i))
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidParameter, err)
	}
	return nil
}

// BroadcastEdit 定时广播允许修改的字段
type BroadcastEdit struct {
	ScheduleAt time.Time
	Title      *string
	Content    *string
	ActionLink *string
}

// Apply 返回应用修改之后的广播，ScheduleAt 为零值时保持原来的时间
func (e BroadcastEdit) Apply(b Broadcast) Broadcast {
	if !e.ScheduleAt.IsZero() {
		b.ScheduleAt = e.ScheduleAt
	}
	if e.Title != nil {
		b.Title = *e.Title
	}
	if e.Content != nil {
		b.Content = *e.Content
	}
	if e.ActionLink != nil {
		b.ActionLink = *e.ActionLink
	}
	return b
}

// ScheduledJob 定时任务，由调度器独占
type ScheduledJob struct {
	ID          int64
	BroadcastID int64
	OrgID       int64
	FireAt      time.Time
}
