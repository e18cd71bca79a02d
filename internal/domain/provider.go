package domain

import "time"

// Channel 通知渠道
type Channel string

const (
	ChannelWeb   Channel = "WEB"   // 站内信/实时推送
	ChannelSMS   Channel = "SMS"   // 短信
	ChannelEmail Channel = "EMAIL" // 邮件
	ChannelPush  Channel = "PUSH"  // 移动推送
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWeb, ChannelSMS, ChannelEmail, ChannelPush:
		return true
	default:
		return false
	}
}

// ProviderType 渠道对应的供应商类型，站内信不需要外部供应商
func (c Channel) ProviderType() (ProviderType, bool) {
	switch c {
	case ChannelSMS:
		return ProviderTypeSMS, true
	case ChannelEmail:
		return ProviderTypeEmail, true
	case ChannelPush:
		return ProviderTypePush, true
	default:
		return "", false
	}
}

// Platform 设备平台
type Platform string

const (
	PlatformIOS     Platform = "IOS"
	PlatformAndroid Platform = "ANDROID"
)

func (p Platform) IsValid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// ProviderType 供应商类型
type ProviderType string

const (
	ProviderTypeSMS   ProviderType = "SMS"
	ProviderTypeEmail ProviderType = "EMAIL"
	ProviderTypePush  ProviderType = "PUSH"
)

// Vendor 具体的供应商
type Vendor string

const (
	VendorTwilio   Vendor = "TWILIO"
	VendorAliyun   Vendor = "ALIYUN"
	VendorTencent  Vendor = "TENCENT"
	VendorSendGrid Vendor = "SENDGRID"
	VendorAPNS     Vendor = "APNS"
	VendorFCM      Vendor = "FCM"
)

// VendorForPlatform 推送按设备平台选择供应商
func VendorForPlatform(p Platform) Vendor {
	if p == PlatformIOS {
		return VendorAPNS
	}
	return VendorFCM
}

// ProviderConfig 组织的供应商配置，由外部系统维护，引擎只读
type ProviderConfig struct {
	ID          int64
	OrgID       int64
	Type        ProviderType
	Vendor      Vendor
	Enabled     bool
	Credentials map[string]string // 解密后的凭证
	Utime       time.Time
}

func (c ProviderConfig) Credential(key string) string {
	return c.Credentials[key]
}

// Message 发送给供应商网关的消息
type Message struct {
	OrgID          int64
	NotificationID int64
	RecipientID    int64
	Channel        Channel
	Provider       ProviderConfig

	// 手机号、邮箱或者设备 token
	To       string
	Platform Platform
	BundleID string

	Title      string
	Subtitle   string
	Subject    string
	Body       string
	ActionLink string
	TemplateID string
	MergeTags  map[string]string
	Badge      *int
	Sound      string

	Category string
	Topic    string
	Data     map[string]any
}

// SendOutcome 供应商返回结果的归一化
type SendOutcome string

const (
	SendOutcomeDelivered   SendOutcome = "delivered"
	SendOutcomeAttempted   SendOutcome = "attempted"
	SendOutcomeUndelivered SendOutcome = "undelivered"
)

type SendResult struct {
	Outcome   SendOutcome
	MessageID string
	Reason    string
	Metadata  map[string]string
}

// DeliveryStatus 结果映射到投递记录的状态
func (r SendResult) DeliveryStatus() DeliveryStatus {
	switch r.Outcome {
	case SendOutcomeDelivered:
		return DeliveryStatusDelivered
	case SendOutcomeUndelivered:
		return DeliveryStatusUndelivered
	default:
		return DeliveryStatusAttempted
	}
}
