package domain

import "time"

// Recipient 外部用户，联系方式在存储层加密
type Recipient struct {
	ID         int64
	OrgID      int64
	ExternalID string
	Email      string
	Phone      string
	FirstName  string
	LastName   string
	Metadata   map[string]any
	Devices    []Device
	Ctime      time.Time
	Utime      time.Time
}

// Device 推送设备
type Device struct {
	ID          int64
	RecipientID int64
	Token       string
	Platform    Platform
	BundleID    string
}

func (r Recipient) FindDevice(id int64) (Device, bool) {
	for _, d := range r.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// MergeTags 接收者默认提供的合并标签
func (r Recipient) MergeTags() map[string]string {
	tags := make(map[string]string, 2)
	if r.FirstName != "" {
		tags["first_name"] = r.FirstName
	}
	if r.LastName != "" {
		tags["last_name"] = r.LastName
	}
	return tags
}

// Organization 租户，由外部同步，这里只读
type Organization struct {
	ID        int64
	Name      string
	APISecret string
}
