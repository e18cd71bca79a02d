package domain

// Preference 接收者在某个分类下的渠道开关
type Preference struct {
	OrgID       int64
	RecipientID int64
	Category    string
	Channels    map[Channel]bool
}

// Enabled 偏好里没有出现的渠道视为关闭
func (p Preference) Enabled(c Channel) bool {
	return p.Channels[c]
}

// Subscription 接收者对主题的订阅，以及主题下分类的开关
type Subscription struct {
	OrgID       int64
	RecipientID int64
	Topic       string
	Categories  map[string]bool
}
