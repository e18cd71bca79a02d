package broadcast

const Topic = "broadcast_tasks"

// Event 一个广播需要执行扇出
type Event struct {
	OrgID       int64 `json:"orgId"`
	BroadcastID int64 `json:"broadcastId"`
}
