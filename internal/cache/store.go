package cache

import "time"

// Status 描述条目最近一次获取的结果。
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry 是缓存条目的快照。Data 只会被成功的获取或显式写入替换，
// 失败只更新 Status/Err。
type Entry struct {
	Key            Key
	Data           any
	HasData        bool
	Status         Status
	Err            error
	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time
	// Invalidated 表示条目已被标记为过期，下一次被活跃订阅者访问时回源。
	Invalidated bool
	// Fetching 表示当前有请求在途（包括后台刷新）。
	Fetching bool
	// Subscribers 由 Store 维护，Updater 对它的修改会被忽略。
	Subscribers int
	// GCTime 是失去全部订阅者后的保留时长；0 使用 Store 默认值，负数表示永不回收。
	GCTime time.Duration
	// Version 由 Store 在每次变更时单调递增（跨条目全局有序），用于丢弃乱序送达的事件。
	Version uint64
}

// Updater 在 Store 锁内执行，返回条目的新值；exists=false 时 current 为零值条目。
type Updater func(current Entry, exists bool) Entry

// EventType 描述订阅者收到的变更类型。
type EventType string

const (
	EventUpdated     EventType = "updated"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
)

// Event 是推送给订阅者的变更通知。
type Event struct {
	Type  EventType
	Entry Entry
}

// Listener 在 Store 锁外被调用，不应长时间阻塞。
type Listener func(Event)

// Store 负责管理查询结果的内存缓存。
type Store interface {
	// Get 返回条目快照；不存在时 ok=false。
	Get(key Key) (Entry, bool)

	// Set 以原子方式执行 updater 并写回结果，返回写入后的快照。
	Set(key Key, updater Updater) Entry

	// Invalidate 将所有匹配 prefix 的条目标记为过期（保留数据），返回匹配到的 Key。
	Invalidate(prefix Key) []Key

	// Remove 删除单个条目，返回是否存在。
	Remove(key Key) bool

	// RemoveMatching 删除所有匹配 prefix 的条目。
	RemoveMatching(prefix Key) []Key

	// Subscribe 登记订阅者并返回幂等的取消函数。订阅不存在的 Key 会创建空条目。
	Subscribe(key Key, listener Listener) (unsubscribe func())

	// Entries 返回按 Key 排序的全部条目快照，供诊断使用。
	Entries() []Entry

	// Clear 删除全部条目并停止 GC 计时器。
	Clear()
}
