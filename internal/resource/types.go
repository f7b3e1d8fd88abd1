package resource

import "time"

// Policy 描述某类资源查询结果在缓存中的生命周期。
type Policy struct {
	// StaleTime 之内的数据视为新鲜，不会触发回源；0 表示立即过期。
	StaleTime time.Duration
	// GCTime 是条目失去全部订阅者后保留的时长，NeverCollect 表示永不回收。
	GCTime time.Duration
}

// Metadata 记录一个资源的静态信息，供配置校验和诊断端使用。
type Metadata struct {
	Key         string
	Description string
	// Endpoint 是 REST 服务上的集合路径，例如 /posts。
	Endpoint string
	Policy   Policy
}
