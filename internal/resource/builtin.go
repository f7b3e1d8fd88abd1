package resource

import "time"

const (
	// DefaultStaleTime 与原站点一致：列表与详情 5 分钟内不重复请求。
	DefaultStaleTime = 5 * time.Minute
	// DefaultGCTime 是无人订阅后缓存保留的默认时长。
	DefaultGCTime = 5 * time.Minute
	// NeverCollect 表示条目失去订阅者后也不回收。
	NeverCollect time.Duration = -1
)

const (
	Posts    = "posts"
	Comments = "comments"
	Users    = "users"
)

func init() {
	MustRegister(Metadata{
		Key:         Posts,
		Description: "Paginated blog posts and post detail",
		Endpoint:    "/posts",
		Policy:      Policy{StaleTime: DefaultStaleTime, GCTime: DefaultGCTime},
	})
	MustRegister(Metadata{
		Key:         Comments,
		Description: "Comments scoped to a post",
		Endpoint:    "/comments",
		Policy:      Policy{StaleTime: DefaultStaleTime, GCTime: DefaultGCTime},
	})
	MustRegister(Metadata{
		Key:         Users,
		Description: "Post authors",
		Endpoint:    "/users",
		Policy:      Policy{StaleTime: 30 * time.Minute, GCTime: DefaultGCTime},
	})
}
