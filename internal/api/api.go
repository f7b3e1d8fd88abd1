package api

import "github.com/any-hub/blog-em/internal/transport"

// API 聚合全部资源客户端，共享同一个 transport。
type API struct {
	Posts    *Posts
	Comments *Comments
	Users    *Users
}

// New 基于 transport.Client 构造全部资源客户端。
func New(client *transport.Client) *API {
	return &API{
		Posts:    NewPosts(client),
		Comments: NewComments(client),
		Users:    NewUsers(client),
	}
}
