package blog

import (
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/resource"
)

// 查询键按 资源/范围/参数 组织，便于按前缀批量失效。

func PostsRoot() cache.Key { return cache.NewKey(resource.Posts) }

func PostLists() cache.Key { return PostsRoot().Append("list") }

func PostList(page int) cache.Key { return PostLists().Append(page) }

func PostDetails() cache.Key { return PostsRoot().Append("detail") }

func PostDetail(id int) cache.Key { return PostDetails().Append(id) }

func CommentsRoot() cache.Key { return cache.NewKey(resource.Comments) }

func CommentLists() cache.Key { return CommentsRoot().Append("list") }

func CommentsByPost(postID int) cache.Key { return CommentLists().Append("post", postID) }

func CommentDetails() cache.Key { return CommentsRoot().Append("detail") }

func CommentDetail(id int) cache.Key { return CommentDetails().Append(id) }

func UsersRoot() cache.Key { return cache.NewKey(resource.Users) }

func UserDetails() cache.Key { return UsersRoot().Append("detail") }

func UserDetail(id int) cache.Key { return UserDetails().Append(id) }

// Scope 是资源下可整体失效或删除的一组查询：空串表示整个资源。
const (
	ScopeAll    = ""
	ScopeList   = "list"
	ScopeDetail = "detail"
)

// ScopePrefix 返回资源某个范围的键前缀；users 没有列表查询。
func ScopePrefix(resourceName, scope string) (cache.Key, bool) {
	switch resourceName {
	case resource.Posts:
		switch scope {
		case ScopeAll:
			return PostsRoot(), true
		case ScopeList:
			return PostLists(), true
		case ScopeDetail:
			return PostDetails(), true
		}
	case resource.Comments:
		switch scope {
		case ScopeAll:
			return CommentsRoot(), true
		case ScopeList:
			return CommentLists(), true
		case ScopeDetail:
			return CommentDetails(), true
		}
	case resource.Users:
		switch scope {
		case ScopeAll:
			return UsersRoot(), true
		case ScopeDetail:
			return UserDetails(), true
		}
	}
	return nil, false
}
