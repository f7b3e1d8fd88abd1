package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/any-hub/blog-em/internal/transport"
)

// DefaultPageSize 是 /posts 分页的默认条数。
const DefaultPageSize = 10

// Posts 封装 /posts 相关接口。
type Posts struct {
	client *transport.Client
}

// NewPosts 基于共享 transport 构造 Posts 客户端。
func NewPosts(client *transport.Client) *Posts {
	return &Posts{client: client}
}

// List 返回第 page 页（从 1 开始）的文章，limit <= 0 时使用默认页大小。
func (p *Posts) List(ctx context.Context, page, limit int) ([]Post, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	params := url.Values{
		"_page":  {strconv.Itoa(page)},
		"_limit": {strconv.Itoa(limit)},
	}
	var posts []Post
	if err := p.client.Get(ctx, "/posts", params, &posts); err != nil {
		return nil, fmt.Errorf("list posts page %d: %w", page, err)
	}
	return posts, nil
}

// Get 返回单篇文章。
func (p *Posts) Get(ctx context.Context, id int) (Post, error) {
	var post Post
	if err := p.client.Get(ctx, postPath(id), nil, &post); err != nil {
		return Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return post, nil
}

// Create 创建文章并返回服务端分配 id 后的结果。
func (p *Posts) Create(ctx context.Context, input PostInput) (Post, error) {
	var post Post
	if err := p.client.Post(ctx, "/posts", input, &post); err != nil {
		return Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// Update 通过 PATCH 更新文章。
func (p *Posts) Update(ctx context.Context, id int, patch PostPatch) (Post, error) {
	var post Post
	if err := p.client.Patch(ctx, postPath(id), patch, &post); err != nil {
		return Post{}, fmt.Errorf("update post %d: %w", id, err)
	}
	return post, nil
}

// Delete 删除文章。
func (p *Posts) Delete(ctx context.Context, id int) error {
	if err := p.client.Delete(ctx, postPath(id)); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

// Comments 通过嵌套路由 /posts/{id}/comments 返回评论。
func (p *Posts) Comments(ctx context.Context, id int) ([]Comment, error) {
	var comments []Comment
	if err := p.client.Get(ctx, postPath(id)+"/comments", nil, &comments); err != nil {
		return nil, fmt.Errorf("get comments of post %d: %w", id, err)
	}
	return comments, nil
}

func postPath(id int) string {
	return "/posts/" + strconv.Itoa(id)
}
