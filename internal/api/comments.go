package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/any-hub/blog-em/internal/transport"
)

// Comments 封装 /comments 相关接口。
type Comments struct {
	client *transport.Client
}

// NewComments 基于共享 transport 构造 Comments 客户端。
func NewComments(client *transport.Client) *Comments {
	return &Comments{client: client}
}

// ByPost 返回某篇文章下的全部评论。
func (c *Comments) ByPost(ctx context.Context, postID int) ([]Comment, error) {
	params := url.Values{"postId": {strconv.Itoa(postID)}}
	var comments []Comment
	if err := c.client.Get(ctx, "/comments", params, &comments); err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", postID, err)
	}
	return comments, nil
}

// Get 返回单条评论。
func (c *Comments) Get(ctx context.Context, id int) (Comment, error) {
	var comment Comment
	if err := c.client.Get(ctx, commentPath(id), nil, &comment); err != nil {
		return Comment{}, fmt.Errorf("get comment %d: %w", id, err)
	}
	return comment, nil
}

// Create 创建评论。
func (c *Comments) Create(ctx context.Context, input CommentInput) (Comment, error) {
	var comment Comment
	if err := c.client.Post(ctx, "/comments", input, &comment); err != nil {
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// Update 通过 PATCH 更新评论。
func (c *Comments) Update(ctx context.Context, id int, patch CommentPatch) (Comment, error) {
	var comment Comment
	if err := c.client.Patch(ctx, commentPath(id), patch, &comment); err != nil {
		return Comment{}, fmt.Errorf("update comment %d: %w", id, err)
	}
	return comment, nil
}

// Delete 删除评论。
func (c *Comments) Delete(ctx context.Context, id int) error {
	if err := c.client.Delete(ctx, commentPath(id)); err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	return nil
}

func commentPath(id int) string {
	return "/comments/" + strconv.Itoa(id)
}
