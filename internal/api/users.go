package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/any-hub/blog-em/internal/transport"
)

// Users 封装 /users 只读接口，用于展示文章作者。
type Users struct {
	client *transport.Client
}

// NewUsers 基于共享 transport 构造 Users 客户端。
func NewUsers(client *transport.Client) *Users {
	return &Users{client: client}
}

// List 返回全部用户。
func (u *Users) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := u.client.Get(ctx, "/users", nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get 返回单个用户。
func (u *Users) Get(ctx context.Context, id int) (User, error) {
	var user User
	if err := u.client.Get(ctx, userPath(id), nil, &user); err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// Posts 返回某个用户发表的文章。
func (u *Users) Posts(ctx context.Context, id int) ([]Post, error) {
	var posts []Post
	if err := u.client.Get(ctx, userPath(id)+"/posts", nil, &posts); err != nil {
		return nil, fmt.Errorf("list posts of user %d: %w", id, err)
	}
	return posts, nil
}

func userPath(id int) string {
	return "/users/" + strconv.Itoa(id)
}
