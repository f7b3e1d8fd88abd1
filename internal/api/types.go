package api

// Post 对应 /posts 资源。
type Post struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// PostInput 是创建文章时的请求体（不含 id）。
type PostInput struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// PostPatch 是部分更新请求体，nil 字段不会被发送。
type PostPatch struct {
	Title  *string `json:"title,omitempty"`
	Body   *string `json:"body,omitempty"`
	UserID *int    `json:"userId,omitempty"`
}

// Apply 把 patch 合并到 post 的副本上。
func (p PostPatch) Apply(post Post) Post {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Body != nil {
		post.Body = *p.Body
	}
	if p.UserID != nil {
		post.UserID = *p.UserID
	}
	return post
}

// Comment 对应 /comments 资源。
type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// CommentInput 是创建评论时的请求体。
type CommentInput struct {
	PostID int    `json:"postId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// CommentPatch 是评论的部分更新请求体。
type CommentPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// Apply 把 patch 合并到 comment 的副本上。
func (p CommentPatch) Apply(comment Comment) Comment {
	if p.Name != nil {
		comment.Name = *p.Name
	}
	if p.Email != nil {
		comment.Email = *p.Email
	}
	if p.Body != nil {
		comment.Body = *p.Body
	}
	return comment
}

// User 对应 /users 资源，仅保留展示作者需要的字段。
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// String returns a pointer to s, for building patches.
func String(s string) *string {
	return &s
}
