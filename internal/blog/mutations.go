package blog

import (
	"context"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/query"
)

// UpdatePostInput 是 UpdatePost 的参数。
type UpdatePostInput struct {
	ID    int
	Patch api.PostPatch
}

// UpdateCommentInput 是 UpdateComment 的参数。
type UpdateCommentInput struct {
	ID    int
	Patch api.CommentPatch
}

// 每次调用都返回新的 Mutation，状态只属于调用方。

// UpdatePostMutation 乐观地合并 patch；成功后写入详情缓存并失效全部列表页。
func (s *Service) UpdatePostMutation() *query.Mutation[UpdatePostInput, api.Post] {
	return query.NewMutation(s.client,
		func(ctx context.Context, in UpdatePostInput) (api.Post, error) {
			return s.api.Posts.Update(ctx, in.ID, in.Patch)
		},
		query.MutationOptions[UpdatePostInput, api.Post]{
			Name: "update_post",
			OnMutate: func(_ context.Context, _ *query.Client, in UpdatePostInput) func() {
				return s.OptimisticPostUpdate(in.ID, in.Patch)
			},
			Reconcile: func(_ context.Context, c *query.Client, out api.Post, in UpdatePostInput) error {
				c.SetQueryData(PostDetail(in.ID), func(any, bool) any { return out })
				c.InvalidateQueries(PostLists())
				s.logReconcile("update_post", PostDetail(in.ID), PostLists())
				return nil
			},
		})
}

// DeletePostMutation 成功后删除详情与评论缓存，并失效全部列表页。
func (s *Service) DeletePostMutation() *query.Mutation[int, struct{}] {
	return query.NewMutation(s.client,
		func(ctx context.Context, id int) (struct{}, error) {
			return struct{}{}, s.api.Posts.Delete(ctx, id)
		},
		query.MutationOptions[int, struct{}]{
			Name: "delete_post",
			Reconcile: func(_ context.Context, c *query.Client, _ struct{}, id int) error {
				c.RemoveQueries(PostDetail(id))
				c.RemoveQueries(CommentsByPost(id))
				c.InvalidateQueries(PostLists())
				s.logReconcile("delete_post", PostDetail(id), CommentsByPost(id), PostLists())
				return nil
			},
		})
}

// CreatePostMutation 成功后失效全部列表页。
func (s *Service) CreatePostMutation() *query.Mutation[api.PostInput, api.Post] {
	return query.NewMutation(s.client,
		func(ctx context.Context, in api.PostInput) (api.Post, error) {
			return s.api.Posts.Create(ctx, in)
		},
		query.MutationOptions[api.PostInput, api.Post]{
			Name: "create_post",
			Reconcile: func(_ context.Context, c *query.Client, _ api.Post, _ api.PostInput) error {
				c.InvalidateQueries(PostLists())
				s.logReconcile("create_post", PostLists())
				return nil
			},
		})
}

// CreateCommentMutation 成功后把新评论追加到所属文章的评论列表。
func (s *Service) CreateCommentMutation() *query.Mutation[api.CommentInput, api.Comment] {
	return query.NewMutation(s.client,
		func(ctx context.Context, in api.CommentInput) (api.Comment, error) {
			return s.api.Comments.Create(ctx, in)
		},
		query.MutationOptions[api.CommentInput, api.Comment]{
			Name: "create_comment",
			Reconcile: func(_ context.Context, c *query.Client, out api.Comment, in api.CommentInput) error {
				key := CommentsByPost(in.PostID)
				query.SetDataAs(c, key, func(old []api.Comment, _ bool) []api.Comment {
					next := make([]api.Comment, 0, len(old)+1)
					next = append(next, old...)
					return append(next, out)
				})
				s.logReconcile("create_comment", key)
				return nil
			},
		})
}

// UpdateCommentMutation 成功后写入评论详情，并替换文章评论列表中的同 ID 评论。
func (s *Service) UpdateCommentMutation() *query.Mutation[UpdateCommentInput, api.Comment] {
	return query.NewMutation(s.client,
		func(ctx context.Context, in UpdateCommentInput) (api.Comment, error) {
			return s.api.Comments.Update(ctx, in.ID, in.Patch)
		},
		query.MutationOptions[UpdateCommentInput, api.Comment]{
			Name: "update_comment",
			Reconcile: func(_ context.Context, c *query.Client, out api.Comment, in UpdateCommentInput) error {
				c.SetQueryData(CommentDetail(in.ID), func(any, bool) any { return out })
				list := CommentsByPost(out.PostID)
				// 列表不在缓存中时不凭空写入空列表。
				query.PatchDataAs(c, list, func(old []api.Comment) []api.Comment {
					next := make([]api.Comment, len(old))
					for i, comment := range old {
						if comment.ID == in.ID {
							comment = out
						}
						next[i] = comment
					}
					return next
				})
				s.logReconcile("update_comment", CommentDetail(in.ID), list)
				return nil
			},
		})
}

// DeleteCommentMutation 成功后删除评论详情并失效全部评论列表。
func (s *Service) DeleteCommentMutation() *query.Mutation[int, struct{}] {
	return query.NewMutation(s.client,
		func(ctx context.Context, id int) (struct{}, error) {
			return struct{}{}, s.api.Comments.Delete(ctx, id)
		},
		query.MutationOptions[int, struct{}]{
			Name: "delete_comment",
			Reconcile: func(_ context.Context, c *query.Client, _ struct{}, id int) error {
				c.RemoveQueries(CommentDetail(id))
				c.InvalidateQueries(CommentLists())
				s.logReconcile("delete_comment", CommentDetail(id), CommentLists())
				return nil
			},
		})
}

// OptimisticPostUpdate 把 patch 合并进缓存中的文章详情，返回恢复原值的回滚函数。
// 缓存中没有该文章时不做修改，回滚为空操作。
func (s *Service) OptimisticPostUpdate(id int, patch api.PostPatch) (rollback func()) {
	key := PostDetail(id)
	previous, ok := query.DataAs[api.Post](s.client, key)
	if !ok {
		return func() {}
	}
	query.PatchDataAs(s.client, key, func(old api.Post) api.Post {
		return patch.Apply(old)
	})
	return func() {
		query.SetDataAs(s.client, key, func(api.Post, bool) api.Post { return previous })
	}
}

// UpdatePost 执行一次 UpdatePostMutation。
func (s *Service) UpdatePost(ctx context.Context, id int, patch api.PostPatch) (api.Post, error) {
	return s.UpdatePostMutation().Execute(ctx, UpdatePostInput{ID: id, Patch: patch})
}

// DeletePost 执行一次 DeletePostMutation。
func (s *Service) DeletePost(ctx context.Context, id int) error {
	_, err := s.DeletePostMutation().Execute(ctx, id)
	return err
}

// CreatePost 执行一次 CreatePostMutation。
func (s *Service) CreatePost(ctx context.Context, in api.PostInput) (api.Post, error) {
	return s.CreatePostMutation().Execute(ctx, in)
}

// CreateComment 执行一次 CreateCommentMutation。
func (s *Service) CreateComment(ctx context.Context, in api.CommentInput) (api.Comment, error) {
	return s.CreateCommentMutation().Execute(ctx, in)
}

// UpdateComment 执行一次 UpdateCommentMutation。
func (s *Service) UpdateComment(ctx context.Context, id int, patch api.CommentPatch) (api.Comment, error) {
	return s.UpdateCommentMutation().Execute(ctx, UpdateCommentInput{ID: id, Patch: patch})
}

// DeleteComment 执行一次 DeleteCommentMutation。
func (s *Service) DeleteComment(ctx context.Context, id int) error {
	_, err := s.DeleteCommentMutation().Execute(ctx, id)
	return err
}
