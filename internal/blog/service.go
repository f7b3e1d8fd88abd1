package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/logging"
	"github.com/any-hub/blog-em/internal/query"
	"github.com/any-hub/blog-em/internal/resource"
)

const (
	// DefaultMaxPostPage 是客户端已知的最大页数，不依赖总数响应头。
	DefaultMaxPostPage = 10
)

// Options 控制分页与各资源的缓存策略。
type Options struct {
	PageSize    int
	MaxPostPage int
	// Policies 按资源名给出 StaleTime/GCTime，缺失时使用资源注册表中的默认值。
	Policies map[string]resource.Policy
	Logger   *logrus.Logger
}

// Service 暴露视图需要的查询与写操作。
type Service struct {
	api      *api.API
	client   *query.Client
	pageSize int
	maxPage  int
	policies map[string]resource.Policy
	logger   *logrus.Logger
}

// Detail 是文章详情页的数据：文章本身与其评论。
type Detail struct {
	Post     api.Post      `json:"post"`
	Comments []api.Comment `json:"comments"`
}

// NewService 构造应用层服务。
func NewService(a *api.API, client *query.Client, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = api.DefaultPageSize
	}
	if opts.MaxPostPage <= 0 {
		opts.MaxPostPage = DefaultMaxPostPage
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	policies := make(map[string]resource.Policy)
	for _, meta := range resource.List() {
		policies[meta.Key] = meta.Policy
	}
	for key, policy := range opts.Policies {
		policies[key] = policy
	}
	return &Service{
		api:      a,
		client:   client,
		pageSize: opts.PageSize,
		maxPage:  opts.MaxPostPage,
		policies: policies,
		logger:   opts.Logger,
	}
}

// Client 返回底层查询客户端。
func (s *Service) Client() *query.Client { return s.client }

// MaxPostPage 返回最大页码。
func (s *Service) MaxPostPage() int { return s.maxPage }

// PageSize 返回每页文章数。
func (s *Service) PageSize() int { return s.pageSize }

// Options 返回资源对应的查询选项。策略中的 StaleTime=0 表示立即过期。
func (s *Service) Options(resourceName string) query.Options {
	policy, ok := s.policies[resourceName]
	if !ok {
		return query.Options{}
	}
	opts := query.Options{StaleTime: policy.StaleTime, GCTime: policy.GCTime}
	if opts.StaleTime == 0 {
		opts.StaleTime = -1
	}
	return opts
}

// Posts 订阅第 page 页的文章列表。
func (s *Service) Posts(page int) *query.Observer {
	return s.client.Observe(PostList(page), query.Fetcher(s.fetchPosts(page)), s.Options(resource.Posts))
}

// ListPosts 返回第 page 页文章，新鲜时直接读缓存。
func (s *Service) ListPosts(ctx context.Context, page int) ([]api.Post, error) {
	return query.FetchAs(ctx, s.client, PostList(page), s.fetchPosts(page), s.Options(resource.Posts))
}

// PrefetchNextPage 预取 page+1 页；超过最大页时不做任何事。
func (s *Service) PrefetchNextPage(ctx context.Context, page int) {
	next := page + 1
	if next > s.maxPage || next < 1 {
		return
	}
	s.client.Prefetch(ctx, PostList(next), query.Fetcher(s.fetchPosts(next)), s.Options(resource.Posts))
}

// Post 订阅单篇文章；id<=0 时查询被禁用。
func (s *Service) Post(id int) *query.Observer {
	opts := s.Options(resource.Posts)
	opts.Disabled = id <= 0
	return s.client.Observe(PostDetail(id), query.Fetcher(s.fetchPost(id)), opts)
}

// GetPost 返回单篇文章。
func (s *Service) GetPost(ctx context.Context, id int) (api.Post, error) {
	if id <= 0 {
		return api.Post{}, fmt.Errorf("post %d: %w", id, query.ErrDisabled)
	}
	return query.FetchAs(ctx, s.client, PostDetail(id), s.fetchPost(id), s.Options(resource.Posts))
}

// Comments 订阅文章的评论；postID<=0 时查询被禁用。
func (s *Service) Comments(postID int) *query.Observer {
	opts := s.Options(resource.Comments)
	opts.Disabled = postID <= 0
	return s.client.Observe(CommentsByPost(postID), query.Fetcher(s.fetchComments(postID)), opts)
}

// GetComments 返回文章的评论。
func (s *Service) GetComments(ctx context.Context, postID int) ([]api.Comment, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("comments of post %d: %w", postID, query.ErrDisabled)
	}
	return query.FetchAs(ctx, s.client, CommentsByPost(postID), s.fetchComments(postID), s.Options(resource.Comments))
}

// GetComment 返回单条评论。
func (s *Service) GetComment(ctx context.Context, id int) (api.Comment, error) {
	if id <= 0 {
		return api.Comment{}, fmt.Errorf("comment %d: %w", id, query.ErrDisabled)
	}
	return query.FetchAs(ctx, s.client, CommentDetail(id), func(ctx context.Context) (api.Comment, error) {
		return s.api.Comments.Get(ctx, id)
	}, s.Options(resource.Comments))
}

// GetUser 返回文章作者。
func (s *Service) GetUser(ctx context.Context, id int) (api.User, error) {
	if id <= 0 {
		return api.User{}, fmt.Errorf("user %d: %w", id, query.ErrDisabled)
	}
	return query.FetchAs(ctx, s.client, UserDetail(id), func(ctx context.Context) (api.User, error) {
		return s.api.Users.Get(ctx, id)
	}, s.Options(resource.Users))
}

// PostDetail 并行读取文章与评论。
func (s *Service) PostDetail(ctx context.Context, id int) (Detail, error) {
	var detail Detail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		post, err := s.GetPost(gctx, id)
		detail.Post = post
		return err
	})
	g.Go(func() error {
		comments, err := s.GetComments(gctx, id)
		detail.Comments = comments
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// ErrUnknownScope 表示资源或范围不存在对应的查询键前缀。
var ErrUnknownScope = errors.New("blog: unknown cache scope")

// InvalidateScope 将资源某个范围内的查询标记为过期，活跃的订阅会立即重新获取。
func (s *Service) InvalidateScope(resourceName, scope string) ([]cache.Key, error) {
	prefix, ok := ScopePrefix(resourceName, scope)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownScope, resourceName, scope)
	}
	keys := s.client.InvalidateQueries(prefix)
	s.logReconcile("invalidate_scope", prefix)
	return keys, nil
}

// RemoveScope 删除资源某个范围内的缓存条目，并中止它们的在途请求。
func (s *Service) RemoveScope(resourceName, scope string) ([]cache.Key, error) {
	prefix, ok := ScopePrefix(resourceName, scope)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownScope, resourceName, scope)
	}
	keys := s.client.RemoveQueries(prefix)
	s.logReconcile("remove_scope", prefix)
	return keys, nil
}

// Entries 返回缓存条目快照以及它们按资源策略是否过期。
func (s *Service) Entries() []EntryView {
	entries := s.client.Store().Entries()
	views := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, EntryView{
			Key:         entry.Key.String(),
			Status:      entry.Status,
			HasData:     entry.HasData,
			Stale:       s.client.IsStale(entry, s.Options(entry.Key.Resource())),
			Fetching:    entry.Fetching,
			Subscribers: entry.Subscribers,
			UpdatedAt:   entry.UpdatedAt,
			Error:       errorText(entry.Err),
		})
	}
	return views
}

func (s *Service) fetchPosts(page int) func(ctx context.Context) ([]api.Post, error) {
	return func(ctx context.Context) ([]api.Post, error) {
		return s.api.Posts.List(ctx, page, s.pageSize)
	}
}

func (s *Service) fetchPost(id int) func(ctx context.Context) (api.Post, error) {
	return func(ctx context.Context) (api.Post, error) {
		return s.api.Posts.Get(ctx, id)
	}
}

func (s *Service) fetchComments(postID int) func(ctx context.Context) ([]api.Comment, error) {
	return func(ctx context.Context) ([]api.Comment, error) {
		return s.api.Comments.ByPost(ctx, postID)
	}
}

func (s *Service) logReconcile(name string, keys ...cache.Key) {
	fields := logging.MutationFields(name, "reconciled")
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key.String()
	}
	fields["keys"] = names
	s.logger.WithFields(fields).Debug("cache reconciled")
}
