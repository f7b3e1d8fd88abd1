package blog

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/api/apitest"
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/config"
	"github.com/any-hub/blog-em/internal/query"
	"github.com/any-hub/blog-em/internal/resource"
)

func newTestService(t *testing.T) (*Service, *apitest.Server) {
	t.Helper()
	stub := apitest.NewServer(t)
	store := cache.NewStore(cache.StoreOptions{})
	client := query.NewClient(store, query.ClientOptions{
		Retry: query.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	t.Cleanup(func() {
		client.Close()
		store.Clear()
	})
	return NewService(stub.API(t), client, Options{}), stub
}

func pageQuery(page int) string {
	return "_limit=10&_page=" + strconv.Itoa(page)
}

func TestListDetailDeleteScenario(t *testing.T) {
	svc, stub := newTestService(t)
	ctx := context.Background()

	list := svc.Posts(1)
	require.Eventually(t, func() bool { return list.Result().Status == cache.StatusSuccess }, time.Second, 5*time.Millisecond)
	posts, ok := query.ResultData[[]api.Post](list.Result())
	require.True(t, ok)
	require.Len(t, posts, 10)
	list.Close()

	stub.SetDelay(100 * time.Millisecond)
	started := time.Now()
	detail, err := svc.PostDetail(ctx, 3)
	elapsed := time.Since(started)
	stub.SetDelay(0)
	require.NoError(t, err)
	require.Equal(t, 3, detail.Post.ID)
	require.Len(t, detail.Comments, 3)
	require.Less(t, elapsed, 190*time.Millisecond, "detail and comments are fetched in parallel")
	require.Equal(t, 1, stub.Count(http.MethodGet, "/posts/3", ""))
	require.Equal(t, 1, stub.Count(http.MethodGet, "/comments", "postId=3"))

	require.NoError(t, svc.DeletePost(ctx, 3))
	_, found := svc.Client().Store().Get(PostDetail(3))
	require.False(t, found, "detail entry is removed")
	entry, found := svc.Client().Store().Get(PostList(1))
	require.True(t, found)
	require.True(t, entry.Invalidated, "list pages are invalidated")
	require.True(t, entry.HasData, "invalidated list keeps its data")

	list = svc.Posts(1)
	defer list.Close()
	require.Eventually(t, func() bool {
		return stub.Count(http.MethodGet, "/posts", pageQuery(1)) == 2
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		r := list.Result()
		return r.Status == cache.StatusSuccess && !r.Stale
	}, time.Second, 5*time.Millisecond)
	posts, _ = query.ResultData[[]api.Post](list.Result())
	for _, post := range posts {
		require.NotEqual(t, 3, post.ID, "deleted post is gone after refetch")
	}
}

func TestUpdatePostPatchesDetailWithoutRefetch(t *testing.T) {
	svc, stub := newTestService(t)
	ctx := context.Background()

	updated, err := svc.UpdatePost(ctx, 5, api.PostPatch{Title: api.String("X")})
	require.NoError(t, err)
	require.Equal(t, "X", updated.Title)

	post, err := svc.GetPost(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "X", post.Title)
	require.NotEmpty(t, post.Body)
	require.Zero(t, stub.Count(http.MethodGet, "/posts/5", ""), "read served from the reconciled cache")
}

func TestUpdatePostRollsBackOptimisticChange(t *testing.T) {
	svc, stub := newTestService(t)
	ctx := context.Background()

	original, err := svc.GetPost(ctx, 6)
	require.NoError(t, err)

	stub.FailNext(http.MethodPatch, "/posts/6", http.StatusInternalServerError, 1)
	mutation := svc.UpdatePostMutation()
	_, err = mutation.Execute(ctx, UpdatePostInput{ID: 6, Patch: api.PostPatch{Title: api.String("optimistic")}})
	require.Error(t, err)
	require.Equal(t, query.MutationError, mutation.State().Status)
	require.Equal(t, 1, stub.Count(http.MethodPatch, "/posts/6", ""), "mutations are never retried")

	cached, ok := query.DataAs[api.Post](svc.Client(), PostDetail(6))
	require.True(t, ok)
	require.Equal(t, original, cached)
}

func TestOptimisticPostUpdateMergesAndRestores(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	noop := svc.OptimisticPostUpdate(42, api.PostPatch{Title: api.String("ignored")})
	noop()
	_, ok := query.DataAs[api.Post](svc.Client(), PostDetail(42))
	require.False(t, ok, "nothing cached, nothing written")

	original, err := svc.GetPost(ctx, 7)
	require.NoError(t, err)
	rollback := svc.OptimisticPostUpdate(7, api.PostPatch{Title: api.String("draft")})
	patched, _ := query.DataAs[api.Post](svc.Client(), PostDetail(7))
	require.Equal(t, "draft", patched.Title)
	require.Equal(t, original.Body, patched.Body)

	rollback()
	restored, _ := query.DataAs[api.Post](svc.Client(), PostDetail(7))
	require.Equal(t, original, restored)
}

func TestCreatePostInvalidatesLists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListPosts(ctx, 1)
	require.NoError(t, err)
	created, err := svc.CreatePost(ctx, api.PostInput{Title: "t", Body: "b", UserID: 1})
	require.NoError(t, err)
	require.Equal(t, 101, created.ID)

	entry, _ := svc.Client().Store().Get(PostList(1))
	require.True(t, entry.Invalidated)
}

func TestPrefetchNextPage(t *testing.T) {
	svc, stub := newTestService(t)
	ctx := context.Background()

	svc.PrefetchNextPage(ctx, 1)
	entry, ok := svc.Client().Store().Get(PostList(2))
	require.True(t, ok)
	require.Equal(t, cache.StatusSuccess, entry.Status)
	require.Zero(t, entry.Subscribers)

	_, err := svc.ListPosts(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, stub.Count(http.MethodGet, "/posts", pageQuery(2)), "prefetched page is served from cache")

	svc.PrefetchNextPage(ctx, svc.MaxPostPage())
	require.Zero(t, stub.Count(http.MethodGet, "/posts", pageQuery(11)))

	stub.FailNext(http.MethodGet, "/posts", http.StatusNotFound, 1)
	require.NotPanics(t, func() { svc.PrefetchNextPage(ctx, 2) })
}

func TestDisabledQueriesForMissingIDs(t *testing.T) {
	svc, stub := newTestService(t)

	obs := svc.Comments(0)
	defer obs.Close()
	require.Equal(t, cache.StatusIdle, obs.Result().Status)

	_, err := svc.GetPost(context.Background(), 0)
	require.ErrorIs(t, err, query.ErrDisabled)
	require.Empty(t, stub.Requests())
}

func TestCommentMutationsReconcileLists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comments, err := svc.GetComments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	created, err := svc.CreateComment(ctx, api.CommentInput{PostID: 2, Email: "me@example.com", Body: "hello"})
	require.NoError(t, err)
	cached, _ := query.DataAs[[]api.Comment](svc.Client(), CommentsByPost(2))
	require.Len(t, cached, 4)
	require.Equal(t, created, cached[3])

	target := comments[0].ID
	updated, err := svc.UpdateComment(ctx, target, api.CommentPatch{Body: api.String("edited")})
	require.NoError(t, err)
	cached, _ = query.DataAs[[]api.Comment](svc.Client(), CommentsByPost(2))
	require.Equal(t, updated, cached[0])
	detail, ok := query.DataAs[api.Comment](svc.Client(), CommentDetail(target))
	require.True(t, ok)
	require.Equal(t, "edited", detail.Body)

	require.NoError(t, svc.DeleteComment(ctx, target))
	_, ok = svc.Client().Store().Get(CommentDetail(target))
	require.False(t, ok)
	entry, _ := svc.Client().Store().Get(CommentsByPost(2))
	require.True(t, entry.Invalidated)
}

func TestUpdateCommentSkipsUncachedList(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateComment(context.Background(), 1, api.CommentPatch{Body: api.String("x")})
	require.NoError(t, err)
	_, ok := svc.Client().Store().Get(CommentsByPost(1))
	require.False(t, ok, "an uncached list is not created as empty")
}

func TestPoliciesFromConfig(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			StaleTime: config.Duration(time.Minute),
			GCTime:    config.Duration(2 * time.Minute),
		},
		Resources: []config.ResourceConfig{{Name: "comments", StaleTime: config.Duration(10 * time.Minute)}},
	}
	policies := PoliciesFromConfig(cfg)
	require.Equal(t, resource.DefaultStaleTime, policies[resource.Posts].StaleTime)
	require.Equal(t, 10*time.Minute, policies[resource.Comments].StaleTime)
	require.Equal(t, 30*time.Minute, policies[resource.Users].StaleTime)

	svc := NewService(nil, query.NewClient(cache.NewStore(cache.StoreOptions{}), query.ClientOptions{}), Options{Policies: policies})
	require.Equal(t, 10*time.Minute, svc.Options(resource.Comments).StaleTime)
	require.Equal(t, query.Options{}, svc.Options("albums"))
}

func TestExplicitGlobalPolicyOverridesRegistryDefaults(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{
			StaleTime:    config.Duration(time.Minute),
			GCTime:       config.Duration(-time.Second),
			StaleTimeSet: true,
			GCTimeSet:    true,
		},
		Resources: []config.ResourceConfig{
			{Name: "comments", StaleTime: config.Duration(10 * time.Minute), GCTime: config.Duration(time.Hour)},
		},
	}
	policies := PoliciesFromConfig(cfg)
	require.Equal(t, time.Minute, policies[resource.Posts].StaleTime)
	require.Equal(t, time.Minute, policies[resource.Users].StaleTime, "explicit global value beats the registry default")
	require.Equal(t, resource.NeverCollect, policies[resource.Posts].GCTime)
	require.Equal(t, 10*time.Minute, policies[resource.Comments].StaleTime)
	require.Equal(t, time.Hour, policies[resource.Comments].GCTime)

	svc := NewService(nil, query.NewClient(cache.NewStore(cache.StoreOptions{}), query.ClientOptions{}), Options{Policies: policies})
	require.Negative(t, svc.Options(resource.Users).GCTime)
}

func TestZeroGlobalStaleTimeMeansAlwaysStale(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{StaleTimeSet: true},
		Resources: []config.ResourceConfig{
			{Name: "users", StaleTime: config.Duration(-time.Second)},
		},
	}
	policies := PoliciesFromConfig(cfg)
	require.Zero(t, policies[resource.Posts].StaleTime)
	require.Zero(t, policies[resource.Users].StaleTime)
	require.Equal(t, resource.DefaultGCTime, policies[resource.Posts].GCTime)

	svc := NewService(nil, query.NewClient(cache.NewStore(cache.StoreOptions{}), query.ClientOptions{}), Options{Policies: policies})
	require.Negative(t, svc.Options(resource.Posts).StaleTime)
}

func TestKeysShareFamilyPrefixes(t *testing.T) {
	require.True(t, PostList(3).HasPrefix(PostLists()))
	require.True(t, PostDetail(3).HasPrefix(PostsRoot()))
	require.False(t, PostDetail(3).HasPrefix(PostLists()))
	require.True(t, CommentsByPost(3).HasPrefix(CommentLists()))
	require.Equal(t, `["comments","list","post",3]`, CommentsByPost(3).String())
	require.Equal(t, resource.Users, UserDetail(1).Resource())
	require.True(t, PostDetail(3).HasPrefix(PostDetails()))
	require.True(t, CommentDetail(1).HasPrefix(CommentDetails()))
	require.True(t, CommentDetail(1).HasPrefix(CommentsRoot()))
	require.True(t, UserDetail(1).HasPrefix(UserDetails()))
	require.True(t, UserDetail(1).HasPrefix(UsersRoot()))
}

func TestScopePrefix(t *testing.T) {
	cases := []struct {
		resource string
		scope    string
		want     string
	}{
		{resource.Posts, ScopeAll, PostsRoot().String()},
		{resource.Posts, ScopeDetail, PostDetails().String()},
		{resource.Comments, ScopeList, CommentLists().String()},
		{resource.Comments, ScopeDetail, CommentDetails().String()},
		{resource.Users, ScopeAll, UsersRoot().String()},
	}
	for _, tc := range cases {
		prefix, ok := ScopePrefix(tc.resource, tc.scope)
		require.True(t, ok, "%s/%s", tc.resource, tc.scope)
		require.Equal(t, tc.want, prefix.String())
	}
	_, ok := ScopePrefix(resource.Users, ScopeList)
	require.False(t, ok)
	_, ok = ScopePrefix("albums", ScopeAll)
	require.False(t, ok)
}

func TestRemoveScopeLeavesOtherResources(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetComment(ctx, 1)
	require.NoError(t, err)
	_, err = svc.GetComments(ctx, 1)
	require.NoError(t, err)
	_, err = svc.GetPost(ctx, 1)
	require.NoError(t, err)

	keys, err := svc.RemoveScope(resource.Comments, ScopeDetail)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.True(t, keys[0].Equal(CommentDetail(1)))
	_, ok := svc.Client().Store().Get(CommentsByPost(1))
	require.True(t, ok, "comment lists are outside the detail scope")

	keys, err = svc.InvalidateScope(resource.Posts, ScopeAll)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	entry, _ := svc.Client().Store().Get(PostDetail(1))
	require.True(t, entry.Invalidated)

	_, err = svc.InvalidateScope(resource.Users, ScopeList)
	require.ErrorIs(t, err, ErrUnknownScope)
}
