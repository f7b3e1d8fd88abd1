package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/api/apitest"
	"github.com/any-hub/blog-em/internal/transport"
)

func TestPostsListUsesPageAndLimit(t *testing.T) {
	stub := apitest.NewServer(t)
	client := stub.API(t)

	posts, err := client.Posts.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(posts) != api.DefaultPageSize || posts[0].ID != 11 {
		t.Fatalf("unexpected page 2: %d posts, first id %d", len(posts), posts[0].ID)
	}
	if n := stub.Count(http.MethodGet, "/posts", "_limit=10&_page=2"); n != 1 {
		t.Fatalf("expected one paginated request, got %d", n)
	}
}

func TestPostLifecycle(t *testing.T) {
	stub := apitest.NewServer(t)
	client := stub.API(t)
	ctx := context.Background()

	created, err := client.Posts.Create(ctx, api.PostInput{Title: "hello", Body: "world", UserID: 1})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 101 {
		t.Fatalf("unexpected id %d", created.ID)
	}

	updated, err := client.Posts.Update(ctx, created.ID, api.PostPatch{Title: api.String("X")})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != "X" || updated.Body != "world" {
		t.Fatalf("patch should only touch title: %+v", updated)
	}

	if err := client.Posts.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, err = client.Posts.Get(ctx, created.ID)
	if !transport.IsNotFound(err) {
		t.Fatalf("deleted post should 404, got %v", err)
	}
}

func TestCommentsByPostAndNestedRouteAgree(t *testing.T) {
	stub := apitest.NewServer(t)
	client := stub.API(t)
	ctx := context.Background()

	byQuery, err := client.Comments.ByPost(ctx, 3)
	if err != nil {
		t.Fatalf("by post failed: %v", err)
	}
	nested, err := client.Posts.Comments(ctx, 3)
	if err != nil {
		t.Fatalf("nested failed: %v", err)
	}
	if len(byQuery) != 3 || len(nested) != 3 {
		t.Fatalf("expected 3 comments, got %d/%d", len(byQuery), len(nested))
	}
	for i := range byQuery {
		if byQuery[i] != nested[i] || byQuery[i].PostID != 3 {
			t.Fatalf("comment mismatch at %d: %+v vs %+v", i, byQuery[i], nested[i])
		}
	}
}

func TestCommentLifecycle(t *testing.T) {
	stub := apitest.NewServer(t)
	client := stub.API(t)
	ctx := context.Background()

	created, err := client.Comments.Create(ctx, api.CommentInput{PostID: 1, Email: "a@b.c", Body: "hi"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	updated, err := client.Comments.Update(ctx, created.ID, api.CommentPatch{Body: api.String("edited")})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Body != "edited" || updated.Email != "a@b.c" {
		t.Fatalf("unexpected comment: %+v", updated)
	}
	if err := client.Comments.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := client.Comments.Get(ctx, created.ID); !transport.IsNotFound(err) {
		t.Fatalf("deleted comment should 404, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	stub := apitest.NewServer(t)
	client := stub.API(t)
	ctx := context.Background()

	users, err := client.Users.List(ctx)
	if err != nil || len(users) != 10 {
		t.Fatalf("unexpected users: %d (%v)", len(users), err)
	}
	posts, err := client.Users.Posts(ctx, 2)
	if err != nil {
		t.Fatalf("user posts failed: %v", err)
	}
	for _, post := range posts {
		if post.UserID != 2 {
			t.Fatalf("post %d belongs to user %d", post.ID, post.UserID)
		}
	}
}

func TestErrorsKeepTransportClassification(t *testing.T) {
	stub := apitest.NewServer(t)
	stub.FailNext(http.MethodGet, "/posts/7", http.StatusServiceUnavailable, 1)
	client := stub.API(t)

	_, err := client.Posts.Get(context.Background(), 7)
	if !transport.IsServerError(err) {
		t.Fatalf("wrapped error should stay classifiable, got %v", err)
	}
	if transport.StatusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("status lost: %v", err)
	}
}
