// Package apitest provides an in-process stand-in for the blog REST API with
// request recording, latency and failure injection, for use in tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/transport"
)

// RecordedRequest 捕获每次请求的方法/路径/查询串/请求体，便于断言客户端行为。
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

type failure struct {
	method string
	path   string
	status int
	times  int
}

// Server 模拟博客 REST 服务：100 篇文章、每篇 3 条评论、10 个用户。
type Server struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	posts       map[int]api.Post
	comments    map[int]api.Comment
	users       map[int]api.User
	nextPost    int
	nextComment int
	requests    []RecordedRequest
	inflight    map[string]int
	maxInflight map[string]int
	failures    []*failure
	delay       time.Duration
}

// NewServer 启动 stub 并在测试结束时关闭。
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		posts:       make(map[int]api.Post),
		comments:    make(map[int]api.Comment),
		users:       make(map[int]api.User),
		inflight:    make(map[string]int),
		maxInflight: make(map[string]int),
	}
	s.seed()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts", s.listPosts)
	mux.HandleFunc("POST /posts", s.createPost)
	mux.HandleFunc("GET /posts/{id}", s.getPost)
	mux.HandleFunc("PATCH /posts/{id}", s.patchPost)
	mux.HandleFunc("DELETE /posts/{id}", s.deletePost)
	mux.HandleFunc("GET /posts/{id}/comments", s.postComments)
	mux.HandleFunc("GET /comments", s.listComments)
	mux.HandleFunc("POST /comments", s.createComment)
	mux.HandleFunc("GET /comments/{id}", s.getComment)
	mux.HandleFunc("PATCH /comments/{id}", s.patchComment)
	mux.HandleFunc("DELETE /comments/{id}", s.deleteComment)
	mux.HandleFunc("GET /users", s.listUsers)
	mux.HandleFunc("GET /users/{id}", s.getUser)
	mux.HandleFunc("GET /users/{id}/posts", s.userPosts)

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.enter(r, route)
		defer s.leave(route)

		if d := s.currentDelay(); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if status, ok := s.takeFailure(r.Method, r.URL.Path); ok {
			w.WriteHeader(status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Transport 返回指向该 stub 的 transport.Client。
func (s *Server) Transport(t testing.TB) *transport.Client {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client, err := transport.New(s.URL, transport.Options{Logger: logger})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	return client
}

// API 返回指向该 stub 的资源客户端集合。
func (s *Server) API(t testing.TB) *api.API {
	t.Helper()
	return api.New(s.Transport(t))
}

// FailNext 让接下来 times 次匹配 method + path 前缀的请求直接返回 status。
func (s *Server) FailNext(method, pathPrefix string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, path: pathPrefix, status: status, times: times})
}

// SetDelay 为每个请求注入固定延迟。
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests 返回已记录请求的副本。
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// Count 统计 method + path（不含查询串）的请求次数；query 非空时还需匹配查询串。
func (s *Server) Count(method, path, query string) int {
	total := 0
	for _, req := range s.Requests() {
		if req.Method != method || req.Path != path {
			continue
		}
		if query != "" && req.Query != query {
			continue
		}
		total++
	}
	return total
}

// MaxConcurrent 返回 "METHOD /path" 同时在途请求数的峰值。
func (s *Server) MaxConcurrent(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInflight[method+" "+path]
}

// Post 直接读取 stub 内部状态。
func (s *Server) Post(id int) (api.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	return post, ok
}

func (s *Server) seed() {
	for u := 1; u <= 10; u++ {
		s.users[u] = api.User{
			ID:       u,
			Name:     fmt.Sprintf("User %d", u),
			Username: fmt.Sprintf("user%d", u),
			Email:    fmt.Sprintf("user%d@example.com", u),
		}
	}
	commentID := 1
	for p := 1; p <= 100; p++ {
		s.posts[p] = api.Post{
			ID:     p,
			Title:  fmt.Sprintf("post %d", p),
			Body:   fmt.Sprintf("body of post %d", p),
			UserID: (p-1)/10 + 1,
		}
		for i := 0; i < 3; i++ {
			s.comments[commentID] = api.Comment{
				ID:     commentID,
				PostID: p,
				Name:   fmt.Sprintf("comment %d", commentID),
				Email:  fmt.Sprintf("reader%d@example.com", commentID),
				Body:   fmt.Sprintf("comment body %d", commentID),
			}
			commentID++
		}
	}
	s.nextPost = 101
	s.nextComment = commentID
}

func (s *Server) enter(r *http.Request, route string) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	})
	s.inflight[route]++
	if s.inflight[route] > s.maxInflight[route] {
		s.maxInflight[route] = s.inflight[route]
	}
}

func (s *Server) leave(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[route]--
}

func (s *Server) currentDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

func (s *Server) takeFailure(method, path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.failures {
		if f.method != method || !strings.HasPrefix(path, f.path) {
			continue
		}
		f.times--
		if f.times <= 0 {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
		}
		return f.status, true
	}
	return 0, false
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	posts := sortedPosts(s.posts)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, paginate(posts, r))
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	post, found := s.posts[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var input api.PostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	post := api.Post{ID: s.nextPost, Title: input.Title, Body: input.Body, UserID: input.UserID}
	s.posts[post.ID] = post
	s.nextPost++
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) patchPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch api.PostPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	post, found := s.posts[id]
	if found {
		post = patch.Apply(post)
		s.posts[id] = post
	}
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.posts, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.commentsOf(id))
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("postId")
	if raw == "" {
		s.mu.Lock()
		all := sortedComments(s.comments, func(api.Comment) bool { return true })
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, all)
		return
	}
	postID, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, []api.Comment{})
		return
	}
	writeJSON(w, http.StatusOK, s.commentsOf(postID))
}

func (s *Server) commentsOf(postID int) []api.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedComments(s.comments, func(c api.Comment) bool { return c.PostID == postID })
}

func (s *Server) getComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	comment, found := s.comments[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var input api.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	comment := api.Comment{ID: s.nextComment, PostID: input.PostID, Name: input.Name, Email: input.Email, Body: input.Body}
	s.comments[comment.ID] = comment
	s.nextComment++
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) patchComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch api.CommentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	comment, found := s.comments[id]
	if found {
		comment = patch.Apply(comment)
		s.comments[id] = comment
	}
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.comments, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]api.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	s.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	user, found := s.users[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) userPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	var posts []api.Post
	for _, post := range sortedPosts(s.posts) {
		if post.UserID == id {
			posts = append(posts, post)
		}
	}
	s.mu.Unlock()
	if posts == nil {
		posts = []api.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func sortedPosts(m map[int]api.Post) []api.Post {
	posts := make([]api.Post, 0, len(m))
	for _, post := range m {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

func sortedComments(m map[int]api.Comment, keep func(api.Comment) bool) []api.Comment {
	comments := make([]api.Comment, 0)
	for _, comment := range m {
		if keep(comment) {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments
}

func paginate(posts []api.Post, r *http.Request) []api.Post {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("_page"))
	if err != nil || page < 1 {
		return posts
	}
	limit, err := strconv.Atoi(q.Get("_limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(posts) {
		return []api.Post{}
	}
	end := start + limit
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
