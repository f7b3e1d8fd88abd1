package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/blog-em/internal/api/apitest"
	"github.com/any-hub/blog-em/internal/blog"
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/logging"
	"github.com/any-hub/blog-em/internal/query"
)

type observedRequest struct {
	method string
	route  string
	status int
}

type requestRecorder struct {
	requests []observedRequest
}

func (r *requestRecorder) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.requests = append(r.requests, observedRequest{method: method, route: route, status: status})
}

type testEnv struct {
	app     *fiber.App
	stub    *apitest.Server
	svc     *blog.Service
	metrics *requestRecorder
}

func newTestEnv(t *testing.T, opts blog.Options) *testEnv {
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

	svc := blog.NewService(stub.API(t), client, opts)
	recorder := &requestRecorder{}
	app, err := NewApp(AppOptions{Logger: logging.Discard(), Service: svc, Metrics: recorder})
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}
	return &testEnv{app: app, stub: stub, svc: svc, metrics: recorder}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	return resp, payload
}

func decodeError(t *testing.T, payload []byte) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("invalid error body %s: %v", string(payload), err)
	}
	return body
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logging.Discard()}); err == nil {
		t.Fatalf("missing service should fail")
	}
}

func TestRouterSetsRequestIDAndObservesRoute(t *testing.T) {
	env := newTestEnv(t, blog.Options{})

	resp, _ := env.do(t, http.MethodGet, "/posts/1", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if len(env.metrics.requests) != 1 {
		t.Fatalf("expected one observed request, got %d", len(env.metrics.requests))
	}
	got := env.metrics.requests[0]
	if got.route != "/posts/:id" || got.status != fiber.StatusOK || got.method != http.MethodGet {
		t.Fatalf("unexpected observation: %+v", got)
	}
}

func TestRouterUnknownPathReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, blog.Options{})

	resp, payload := env.do(t, http.MethodGet, "/albums", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body := decodeError(t, payload)
	if body.Error != "not_found" {
		t.Fatalf("expected not_found error, got %s", string(payload))
	}
	if body.RequestID != resp.Header.Get("X-Request-ID") {
		t.Fatalf("error body should carry the request id")
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	env := newTestEnv(t, blog.Options{})
	env.app.Get("/boom", func(fiber.Ctx) error {
		panic("boom")
	})

	resp, payload := env.do(t, http.MethodGet, "/boom", "")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body := decodeError(t, payload); body.Error != "internal_error" {
		t.Fatalf("unexpected body %s", string(payload))
	}
}
