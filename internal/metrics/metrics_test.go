package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorderExposesCollectors(t *testing.T) {
	r := New(nil)
	r.ObserveFetch("posts", "success", 20*time.Millisecond)
	r.ObserveFetch("", "error", time.Millisecond)
	r.IncDedup("posts")
	r.IncEviction("comments")
	r.ObserveMutation("delete_post", "success")
	r.ObserveRequest(http.MethodGet, "/posts/:id", http.StatusOK, time.Millisecond)

	body := scrape(t, r)
	for _, want := range []string{
		`blog_em_query_fetch_total{outcome="success",resource="posts"} 1`,
		`blog_em_query_fetch_total{outcome="error",resource="unknown"} 1`,
		`blog_em_query_dedup_total{resource="posts"} 1`,
		`blog_em_cache_evictions_total{resource="comments"} 1`,
		`blog_em_mutation_total{name="delete_post",outcome="success"} 1`,
		`blog_em_http_requests_total{method="GET",route="/posts/:id",status="200"} 1`,
		`blog_em_query_fetch_duration_seconds_count{resource="posts"} 1`,
	} {
		require.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestRecordersAreIsolated(t *testing.T) {
	first := New(nil)
	second := New(nil)
	first.IncDedup("posts")
	require.NotContains(t, scrape(t, second), `blog_em_query_dedup_total{resource="posts"}`)
}
