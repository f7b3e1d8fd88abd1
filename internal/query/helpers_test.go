package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/any-hub/blog-em/internal/cache"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// countingFetch 统计调用次数，并按次序返回 results 中的结果（超出部分重复最后一个）。
type countingFetch struct {
	calls   atomic.Int32
	mu      sync.Mutex
	results []fetchResult
}

type fetchResult struct {
	data any
	err  error
}

func (f *countingFetch) fn(ctx context.Context) (any, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return n, nil
	}
	idx := n - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx].data, f.results[idx].err
}

func (f *countingFetch) Calls() int {
	return int(f.calls.Load())
}

var fastRetry = &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestClient(t *testing.T, opts ClientOptions) *Client {
	t.Helper()
	store := cache.NewStore(cache.StoreOptions{})
	client := NewClient(store, opts)
	t.Cleanup(func() {
		client.Close()
		store.Clear()
	})
	return client
}
