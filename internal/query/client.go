package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/logging"
)

var (
	// ErrSuperseded 表示结果被同一 Key 上更晚发起的请求取代，已被丢弃。
	ErrSuperseded = errors.New("query: superseded by a newer fetch")
	// ErrDisabled 表示查询被禁用且缓存中没有数据。
	ErrDisabled = errors.New("query: disabled")
	// ErrAborted 表示请求因 RemoveQueries 被中止。
	ErrAborted = errors.New("query: fetch aborted")
	// ErrClosed 表示 Client 已关闭。
	ErrClosed = errors.New("query: client closed")
)

// Client 协调查询与缓存，每个应用实例各自构造一份。
type Client struct {
	store  cache.Store
	opts   ClientOptions
	logger *logrus.Logger

	group singleflight.Group
	// ctx 是所有后台请求的根上下文，只有 Refetch 与 Close 会中止请求。
	ctx    context.Context
	cancel context.CancelFunc

	// flightsMu 可以在 Store 锁内获取，持有期间禁止调用 Store。
	flightsMu sync.Mutex
	seq       map[string]uint64
	flights   map[string]*flight

	observersMu sync.Mutex
	observers   map[*Observer]struct{}
}

type flight struct {
	key     cache.Key
	seq     uint64
	cancel  context.CancelFunc
	aborted bool
}

// NewClient 基于 store 构造查询客户端。
func NewClient(store cache.Store, opts ClientOptions) *Client {
	if store == nil {
		panic("query: nil store")
	}
	if opts.GCTime == 0 {
		opts.GCTime = cache.DefaultGCTime
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		store:     store,
		opts:      opts,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		seq:       make(map[string]uint64),
		flights:   make(map[string]*flight),
		observers: make(map[*Observer]struct{}),
	}
}

// Store 返回底层缓存，供诊断接口读取。
func (c *Client) Store() cache.Store {
	return c.store
}

// IsStale 按 opts 的 StaleTime 判断条目是否过期。
func (c *Client) IsStale(entry cache.Entry, opts Options) bool {
	return c.freshness(c.resolve(opts)).IsStale(entry)
}

// Fetch 返回新鲜的缓存数据；缓存缺失或过期时加入（或发起）请求并等待结果。
func (c *Client) Fetch(ctx context.Context, key cache.Key, fn FetchFunc, opts Options) (any, error) {
	validate(key, fn)
	resolved := c.resolve(opts)
	entry, ok := c.store.Get(key)
	if ok && !c.freshness(resolved).IsStale(entry) {
		return entry.Data, nil
	}
	if resolved.disabled {
		if ok && entry.HasData {
			return entry.Data, nil
		}
		return nil, ErrDisabled
	}
	return c.await(ctx, key, fn, resolved, false)
}

// Prefetch 在不订阅的情况下预热缓存；数据新鲜时不发请求，错误只记录日志。
func (c *Client) Prefetch(ctx context.Context, key cache.Key, fn FetchFunc, opts Options) {
	validate(key, fn)
	resolved := c.resolve(opts)
	if entry, ok := c.store.Get(key); ok && !c.freshness(resolved).IsStale(entry) {
		return
	}
	if _, err := c.await(ctx, key, fn, resolved, false); err != nil {
		c.logger.WithFields(logging.QueryFields("prefetch_failed", key.String(), key.Resource(), string(cache.StatusError))).
			WithError(err).
			Warn("prefetch failed")
	}
}

// GetQueryData 返回缓存中的数据，不触发请求。
func (c *Client) GetQueryData(key cache.Key) (any, bool) {
	entry, ok := c.store.Get(key)
	if !ok || !entry.HasData {
		return nil, false
	}
	return entry.Data, true
}

// SetQueryData 以原子方式替换缓存数据，条目视为刚刚成功获取。
// 该 Key 上的在途请求被取代，其结果不会覆盖这次写入。
func (c *Client) SetQueryData(key cache.Key, updater func(old any, exists bool) any) cache.Entry {
	if updater == nil {
		panic("query: nil updater")
	}
	hash := key.Hash()
	c.supersede(func(h string, _ *flight) bool { return h == hash }, false)
	return c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		current.Data = updater(current.Data, current.HasData)
		current.HasData = true
		current.Status = cache.StatusSuccess
		current.Err = nil
		current.UpdatedAt = c.opts.Now()
		current.Invalidated = false
		if !c.hasFlight(hash) {
			current.Fetching = false
		}
		return current
	})
}

// PatchQueryData 仅在缓存已有数据时原子地修改数据，返回是否修改。
func (c *Client) PatchQueryData(key cache.Key, patch func(old any) any) bool {
	if patch == nil {
		panic("query: nil patch")
	}
	if entry, ok := c.store.Get(key); !ok || !entry.HasData {
		return false
	}
	hash := key.Hash()
	c.supersede(func(h string, _ *flight) bool { return h == hash }, false)
	patched := false
	c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		if !current.HasData {
			return current
		}
		patched = true
		current.Data = patch(current.Data)
		current.UpdatedAt = c.opts.Now()
		if !c.hasFlight(hash) {
			current.Fetching = false
		}
		return current
	})
	return patched
}

// InvalidateQueries 将匹配 prefix 的查询标记为过期；仍有活跃观察者的查询会立即重新获取。
// 失效前已发出的请求被取代，它们的等待者会加入新的请求。
func (c *Client) InvalidateQueries(prefix cache.Key) []cache.Key {
	c.supersede(func(_ string, f *flight) bool { return f.key.HasPrefix(prefix) }, false)
	keys := c.store.Invalidate(prefix)
	if len(keys) > 0 {
		c.logger.WithFields(logging.QueryFields("query_invalidate", prefix.String(), prefix.Resource(), "")).
			WithField("matched", len(keys)).
			Debug("queries invalidated")
	}
	return keys
}

// RemoveQueries 删除匹配 prefix 的条目，并中止这些 Key 上的在途请求。
func (c *Client) RemoveQueries(prefix cache.Key) []cache.Key {
	c.supersede(func(_ string, f *flight) bool { return f.key.HasPrefix(prefix) }, true)
	return c.store.RemoveMatching(prefix)
}

// Close 中止所有在途请求并关闭所有观察者。
func (c *Client) Close() {
	c.cancel()
	c.observersMu.Lock()
	observers := make([]*Observer, 0, len(c.observers))
	for obs := range c.observers {
		observers = append(observers, obs)
	}
	c.observersMu.Unlock()
	for _, obs := range observers {
		obs.Close()
	}
}

// InFlight 返回当前在途请求的数量。
func (c *Client) InFlight() int {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()
	return len(c.flights)
}

// trigger 发起（或加入）后台请求，结果通过 Store 事件送达观察者。
func (c *Client) trigger(key cache.Key, fn FetchFunc, opts resolvedOptions) {
	if c.ctx.Err() != nil {
		return
	}
	c.noteDedup(key)
	c.group.DoChan(key.Hash(), c.work(key, fn, opts))
}

// refetch 中止当前请求并立即发起新请求。
func (c *Client) refetch(key cache.Key, fn FetchFunc, opts resolvedOptions) <-chan singleflight.Result {
	hash := key.Hash()
	c.supersede(func(h string, _ *flight) bool { return h == hash }, false)
	c.group.Forget(hash)
	return c.group.DoChan(hash, c.work(key, fn, opts))
}

// await 加入或发起请求并等待；被取代的结果会重新加入当前请求。
func (c *Client) await(ctx context.Context, key cache.Key, fn FetchFunc, opts resolvedOptions, force bool) (any, error) {
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	hash := key.Hash()
	var ch <-chan singleflight.Result
	if force {
		ch = c.refetch(key, fn, opts)
	} else {
		c.noteDedup(key)
		ch = c.group.DoChan(hash, c.work(key, fn, opts))
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if !errors.Is(res.Err, ErrSuperseded) {
				return res.Val, res.Err
			}
			if c.ctx.Err() != nil {
				return nil, ErrClosed
			}
			if entry, ok := c.store.Get(key); ok && !c.freshness(opts).IsStale(entry) {
				return entry.Data, nil
			}
			ch = c.group.DoChan(hash, c.work(key, fn, opts))
		}
	}
}

func (c *Client) noteDedup(key cache.Key) {
	c.flightsMu.Lock()
	_, inFlight := c.flights[key.Hash()]
	c.flightsMu.Unlock()
	if inFlight {
		c.opts.Metrics.IncDedup(key.Resource())
	}
}

// work 构造交给 singleflight 执行的请求；序号在请求真正发出时分配。
func (c *Client) work(key cache.Key, fn FetchFunc, opts resolvedOptions) func() (any, error) {
	return func() (any, error) {
		hash := key.Hash()
		ctx, cancel := context.WithCancel(c.ctx)
		defer cancel()

		c.flightsMu.Lock()
		if prev, ok := c.flights[hash]; ok {
			prev.cancel()
		}
		c.seq[hash]++
		seq := c.seq[hash]
		current := &flight{key: key, seq: seq, cancel: cancel}
		c.flights[hash] = current
		c.flightsMu.Unlock()

		c.markFetching(key, seq, opts)
		started := time.Now()
		data, err := c.runWithRetry(ctx, key, fn, opts.retry)
		elapsed := time.Since(started)

		if c.ctx.Err() != nil {
			c.finish(hash, seq)
			return nil, ErrClosed
		}
		if c.isAborted(current) {
			c.opts.Metrics.ObserveFetch(key.Resource(), OutcomeSuperseded, elapsed)
			return nil, ErrAborted
		}

		written := c.commit(key, seq, opts, data, err)
		c.finish(hash, seq)

		fields := logging.QueryFields("query_fetch", key.String(), key.Resource(), "")
		fields["seq"] = seq
		fields["elapsed_ms"] = elapsed.Milliseconds()
		switch {
		case !written:
			c.clearFetching(key)
			fields["action"] = "query_discard"
			fields["status"] = OutcomeSuperseded
			c.logger.WithFields(fields).Debug("superseded result discarded")
			c.opts.Metrics.ObserveFetch(key.Resource(), OutcomeSuperseded, elapsed)
			return nil, ErrSuperseded
		case err != nil:
			fields["status"] = string(cache.StatusError)
			c.logger.WithFields(fields).WithError(err).Warn("query fetch failed")
			c.opts.Metrics.ObserveFetch(key.Resource(), OutcomeError, elapsed)
			return nil, err
		default:
			fields["status"] = string(cache.StatusSuccess)
			c.logger.WithFields(fields).Debug("query fetch complete")
			c.opts.Metrics.ObserveFetch(key.Resource(), OutcomeSuccess, elapsed)
			return data, nil
		}
	}
}

// commit 仅在 seq 仍是最新序号时写回结果；失败只更新状态，保留旧数据。
func (c *Client) commit(key cache.Key, seq uint64, opts resolvedOptions, data any, err error) bool {
	hash := key.Hash()
	if !c.isLatest(hash, seq) {
		return false
	}
	written := false
	c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		if !c.isLatest(hash, seq) {
			return current
		}
		written = true
		current.Fetching = false
		current.GCTime = mergeGCTime(current.GCTime, opts.gcTime)
		if err != nil {
			current.Status = cache.StatusError
			current.Err = err
			current.ErrorUpdatedAt = c.opts.Now()
			return current
		}
		current.Data = data
		current.HasData = true
		current.Status = cache.StatusSuccess
		current.Err = nil
		current.UpdatedAt = c.opts.Now()
		current.Invalidated = false
		return current
	})
	return written
}

func (c *Client) markFetching(key cache.Key, seq uint64, opts resolvedOptions) {
	hash := key.Hash()
	if !c.isLatest(hash, seq) {
		return
	}
	c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		if !c.isLatest(hash, seq) {
			return current
		}
		current.Fetching = true
		current.GCTime = mergeGCTime(current.GCTime, opts.gcTime)
		if !current.HasData {
			current.Status = cache.StatusLoading
		}
		return current
	})
}

func (c *Client) runWithRetry(ctx context.Context, key cache.Key, fn FetchFunc, policy RetryPolicy) (any, error) {
	for attempt := 0; ; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !policy.ShouldRetry(attempt, err) {
			return nil, err
		}
		delay := policy.Delay(attempt)
		fields := logging.QueryFields("query_retry", key.String(), key.Resource(), string(cache.StatusError))
		fields["attempt"] = attempt + 1
		fields["delay_ms"] = delay.Milliseconds()
		c.logger.WithFields(fields).WithError(err).Info("retrying query")
		if waitErr := wait(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}

// supersede 中止 match 命中的在途请求并推进其序号，使结果在 commit 时被丢弃。
// abort 为 true 时等待者收到 ErrAborted，否则重新加入下一个请求。
func (c *Client) supersede(match func(hash string, f *flight) bool, abort bool) {
	c.flightsMu.Lock()
	var hashes []string
	for hash, f := range c.flights {
		if !match(hash, f) {
			continue
		}
		if abort {
			f.aborted = true
		}
		f.cancel()
		c.seq[hash]++
		delete(c.flights, hash)
		hashes = append(hashes, hash)
	}
	c.flightsMu.Unlock()
	for _, hash := range hashes {
		c.group.Forget(hash)
	}
}

// clearFetching 在被取代的请求结束且没有后续请求时清除 Fetching 标记。
func (c *Client) clearFetching(key cache.Key) {
	hash := key.Hash()
	if _, ok := c.store.Get(key); !ok || c.hasFlight(hash) {
		return
	}
	c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		if !c.hasFlight(hash) {
			current.Fetching = false
		}
		return current
	})
}

func (c *Client) hasFlight(hash string) bool {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()
	_, ok := c.flights[hash]
	return ok
}

func (c *Client) isLatest(hash string, seq uint64) bool {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()
	return c.seq[hash] == seq
}

func (c *Client) isAborted(f *flight) bool {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()
	return f.aborted
}

func (c *Client) finish(hash string, seq uint64) {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()
	if f, ok := c.flights[hash]; ok && f.seq == seq {
		delete(c.flights, hash)
	}
}

func (c *Client) register(obs *Observer) {
	c.observersMu.Lock()
	c.observers[obs] = struct{}{}
	c.observersMu.Unlock()
}

func (c *Client) unregister(obs *Observer) {
	c.observersMu.Lock()
	delete(c.observers, obs)
	c.observersMu.Unlock()
}

func validate(key cache.Key, fn FetchFunc) {
	if len(key) == 0 {
		panic("query: empty key")
	}
	if fn == nil {
		panic(fmt.Sprintf("query: nil fetch function for key %s", key))
	}
}
