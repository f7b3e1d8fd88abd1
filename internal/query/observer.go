package query

import (
	"context"
	"sync"
	"time"

	"github.com/any-hub/blog-em/internal/cache"
)

// Result 是观察者看到的查询状态。
type Result struct {
	Key       cache.Key
	Data      any
	HasData   bool
	Status    cache.Status
	Err       error
	UpdatedAt time.Time
	// Fetching 为 true 且 HasData 时表示后台刷新，旧数据仍可展示。
	Fetching bool
	Stale    bool
}

// Observer 跟随单个 Key，相当于一次挂载的查询订阅。
type Observer struct {
	client *Client
	key    cache.Key
	fn     FetchFunc
	opts   resolvedOptions

	mu          sync.Mutex
	entry       cache.Entry
	updates     chan Result
	unsubscribe func()
	closed      bool
}

// Observe 订阅 key；启用时若缓存缺失或过期则在后台发起请求。
func (c *Client) Observe(key cache.Key, fn FetchFunc, opts Options) *Observer {
	validate(key, fn)
	obs := &Observer{
		client:  c,
		key:     key,
		fn:      fn,
		opts:    c.resolve(opts),
		updates: make(chan Result, 1),
	}
	c.register(obs)

	obs.mu.Lock()
	obs.unsubscribe = c.store.Subscribe(key, obs.onEvent)
	obs.mu.Unlock()

	entry := c.store.Set(key, func(current cache.Entry, _ bool) cache.Entry {
		current.GCTime = mergeGCTime(current.GCTime, obs.opts.gcTime)
		return current
	})
	obs.apply(entry)

	if !obs.opts.disabled && c.freshness(obs.opts).IsStale(entry) {
		c.trigger(key, fn, obs.opts)
	}
	return obs
}

// Key 返回观察的 Key。
func (o *Observer) Key() cache.Key {
	return o.key
}

// Result 返回当前快照，Stale 按调用时刻计算。
func (o *Observer) Result() Result {
	o.mu.Lock()
	entry := o.entry
	o.mu.Unlock()
	return o.result(entry)
}

// Updates 返回只保留最新状态的通知通道，Close 后关闭。
func (o *Observer) Updates() <-chan Result {
	return o.updates
}

// Refetch 忽略新鲜度强制重新获取，并中止该 Key 上正在进行的请求。
func (o *Observer) Refetch(ctx context.Context) (any, error) {
	return o.client.await(ctx, o.key, o.fn, o.opts, true)
}

// Close 取消订阅；在途请求不会被中止，完成后仍写入缓存。
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	unsubscribe := o.unsubscribe
	close(o.updates)
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.client.unregister(o)
}

func (o *Observer) onEvent(ev cache.Event) {
	switch ev.Type {
	case cache.EventRemoved:
		o.apply(cache.Entry{Key: o.key, Status: cache.StatusIdle, Version: ev.Entry.Version})
		o.resubscribe()
	case cache.EventInvalidated:
		o.apply(ev.Entry)
		if !o.opts.disabled && !o.isClosed() {
			o.client.trigger(o.key, o.fn, o.opts)
		}
	default:
		o.apply(ev.Entry)
	}
}

// resubscribe 在条目被删除后重新登记订阅，使后续请求的结果仍能送达。
func (o *Observer) resubscribe() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.unsubscribe = o.client.store.Subscribe(o.key, o.onEvent)
}

func (o *Observer) apply(entry cache.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || entry.Version < o.entry.Version {
		return
	}
	o.entry = entry
	result := o.result(entry)
	select {
	case <-o.updates:
	default:
	}
	select {
	case o.updates <- result:
	default:
	}
}

func (o *Observer) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Observer) result(entry cache.Entry) Result {
	return Result{
		Key:       o.key,
		Data:      entry.Data,
		HasData:   entry.HasData,
		Status:    entry.Status,
		Err:       entry.Err,
		UpdatedAt: entry.UpdatedAt,
		Fetching:  entry.Fetching,
		Stale:     o.client.freshness(o.opts).IsStale(entry),
	}
}
