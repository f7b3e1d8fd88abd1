package query

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/cache"
)

// FetchFunc 从数据源读取一个查询的数据。
type FetchFunc func(ctx context.Context) (any, error)

// Options 控制单个查询的缓存与重试策略；零值字段退回 ClientOptions。
type Options struct {
	// StaleTime 为 0 时使用客户端默认值，负数表示数据立即过期。
	StaleTime time.Duration
	// GCTime 为 0 时使用客户端默认值，负数表示永不回收。
	GCTime time.Duration
	// Disabled 为 true 时 Observe 不会发起请求，状态保持 idle。
	Disabled bool
	// Retry 为 nil 时使用客户端默认策略。
	Retry *RetryPolicy
}

// ClientOptions 是 Client 的全局默认值与依赖。
type ClientOptions struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Retry     RetryPolicy
	Logger    *logrus.Logger
	Metrics   Metrics
	// Now 便于测试注入时钟。
	Now func() time.Time
}

type resolvedOptions struct {
	staleTime time.Duration
	gcTime    time.Duration
	disabled  bool
	retry     RetryPolicy
}

func (c *Client) resolve(opts Options) resolvedOptions {
	resolved := resolvedOptions{
		staleTime: c.opts.StaleTime,
		gcTime:    c.opts.GCTime,
		disabled:  opts.Disabled,
		retry:     c.opts.Retry,
	}
	switch {
	case opts.StaleTime > 0:
		resolved.staleTime = opts.StaleTime
	case opts.StaleTime < 0:
		resolved.staleTime = 0
	}
	if opts.GCTime != 0 {
		resolved.gcTime = opts.GCTime
	}
	if opts.Retry != nil {
		resolved.retry = *opts.Retry
	}
	return resolved
}

func (c *Client) freshness(opts resolvedOptions) cache.Freshness {
	return cache.NewFreshness(opts.staleTime, c.opts.Now)
}

// mergeGCTime 取较长的保留时长；负数表示永不回收，优先级最高。
func mergeGCTime(current, requested time.Duration) time.Duration {
	if current < 0 || requested < 0 {
		return -1
	}
	if requested > current {
		return requested
	}
	return current
}
