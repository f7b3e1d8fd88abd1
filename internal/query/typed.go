package query

import (
	"context"
	"fmt"

	"github.com/any-hub/blog-em/internal/cache"
)

// Fetcher 把强类型的获取函数适配为 FetchFunc。
func Fetcher[T any](fn func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// FetchAs 是 Fetch 的强类型版本。
func FetchAs[T any](ctx context.Context, c *Client, key cache.Key, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	data, err := c.Fetch(ctx, key, Fetcher(fn), opts)
	if err != nil {
		return zero, err
	}
	return cast[T](key, data)
}

// DataAs 返回缓存中的强类型数据，不触发请求。
func DataAs[T any](c *Client, key cache.Key) (T, bool) {
	data, ok := c.GetQueryData(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := data.(T)
	return typed, ok
}

// SetDataAs 是 SetQueryData 的强类型版本；缓存中的数据类型不符时按不存在处理。
func SetDataAs[T any](c *Client, key cache.Key, updater func(old T, exists bool) T) {
	c.SetQueryData(key, func(old any, exists bool) any {
		typed, ok := old.(T)
		return updater(typed, exists && ok)
	})
}

// PatchDataAs 是 PatchQueryData 的强类型版本；类型不符时不修改。
func PatchDataAs[T any](c *Client, key cache.Key, patch func(old T) T) bool {
	return c.PatchQueryData(key, func(old any) any {
		typed, ok := old.(T)
		if !ok {
			return old
		}
		return patch(typed)
	})
}

// ResultData 取出观察结果中的强类型数据。
func ResultData[T any](r Result) (T, bool) {
	if !r.HasData {
		var zero T
		return zero, false
	}
	typed, ok := r.Data.(T)
	return typed, ok
}

func cast[T any](key cache.Key, data any) (T, error) {
	typed, ok := data.(T)
	if !ok && data != nil {
		var zero T
		return zero, fmt.Errorf("query %s: cached data is %T, want %T", key, data, zero)
	}
	return typed, nil
}
