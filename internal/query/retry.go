package query

import (
	"context"
	"errors"
	"time"

	"github.com/any-hub/blog-em/internal/transport"
)

// RetryPolicy 描述失败后的重试次数与指数退避参数。
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy 与常见查询库默认值一致：3 次，1s 起步，封顶 30s。
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
}

// NoRetry 关闭重试。
var NoRetry = &RetryPolicy{}

// Delay 返回第 attempt 次重试前的等待时间：min(BaseDelay*2^attempt, MaxDelay)。
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// ShouldRetry 判断 err 在第 attempt 次失败后是否继续重试。
// 4xx、上下文取消以及被新请求取代的结果永不重试。
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	if errors.Is(err, ErrSuperseded) {
		return false
	}
	return transport.IsRetryable(err)
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
