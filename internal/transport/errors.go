package transport

import (
	"context"
	"errors"
	"fmt"
)

// Kind 对失败原因做粗粒度分类。
type Kind string

const (
	// KindNetwork 表示请求没有拿到 HTTP 响应（DNS、连接、读取失败）。
	KindNetwork Kind = "network"
	// KindHTTP 表示上游返回了非 2xx 状态码。
	KindHTTP Kind = "http"
	// KindDecode 表示 2xx 响应体不是合法 JSON。
	KindDecode Kind = "decode"
)

// NetworkStatusText 是网络错误的 StatusText，Status 固定为 0。
const NetworkStatusText = "Network Error"

// Error 是 transport 层返回的唯一错误类型。
type Error struct {
	Kind       Kind
	Status     int
	StatusText string
	Method     string
	URL        string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
	case KindDecode:
		return fmt.Sprintf("decode response: %s %s: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("api request failed: %s %s: %d %s", e.Method, e.URL, e.Status, e.StatusText)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientError reports a 4xx response.
func (e *Error) ClientError() bool {
	return e.Kind == KindHTTP && e.Status >= 400 && e.Status < 500
}

// ServerError reports a 5xx response or any other non-2xx that is not a client error.
func (e *Error) ServerError() bool {
	return e.Kind == KindHTTP && !e.ClientError()
}

// AsError extracts *Error from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, 0 for network errors or
// errors that did not originate here.
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return 0
}

// IsClientError reports whether err is a 4xx response. Such errors are never retried.
func IsClientError(err error) bool {
	e, ok := AsError(err)
	return ok && e.ClientError()
}

// IsServerError reports whether err is a non-4xx HTTP failure.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	return ok && e.ServerError()
}

// IsNetworkError reports whether the request never completed.
func IsNetworkError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindNetwork
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == 404 && IsClientError(err)
}

// IsRetryable 返回 err 是否属于可重试的瞬时失败：网络错误、5xx 与响应解析失败。
// context 取消与超时永远不重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	e, ok := AsError(err)
	if !ok {
		return true
	}
	return !e.ClientError()
}
