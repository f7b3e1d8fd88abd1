package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client 负责拼接 baseURL、编码 JSON 请求体并统一错误形态。
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *logrus.Logger
	headers http.Header
}

// Options 控制 Client 的可选依赖。
type Options struct {
	HTTPClient *http.Client
	Logger     *logrus.Logger
	// Headers 会附加到每个请求上，例如 User-Agent。
	Headers http.Header
}

// Request 描述一次 API 调用，Path 相对于 baseURL。
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// New 以 baseURL 为根构建 Client。
func New(baseURL string, opts Options) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		baseURL: parsed,
		http:    httpClient,
		logger:  logger,
		headers: opts.Headers.Clone(),
	}, nil
}

// BaseURL 返回规范化后的服务地址。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do 执行请求并返回原始 JSON；204 或空响应体返回 nil。
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	started := time.Now()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.Path, req.Query)

	httpReq, err := c.buildRequest(ctx, method, target, req.Body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		failure := &Error{
			Kind:       KindNetwork,
			StatusText: NetworkStatusText,
			Method:     method,
			URL:        target,
			Err:        err,
		}
		c.logResult(method, target, 0, started, failure)
		return nil, failure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		failure := &Error{
			Kind:       KindHTTP,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Method:     method,
			URL:        target,
		}
		c.logResult(method, target, resp.StatusCode, started, failure)
		return nil, failure
	}

	if resp.StatusCode == http.StatusNoContent {
		c.logResult(method, target, resp.StatusCode, started, nil)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		failure := &Error{
			Kind:       KindNetwork,
			Status:     0,
			StatusText: NetworkStatusText,
			Method:     method,
			URL:        target,
			Err:        err,
		}
		c.logResult(method, target, resp.StatusCode, started, failure)
		return nil, failure
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		c.logResult(method, target, resp.StatusCode, started, nil)
		return nil, nil
	}
	if !json.Valid(body) {
		failure := &Error{
			Kind:       KindDecode,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Method:     method,
			URL:        target,
			Err:        errors.New("response body is not valid JSON"),
		}
		c.logResult(method, target, resp.StatusCode, started, failure)
		return nil, failure
	}

	c.logResult(method, target, resp.StatusCode, started, nil)
	return json.RawMessage(body), nil
}

// Send 执行请求并把 JSON 结果解码到 out；out 为 nil 或响应为空时跳过解码。
func (c *Client) Send(ctx context.Context, req Request, out any) error {
	raw, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Kind:   KindDecode,
			Method: req.Method,
			URL:    c.resolve(req.Path, req.Query),
			Err:    err,
		}
	}
	return nil
}

// Get 发送 GET 请求，params 会编码为查询串。
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.Send(ctx, Request{Method: http.MethodGet, Path: path, Query: params}, out)
}

// Post 发送 JSON 请求体。
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.Send(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put 发送完整替换请求。
func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.Send(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch 发送部分更新请求。
func (c *Client) Patch(ctx context.Context, path string, body any, out any) error {
	return c.Send(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete 发送删除请求，通常返回 204。
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Send(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

func (c *Client) buildRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) resolve(path string, params url.Values) string {
	target := *c.baseURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	target.RawQuery = ""
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}
	return target.String()
}

// statusText 优先使用上游返回的 reason phrase。
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func (c *Client) logResult(method, target string, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":          "api_request",
		"method":          method,
		"url":             target,
		"upstream_status": status,
		"elapsed_ms":      time.Since(started).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Warn("api_request_failed")
		return
	}
	c.logger.WithFields(fields).Debug("api_request_complete")
}
