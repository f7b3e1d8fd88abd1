package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/resource"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if err := validateBaseURL(g.APIBaseURL); err != nil {
		return fmt.Errorf("Global.APIBaseURL: %w", err)
	}
	if g.RequestTimeout.DurationValue() < 0 {
		return newFieldError("Global.RequestTimeout", "不能为负数")
	}
	if g.StaleTime.DurationValue() < 0 {
		return newFieldError("Global.StaleTime", "不能为负数")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.MaxBackoff.DurationValue() < g.InitialBackoff.DurationValue() {
		return newFieldError("Global.MaxBackoff", "不能小于 InitialBackoff")
	}
	if g.PageSize <= 0 {
		return newFieldError("Global.PageSize", "必须大于 0")
	}
	if g.MaxPostPage <= 0 {
		return newFieldError("Global.MaxPostPage", "必须大于 0")
	}

	seen := map[string]struct{}{}
	for i := range c.Resources {
		res := &c.Resources[i]
		if res.Name == "" {
			return newFieldError("Resource[].Name", "不能为空")
		}
		if _, exists := seen[res.Name]; exists {
			return newFieldError(resourceField(res.Name, "Name"), "重复")
		}
		seen[res.Name] = struct{}{}

		if _, ok := resource.Resolve(res.Name); !ok {
			return newFieldError(resourceField(res.Name, "Name"), fmt.Sprintf("未注册资源: %s", res.Name))
		}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少 API 地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，地址: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("地址缺少 Host: %s", raw)
	}
	return nil
}
