package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为：日志、上游 API 以及查询缓存的默认策略。
type GlobalConfig struct {
	ListenPort     int      `mapstructure:"ListenPort"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	APIBaseURL     string   `mapstructure:"APIBaseURL"`
	RequestTimeout Duration `mapstructure:"RequestTimeout"`
	StaleTime      Duration `mapstructure:"StaleTime"`
	// GCTime 为负数表示永不回收。
	GCTime         Duration `mapstructure:"GCTime"`
	MaxRetries     int      `mapstructure:"MaxRetries"`
	InitialBackoff Duration `mapstructure:"InitialBackoff"`
	MaxBackoff     Duration `mapstructure:"MaxBackoff"`
	PageSize       int      `mapstructure:"PageSize"`
	MaxPostPage    int      `mapstructure:"MaxPostPage"`

	// StaleTimeSet/GCTimeSet 记录配置文件或环境变量是否显式给出了该值。
	// 只有显式给出的全局值才会覆盖已注册资源的默认策略。
	StaleTimeSet bool `mapstructure:"-"`
	GCTimeSet    bool `mapstructure:"-"`
}

// ResourceConfig 允许针对单个资源（posts/comments/users）覆盖缓存时间。
// 零值沿用全局或默认值；StaleTime 为负数表示立即过期，GCTime 为负数表示永不回收。
type ResourceConfig struct {
	Name      string   `mapstructure:"Name"`
	StaleTime Duration `mapstructure:"StaleTime"`
	GCTime    Duration `mapstructure:"GCTime"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Resources []ResourceConfig `mapstructure:"Resource"`
}

// Resource 返回指定资源的覆盖配置，未声明时返回零值。
func (c *Config) Resource(name string) (ResourceConfig, bool) {
	if c == nil {
		return ResourceConfig{}, false
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, res := range c.Resources {
		if res.Name == normalized {
			return res, true
		}
	}
	return ResourceConfig{}, false
}

// ResourceNames 返回所有覆盖项的资源名，供启动日志使用。
func ResourceNames(resources []ResourceConfig) []string {
	if len(resources) == 0 {
		return nil
	}
	result := make([]string, len(resources))
	for i, res := range resources {
		result[i] = res.Name
	}
	return result
}
