package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 BLOG_EM_LOGLEVEL。
const EnvPrefix = "BLOG_EM"

// DefaultAPIBaseURL 是默认的博客 REST 服务地址。
const DefaultAPIBaseURL = "https://jsonplaceholder.typicode.com"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	// .env 只是可选的本地覆盖，不存在时忽略。
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.Global.StaleTimeSet = explicitlySet(v, "StaleTime")
	cfg.Global.GCTimeSet = explicitlySet(v, "GCTime")
	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Resources {
		applyResourceDefaults(&cfg.Resources[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Global.APIBaseURL = strings.TrimRight(cfg.Global.APIBaseURL, "/")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("APIBaseURL", DefaultAPIBaseURL)
	v.SetDefault("RequestTimeout", "0s")
	v.SetDefault("StaleTime", "5m")
	v.SetDefault("GCTime", "5m")
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("MaxBackoff", "30s")
	v.SetDefault("PageSize", 10)
	v.SetDefault("MaxPostPage", 10)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.APIBaseURL) == "" {
		g.APIBaseURL = DefaultAPIBaseURL
	}
	if g.GCTime.DurationValue() == 0 {
		g.GCTime = Duration(5 * time.Minute)
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.MaxBackoff.DurationValue() == 0 {
		g.MaxBackoff = Duration(30 * time.Second)
	}
	if g.PageSize == 0 {
		g.PageSize = 10
	}
	if g.MaxPostPage == 0 {
		g.MaxPostPage = 10
	}
}

// explicitlySet 区分用户给出的值与 setDefaults 注入的默认值。
func explicitlySet(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(key))
	return ok
}

func applyResourceDefaults(r *ResourceConfig) {
	r.Name = strings.ToLower(strings.TrimSpace(r.Name))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
