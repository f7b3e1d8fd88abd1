package config

import (
	"testing"
	"time"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StaleTime = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsIntegerSeconds(t *testing.T) {
	cfg := `
LogLevel = "debug"
StaleTime = 90
APIBaseURL = "http://127.0.0.1:8080/"
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.StaleTime.DurationValue() != 90*time.Second {
		t.Fatalf("整数秒应被解析，得到 %s", loaded.Global.StaleTime.DurationValue())
	}
	if loaded.Global.APIBaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("APIBaseURL 末尾的 / 应被去除: %s", loaded.Global.APIBaseURL)
	}
}

func TestLoadKeepsNegativeDurations(t *testing.T) {
	cfg := `
LogLevel = "info"
GCTime = "-1s"

[[Resource]]
Name = "Users"
StaleTime = "-1s"
GCTime = "-1s"
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !loaded.Global.GCTimeSet || loaded.Global.GCTime.DurationValue() >= 0 {
		t.Fatalf("全局 GCTime 应保留负值并标记为显式设置: %+v", loaded.Global)
	}
	if loaded.Global.StaleTimeSet {
		t.Fatalf("未出现在文件中的 StaleTime 不应被标记")
	}
	res, ok := loaded.Resource("users")
	if !ok || res.StaleTime.DurationValue() >= 0 || res.GCTime.DurationValue() >= 0 {
		t.Fatalf("资源的负数覆盖不应被清零: %+v", res)
	}
}

func TestLoadMarksEnvDurationsExplicit(t *testing.T) {
	t.Setenv(EnvPrefix+"_STALETIME", "45s")
	loaded, err := Load(writeTempConfig(t, `LogLevel = "info"`))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !loaded.Global.StaleTimeSet || loaded.Global.StaleTime.DurationValue() != 45*time.Second {
		t.Fatalf("环境变量给出的 StaleTime 应被标记为显式设置: %+v", loaded.Global)
	}
	if loaded.Global.GCTimeSet {
		t.Fatalf("默认 GCTime 不应被标记为显式设置")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(EnvPrefix+"_MAXRETRIES", "7")
	path := writeTempConfig(t, `LogLevel = "info"`)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.MaxRetries != 7 {
		t.Fatalf("环境变量应覆盖 MaxRetries，得到 %d", loaded.Global.MaxRetries)
	}
}
