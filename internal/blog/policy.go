package blog

import (
	"github.com/any-hub/blog-em/internal/config"
	"github.com/any-hub/blog-em/internal/resource"
)

// PoliciesFromConfig 按 注册表默认值 < 显式设置的全局值 < [[Resource]] 覆盖 的顺序合并策略。
// 未显式设置的全局值只作为未注册资源的兜底。
func PoliciesFromConfig(cfg *config.Config) map[string]resource.Policy {
	fallback := resource.Policy{
		StaleTime: cfg.Global.StaleTime.DurationValue(),
		GCTime:    cfg.Global.GCTime.DurationValue(),
	}
	var global resource.Overrides
	if cfg.Global.StaleTimeSet {
		global.StaleTime = cfg.Global.StaleTime.DurationValue()
		if global.StaleTime == 0 {
			global.StaleTime = -1
		}
	}
	if cfg.Global.GCTimeSet {
		global.GCTime = cfg.Global.GCTime.DurationValue()
	}

	policies := make(map[string]resource.Policy)
	for _, key := range resource.Keys() {
		var overrides resource.Overrides
		if res, ok := cfg.Resource(key); ok {
			overrides.StaleTime = res.StaleTime.DurationValue()
			overrides.GCTime = res.GCTime.DurationValue()
		}
		policies[key] = resource.ResolvePolicy(key, fallback, global, overrides)
	}
	return policies
}
