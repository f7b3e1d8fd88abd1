package resource

import "time"

// Overrides 描述一层配置覆盖，零值表示沿用下层的值。
// StaleTime 为负数表示数据立即过期，GCTime 为负数表示永不回收。
type Overrides struct {
	StaleTime time.Duration
	GCTime    time.Duration
}

// ResolvePolicy 从资源的默认策略出发依次叠加 layers；未注册的资源以 fallback 为起点。
func ResolvePolicy(key string, fallback Policy, layers ...Overrides) Policy {
	policy := fallback
	if meta, ok := Resolve(key); ok {
		policy = meta.Policy
	}
	for _, layer := range layers {
		switch {
		case layer.StaleTime > 0:
			policy.StaleTime = layer.StaleTime
		case layer.StaleTime < 0:
			policy.StaleTime = 0
		}
		if layer.GCTime != 0 {
			policy.GCTime = layer.GCTime
		}
	}
	return normalizePolicy(policy)
}

func normalizePolicy(policy Policy) Policy {
	if policy.StaleTime < 0 {
		policy.StaleTime = 0
	}
	switch {
	case policy.GCTime == 0:
		policy.GCTime = DefaultGCTime
	case policy.GCTime < 0:
		policy.GCTime = NeverCollect
	}
	return policy
}
