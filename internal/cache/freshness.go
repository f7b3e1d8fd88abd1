package cache

import "time"

// Freshness 根据 StaleTime 判断条目是否需要回源。
type Freshness struct {
	staleTime time.Duration
	now       func() time.Time
}

// NewFreshness 构造策略感知的新鲜度判断器，now 为 nil 时使用 time.Now。
func NewFreshness(staleTime time.Duration, now func() time.Time) Freshness {
	if now == nil {
		now = time.Now
	}
	if staleTime < 0 {
		staleTime = 0
	}
	return Freshness{staleTime: staleTime, now: now}
}

// IsStale 返回条目是否已过期：没有数据、被 Invalidate 或年龄达到 StaleTime。
func (f Freshness) IsStale(entry Entry) bool {
	if !entry.HasData || entry.Invalidated {
		return true
	}
	return !f.now().Before(entry.UpdatedAt.Add(f.staleTime))
}

// Age 返回条目数据的年龄，无数据时返回 0。
func (f Freshness) Age(entry Entry) time.Duration {
	if !entry.HasData {
		return 0
	}
	return f.now().Sub(entry.UpdatedAt)
}
