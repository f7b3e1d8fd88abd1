package query

import "time"

// Outcome 标记一次获取或 mutation 的结果，用作指标标签。
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

// Metrics 由可观测性层实现；query 包不直接依赖 Prometheus。
type Metrics interface {
	ObserveFetch(resource, outcome string, elapsed time.Duration)
	IncDedup(resource string)
	ObserveMutation(name, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, string, time.Duration) {}
func (nopMetrics) IncDedup(string)                            {}
func (nopMetrics) ObserveMutation(string, string)             {}
