package blog

import (
	"time"

	"github.com/any-hub/blog-em/internal/cache"
)

// EntryView 是诊断接口输出的缓存条目。
type EntryView struct {
	Key         string       `json:"key"`
	Status      cache.Status `json:"status"`
	HasData     bool         `json:"has_data"`
	Stale       bool         `json:"stale"`
	Fetching    bool         `json:"fetching"`
	Subscribers int          `json:"subscribers"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Error       string       `json:"error,omitempty"`
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
