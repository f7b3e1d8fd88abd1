package routes

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/blog-em/internal/blog"
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/resource"
)

// RegisterDiagnosticsRoutes 暴露 /-/ 诊断接口：资源策略、缓存快照与维护、Prometheus 指标。
// metricsHandler 为 nil 时不挂载 /-/metrics。
func RegisterDiagnosticsRoutes(app *fiber.App, svc *blog.Service, metricsHandler http.Handler) {
	if app == nil || svc == nil {
		return
	}

	app.Get("/-/resources", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"resources": encodeResources(svc, resource.List()),
		})
	})

	app.Get("/-/resources/:key", func(c fiber.Ctx) error {
		key := strings.ToLower(strings.TrimSpace(c.Params("key")))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resource_key_required"})
		}
		meta, ok := resource.Resolve(key)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
		}
		return c.JSON(encodeResource(svc, meta))
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		entries := svc.Entries()
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Key < entries[j].Key
		})
		return c.JSON(fiber.Map{
			"entries":   entries,
			"in_flight": svc.Client().InFlight(),
		})
	})

	app.Post("/-/cache/:resource/invalidate", func(c fiber.Ctx) error {
		return applyScope(c, svc.InvalidateScope, "invalidated")
	})

	app.Delete("/-/cache/:resource", func(c fiber.Ctx) error {
		return applyScope(c, svc.RemoveScope, "removed")
	})

	if metricsHandler != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(metricsHandler))
	}
}

// applyScope 对 :resource 与可选的 ?scope=list|detail 执行 op，返回受影响的键。
func applyScope(c fiber.Ctx, op func(resourceName, scope string) ([]cache.Key, error), field string) error {
	name := strings.ToLower(strings.TrimSpace(c.Params("resource")))
	scope := strings.ToLower(strings.TrimSpace(c.Query("scope")))
	keys, err := op(name, scope)
	if errors.Is(err, blog.ErrUnknownScope) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scope_not_found"})
	}
	if err != nil {
		return err
	}
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key.String()
	}
	sort.Strings(names)
	return c.JSON(fiber.Map{field: names})
}

type resourcePayload struct {
	Key              string `json:"key"`
	Description      string `json:"description"`
	Endpoint         string `json:"endpoint"`
	StaleTimeSeconds int64  `json:"stale_time_seconds"`
	GCTimeSeconds    int64  `json:"gc_time_seconds"`
}

func encodeResources(svc *blog.Service, metas []resource.Metadata) []resourcePayload {
	if len(metas) == 0 {
		return nil
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Key < metas[j].Key
	})
	result := make([]resourcePayload, 0, len(metas))
	for _, meta := range metas {
		result = append(result, encodeResource(svc, meta))
	}
	return result
}

// encodeResource 输出生效策略（含配置覆盖），而非注册表中的默认值。
func encodeResource(svc *blog.Service, meta resource.Metadata) resourcePayload {
	opts := svc.Options(meta.Key)
	payload := resourcePayload{
		Key:              meta.Key,
		Description:      meta.Description,
		Endpoint:         meta.Endpoint,
		StaleTimeSeconds: int64(opts.StaleTime.Seconds()),
		GCTimeSeconds:    int64(opts.GCTime.Seconds()),
	}
	if opts.StaleTime < 0 {
		payload.StaleTimeSeconds = 0
	}
	// -1 表示永不回收。
	if opts.GCTime < 0 {
		payload.GCTimeSeconds = -1
	}
	return payload
}
