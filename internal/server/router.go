package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/blog"
	"github.com/any-hub/blog-em/internal/logging"
)

// RequestObserver 接收每个请求的路由、状态与耗时，通常由 metrics.Recorder 实现。
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// AppOptions controls the dependencies of the Fiber application.
type AppOptions struct {
	Logger  *logrus.Logger
	Service *blog.Service
	// Metrics 可为空。
	Metrics RequestObserver
}

const contextKeyRequestID = "_blogem_request_id"

// NewApp builds the Fiber application with the request middleware chain and
// all view routes. Diagnostics routes are mounted separately by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Service == nil {
		return nil, errors.New("blog service is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(requestContextMiddleware(opts))
	app.Use(recover.New())

	registerViewRoutes(app, &handlers{svc: opts.Service, logger: opts.Logger})
	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，渲染错误并记录请求日志与指标。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		if err := c.Next(); err != nil {
			if renderErr := renderError(c, opts.Logger, err); renderErr != nil {
				return renderErr
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		if opts.Metrics != nil {
			opts.Metrics.ObserveRequest(c.Method(), route, status, time.Since(started))
		}

		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		entry := opts.Logger.WithFields(fields)
		switch {
		case isDiagnosticsPath(c.Path()):
			entry.Debug("request")
		case status >= fiber.StatusInternalServerError:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
		return nil
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return len(path) >= 3 && path[:3] == "/-/"
}
