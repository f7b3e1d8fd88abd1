package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/query"
	"github.com/any-hub/blog-em/internal/transport"
)

// errorBody 是所有错误响应的统一结构。
type errorBody struct {
	Error     string `json:"error"`
	Status    int    `json:"upstream_status,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// classify 把错误映射为 HTTP 状态与错误码：
// 上游 4xx 原样透出，网络错误与上游 5xx 统一为 502。
func classify(err error) (int, errorBody) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == fiber.StatusNotFound {
			return fiberErr.Code, errorBody{Error: "not_found"}
		}
		return fiberErr.Code, errorBody{Error: slug(fiberErr.Message)}
	}

	if errors.Is(err, query.ErrDisabled) {
		return fiber.StatusBadRequest, errorBody{Error: "invalid_id"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout, errorBody{Error: "upstream_timeout"}
	}

	if apiErr, ok := transport.AsError(err); ok {
		switch {
		case apiErr.ClientError() && apiErr.Status == fiber.StatusNotFound:
			return apiErr.Status, errorBody{Error: "not_found", Status: apiErr.Status}
		case apiErr.ClientError():
			return apiErr.Status, errorBody{Error: "upstream_rejected", Status: apiErr.Status, Message: apiErr.StatusText}
		default:
			return fiber.StatusBadGateway, errorBody{Error: "upstream_failed", Status: apiErr.Status, Message: apiErr.StatusText}
		}
	}

	return fiber.StatusInternalServerError, errorBody{Error: "internal_error"}
}

func renderError(c fiber.Ctx, logger *logrus.Logger, err error) error {
	status, body := classify(err)
	body.RequestID = RequestID(c)

	entry := logger.WithFields(logrus.Fields{
		"action":     "request_error",
		"request_id": body.RequestID,
		"path":       c.Path(),
		"status":     status,
	}).WithError(err)
	if status >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	return c.Status(status).JSON(body)
}

// errorHandler 兜底处理绕过中间件链的错误。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		return renderError(c, logger, err)
	}
}

func slug(message string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(message), " ", "_"))
}
