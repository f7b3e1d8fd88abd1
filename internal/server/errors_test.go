package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/blog-em/internal/query"
	"github.com/any-hub/blog-em/internal/transport"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		status   int
		code     string
		upstream int
	}{
		{"fiber not found", fiber.ErrNotFound, http.StatusNotFound, "not_found", 0},
		{"fiber bad request", fiber.NewError(http.StatusBadRequest, "invalid_id"), http.StatusBadRequest, "invalid_id", 0},
		{"disabled query", fmt.Errorf("post: %w", query.ErrDisabled), http.StatusBadRequest, "invalid_id", 0},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "upstream_timeout", 0},
		{"upstream 404", &transport.Error{Kind: transport.KindHTTP, Status: 404, StatusText: "Not Found"}, http.StatusNotFound, "not_found", 404},
		{"upstream 422", &transport.Error{Kind: transport.KindHTTP, Status: 422, StatusText: "Unprocessable Entity"}, 422, "upstream_rejected", 422},
		{"upstream 500", fmt.Errorf("fetch: %w", &transport.Error{Kind: transport.KindHTTP, Status: 500}), http.StatusBadGateway, "upstream_failed", 500},
		{"network", &transport.Error{Kind: transport.KindNetwork, StatusText: transport.NetworkStatusText}, http.StatusBadGateway, "upstream_failed", 0},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := classify(tc.err)
			if status != tc.status || body.Error != tc.code || body.Status != tc.upstream {
				t.Fatalf("classify(%v) = %d %+v", tc.err, status, body)
			}
		})
	}
}
