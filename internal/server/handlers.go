package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// ErrorBody is the structured error payload returned to external callers:
// kind, offending node, and message, never a bare transport error.
type ErrorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

// PredictionsHandler runs one prediction through the graph under the overall
// request deadline.
func PredictionsHandler(g *graph.Graph, exec Executor, timeout time.Duration, logger *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(payload.Message)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorBody{
				Code:    http.StatusBadRequest,
				Kind:    "malformed_request",
				Message: err.Error(),
			})
		}
		if req.Meta.RequestID == "" {
			req.Meta.RequestID = uuid.NewString()
		}

		reqLogger := logger.With("request_id", req.Meta.RequestID)
		ctx := ctxlog.WithLogger(c.Request().Context(), reqLogger)
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		resp, route, err := exec.Execute(ctx, g, req)
		if err != nil {
			structured := errs.As(err, errs.KindNodeInvocation, "")
			reqLogger.Error("Prediction failed.",
				"kind", structured.Kind, "node", structured.Node, "error", structured.Message)
			return c.JSON(statusFor(structured.Kind), ErrorBody{
				Code:    statusFor(structured.Kind),
				Kind:    string(structured.Kind),
				Node:    structured.Node,
				Message: structured.Message,
			})
		}

		reqLogger.Info("Prediction served.",
			"nodes_visited", len(route.Visited()), "elapsed", time.Since(start))
		return c.JSON(http.StatusOK, resp)
	}
}

// FeedbackHandler accepts a feedback record and acknowledges immediately;
// delivery runs asynchronously and its failures are logged, never returned.
func FeedbackHandler(g *graph.Graph, exec Executor, logger *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		fb := new(payload.Feedback)
		if err := c.Bind(fb); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorBody{
				Code:    http.StatusBadRequest,
				Kind:    "malformed_request",
				Message: err.Error(),
			})
		}
		if fb.Request == nil {
			return c.JSON(http.StatusBadRequest, ErrorBody{
				Code:    http.StatusBadRequest,
				Kind:    "malformed_request",
				Message: "feedback record has no request payload",
			})
		}

		fbLogger := logger.With("request_id", fb.Request.Meta.RequestID)

		// Fire-and-forget: the prediction response was already returned, so
		// delivery happens off the request goroutine with its own deadline.
		go func() {
			ctx := ctxlog.WithLogger(context.Background(), fbLogger)
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := exec.SendFeedback(ctx, g, fb); err != nil {
				fbLogger.Warn("Feedback delivery incomplete.", "error", err)
			}
		}()

		return c.JSON(http.StatusOK, map[string]any{})
	}
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindConfiguration:
		return http.StatusBadRequest
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
