package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/engine"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
	"github.com/vk/predictgrid/internal/testutil"
)

// fakeExecutor scripts the engine behind the handlers.
type fakeExecutor struct {
	resp *payload.Message
	err  error

	executed chan *payload.Message
	feedback chan *payload.Feedback
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		executed: make(chan *payload.Message, 1),
		feedback: make(chan *payload.Feedback, 1),
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, g *graph.Graph, req *payload.Message) (*payload.Message, *engine.Route, error) {
	f.executed <- req
	if f.err != nil {
		return nil, &engine.Route{}, f.err
	}
	return f.resp, &engine.Route{}, nil
}

func (f *fakeExecutor) SendFeedback(ctx context.Context, g *graph.Graph, fb *payload.Feedback) error {
	f.feedback <- fb
	return nil
}

func newTestServer(t *testing.T, exec Executor) *Server {
	t.Helper()
	g := testutil.MustBuildGraph(t, &config.Model{
		Root: "model",
		Nodes: []*config.NodeSpec{
			{
				Name:     "model",
				Type:     "MODEL",
				Endpoint: &config.EndpointSpec{Kind: "rest", Address: "http://model:9000"},
			},
		},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{ListenAddr: ":0", RequestTimeout: time.Second}, g, exec, logger)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestPredictionsHandler_OK(t *testing.T) {
	exec := newFakeExecutor()
	exec.resp = &payload.Message{Data: payload.Data{Values: [][]float64{{0.9}}}}
	s := newTestServer(t, exec)

	rec := doRequest(s, http.MethodPost, "/api/v1.0/predictions", `{"data":{"values":[[1,2]]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp payload.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, [][]float64{{0.9}}, resp.Data.Values)

	executed := <-exec.executed
	assert.Equal(t, [][]float64{{1, 2}}, executed.Data.Values)
	assert.NotEmpty(t, executed.Meta.RequestID, "a request id is assigned when the caller sends none")
}

func TestPredictionsHandler_KeepsCallerRequestID(t *testing.T) {
	exec := newFakeExecutor()
	exec.resp = &payload.Message{}
	s := newTestServer(t, exec)

	rec := doRequest(s, http.MethodPost, "/api/v1.0/predictions",
		`{"meta":{"request_id":"caller-1"},"data":{"values":[[1]]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	executed := <-exec.executed
	assert.Equal(t, "caller-1", executed.Meta.RequestID)
}

func TestPredictionsHandler_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantNode   string
	}{
		{
			name:       "timeout maps to gateway timeout",
			err:        errs.Timeout("model-b", "node call abandoned"),
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   "timeout",
			wantNode:   "model-b",
		},
		{
			name:       "configuration maps to bad request",
			err:        errs.ConfigurationAt("router", "ratio_a must be within [0, 1]"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "configuration",
			wantNode:   "router",
		},
		{
			name:       "combination maps to internal error",
			err:        errs.Combination("combine", "no child produced a defined result"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "combination",
			wantNode:   "combine",
		},
		{
			name:       "unstructured error is wrapped as node invocation",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "node_invocation",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.err = tc.err
			s := newTestServer(t, exec)

			rec := doRequest(s, http.MethodPost, "/api/v1.0/predictions", `{"data":{"values":[[1]]}}`)
			assert.Equal(t, tc.wantStatus, rec.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantStatus, body.Code)
			assert.Equal(t, tc.wantKind, body.Kind)
			assert.Equal(t, tc.wantNode, body.Node)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestPredictionsHandler_MalformedBody(t *testing.T) {
	s := newTestServer(t, newFakeExecutor())

	rec := doRequest(s, http.MethodPost, "/api/v1.0/predictions", `{"data":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "malformed_request", body.Kind)
}

func TestFeedbackHandler_AcknowledgesAndDelivers(t *testing.T) {
	exec := newFakeExecutor()
	s := newTestServer(t, exec)

	rec := doRequest(s, http.MethodPost, "/api/v1.0/feedback",
		`{"request":{"data":{"values":[[1]]}},"reward":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	// Delivery is asynchronous; the acknowledgement does not wait for it.
	select {
	case fb := <-exec.feedback:
		assert.InDelta(t, 0.5, fb.Reward, 1e-9)
		assert.Equal(t, [][]float64{{1}}, fb.Request.Data.Values)
	case <-time.After(time.Second):
		t.Fatal("feedback was never delivered to the engine")
	}
}

func TestFeedbackHandler_RequiresRequestPayload(t *testing.T) {
	exec := newFakeExecutor()
	s := newTestServer(t, exec)

	rec := doRequest(s, http.MethodPost, "/api/v1.0/feedback", `{"reward":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	select {
	case <-exec.feedback:
		t.Fatal("rejected feedback must not reach the engine")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, newFakeExecutor())

	rec := doRequest(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}
