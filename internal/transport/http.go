package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// newPooledHTTPClient builds the http.Client shared by the REST and msgpack
// transports. The per-call deadline is enforced via context, not the client
// timeout, so feedback and prediction calls can carry different budgets.
func newPooledHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// codec is the wire encoding used by an HTTP-style transport.
type codec interface {
	contentType() string
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

// jsonCodec is the REST-style JSON encoding.
type jsonCodec struct{}

func (jsonCodec) contentType() string                { return "application/json" }
func (jsonCodec) marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// msgpackCodec is the binary RPC-style encoding.
type msgpackCodec struct{}

func (msgpackCodec) contentType() string                { return "application/x-msgpack" }
func (msgpackCodec) marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// httpInvoker calls node backends over HTTP POST with a pluggable body
// encoding. A node backend exposes /predict and /feedback.
type httpInvoker struct {
	client *http.Client
	codec  codec
}

func newHTTPInvoker(client *http.Client, c codec) *httpInvoker {
	return &httpInvoker{client: client, codec: c}
}

// Predict posts the request payload to the node's /predict route and decodes
// the response payload.
func (h *httpInvoker) Predict(ctx context.Context, node string, ep *graph.Endpoint, req *payload.Message) (*payload.Message, error) {
	body, err := h.post(ctx, ep, "/predict", req)
	if err != nil {
		return nil, err
	}
	var resp payload.Message
	if err := h.codec.unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	return &resp, nil
}

// SendFeedback posts the feedback record to the node's /feedback route. The
// response body, if any, is discarded.
func (h *httpInvoker) SendFeedback(ctx context.Context, node string, ep *graph.Endpoint, fb *payload.Feedback) error {
	_, err := h.post(ctx, ep, "/feedback", fb)
	return err
}

func (h *httpInvoker) post(ctx context.Context, ep *graph.Endpoint, route string, v any) ([]byte, error) {
	encoded, err := h.codec.marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(ep.Address, "/") + route
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", h.codec.contentType())
	httpReq.Header.Set("Accept", h.codec.contentType())

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("backend returned status %d: %s", httpResp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

// Close releases idle pooled connections. Both HTTP transports share one
// client, so closing twice is harmless.
func (h *httpInvoker) Close() {
	h.client.CloseIdleConnections()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
