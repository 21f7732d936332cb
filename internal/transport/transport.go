// Package transport abstracts "call a node's backing service" over the
// supported wire protocols. The engine picks an endpoint kind through a
// single dispatch point and stays agnostic to which transport is used; every
// transport-level failure comes back as a structured node invocation (or
// timeout) error carrying the failing node's name.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// Endpoint kinds understood by the client. The graph builder rejects any
// other kind before traffic is accepted.
const (
	KindREST     = "rest"
	KindMsgpack  = "msgpack"
	KindSocketIO = "socketio"
)

// Invoker is one wire protocol. Predict is synchronous from the caller's
// perspective and must honor the context deadline. SendFeedback expects no
// payload back.
type Invoker interface {
	Predict(ctx context.Context, node string, ep *graph.Endpoint, req *payload.Message) (*payload.Message, error)
	SendFeedback(ctx context.Context, node string, ep *graph.Endpoint, fb *payload.Feedback) error
	Close()
}

// Options tunes the shared transports.
type Options struct {
	// CallTimeout bounds a single node call when the request context carries
	// no tighter deadline.
	CallTimeout time.Duration
}

// Client is the protocol client adapter: one Invoker per endpoint kind,
// selected by the endpoint descriptor. No retries happen at this layer;
// retry policy belongs to the caller.
type Client struct {
	opts     Options
	invokers map[string]Invoker
}

// SupportedKinds lists the endpoint kinds a Client will accept. Exposed
// statically so the graph builder can validate topologies without
// constructing transports.
func SupportedKinds() []string {
	return []string{KindREST, KindMsgpack, KindSocketIO}
}

// NewClient builds the adapter with all supported transports registered.
func NewClient(opts Options) *Client {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	httpc := newPooledHTTPClient()
	return &Client{
		opts: opts,
		invokers: map[string]Invoker{
			KindREST:     newHTTPInvoker(httpc, jsonCodec{}),
			KindMsgpack:  newHTTPInvoker(httpc, msgpackCodec{}),
			KindSocketIO: newSocketIOInvoker(opts.CallTimeout),
		},
	}
}

// Predict invokes the node's endpoint with the request payload.
func (c *Client) Predict(ctx context.Context, node string, ep *graph.Endpoint, req *payload.Message) (*payload.Message, error) {
	inv, ok := c.invokers[ep.Kind]
	if !ok {
		return nil, errs.NodeInvocation(node, errors.New("unsupported endpoint kind "+ep.Kind))
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := inv.Predict(ctx, node, ep, req)
	if err != nil {
		return nil, classify(node, err)
	}
	return resp, nil
}

// SendFeedback delivers a feedback record to the node's endpoint.
func (c *Client) SendFeedback(ctx context.Context, node string, ep *graph.Endpoint, fb *payload.Feedback) error {
	inv, ok := c.invokers[ep.Kind]
	if !ok {
		return errs.NodeInvocation(node, errors.New("unsupported endpoint kind "+ep.Kind))
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	if err := inv.SendFeedback(ctx, node, ep, fb); err != nil {
		return classify(node, err)
	}
	return nil
}

// Close releases pooled connections across all transports.
func (c *Client) Close() {
	for _, inv := range c.invokers {
		inv.Close()
	}
}

// callContext tightens the context with the per-call timeout. A caller
// deadline closer than the per-call budget wins automatically.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.CallTimeout)
}

// classify maps a transport failure onto the structured taxonomy: deadline
// expiry becomes a timeout error, everything else a node invocation error.
func classify(node string, err error) error {
	var structured *errs.Error
	if errors.As(err, &structured) {
		return structured
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Timeout(node, "node call abandoned: %s", err)
	}
	return errs.NodeInvocation(node, err)
}
