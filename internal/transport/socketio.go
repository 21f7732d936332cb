package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// Socket.io event names a node backend is expected to speak.
const (
	eventPredict    = "predict"
	eventPrediction = "prediction"
	eventFeedback   = "feedback"
)

// socketIOInvoker calls node backends over a persistent socket.io connection
// per endpoint. A prediction is an Emit of the request followed by a one-shot
// wait for the response event; feedback is a bare Emit with nothing expected
// back.
type socketIOInvoker struct {
	callTimeout time.Duration

	// mu guards the slot map only; dialing happens under the slot's own
	// lock so one unreachable endpoint never stalls calls to the others.
	mu     sync.Mutex
	closed bool
	conns  map[string]*sioConn
}

// sioConn is one endpoint's connection slot. Its mutex serializes dialing
// and the predict/prediction exchange: the exchange carries no correlation
// id, so only one prediction may be in flight per connection at a time.
type sioConn struct {
	mu sync.Mutex
	io *socket.Socket
}

func newSocketIOInvoker(callTimeout time.Duration) *socketIOInvoker {
	return &socketIOInvoker{
		callTimeout: callTimeout,
		conns:       make(map[string]*sioConn),
	}
}

type sioResult struct {
	resp *payload.Message
	err  error
}

// Predict emits the request payload and waits for the backend's prediction
// event, bounded by the context deadline.
func (s *socketIOInvoker) Predict(ctx context.Context, node string, ep *graph.Endpoint, req *payload.Message) (*payload.Message, error) {
	c, err := s.slot(ep)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	io, err := s.socket(ctx, c, ep.Address)
	if err != nil {
		return nil, err
	}

	done := make(chan sioResult, 1)
	handler := func(data ...any) {
		if len(data) == 0 {
			done <- sioResult{err: fmt.Errorf("backend sent empty %s event", eventPrediction)}
			return
		}
		resp, err := decodeEventPayload(data[0])
		done <- sioResult{resp: resp, err: err}
	}
	io.Once(types.EventName(eventPrediction), handler)

	io.Emit(eventPredict, encodeEventPayload(req))

	select {
	case <-ctx.Done():
		// The backend may still answer this request later. Without a
		// correlation id on the exchange, a late prediction event must never
		// reach the next request's listener: drop ours and tear down the
		// tainted connection so the next call starts on a fresh one.
		io.RemoveListener(types.EventName(eventPrediction), handler)
		io.Disconnect()
		c.io = nil
		return nil, ctx.Err()
	case res := <-done:
		return res.resp, res.err
	}
}

// SendFeedback emits the feedback record. Fire-and-forget: socket.io gives
// no delivery confirmation for a bare emit.
func (s *socketIOInvoker) SendFeedback(ctx context.Context, node string, ep *graph.Endpoint, fb *payload.Feedback) error {
	c, err := s.slot(ep)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	io, err := s.socket(ctx, c, ep.Address)
	if err != nil {
		return err
	}
	io.Emit(eventFeedback, encodeEventPayload(fb))
	return nil
}

// slot returns the endpoint's connection slot, creating an empty one on
// first use. Dialing is deferred to the caller under the slot's lock.
func (s *socketIOInvoker) slot(ep *graph.Endpoint) (*sioConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("socket.io transport is closed")
	}
	c, ok := s.conns[ep.Address]
	if !ok {
		c = &sioConn{}
		s.conns[ep.Address] = c
	}
	return c, nil
}

// socket returns the slot's live connection, dialing on first use or after a
// teardown. The caller holds c.mu.
func (s *socketIOInvoker) socket(ctx context.Context, c *sioConn, address string) (*socket.Socket, error) {
	if c.io != nil {
		return c.io, nil
	}
	io, err := s.dial(ctx, address)
	if err != nil {
		return nil, err
	}
	c.io = io
	return io, nil
}

// dial establishes a websocket-transported socket.io connection and waits for
// the connect handshake to settle.
func (s *socketIOInvoker) dial(ctx context.Context, address string) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "address", address)
	logger.Info("Creating new socket.io connection...")

	parsedURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint address: %w", err)
	}

	opts := socket.DefaultOptions()
	// A bare host:port address keeps the library's default /socket.io
	// handshake path; an empty path would break the handshake.
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errors ...any) {
		err, _ := errors[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errors[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("socket.io connection abandoned: %w", ctx.Err())
	case <-time.After(s.callTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", s.callTimeout)
	}
}

// Close disconnects every cached connection and refuses further calls.
func (s *socketIOInvoker) Close() {
	s.mu.Lock()
	s.closed = true
	conns := s.conns
	s.conns = make(map[string]*sioConn)
	s.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		if c.io != nil {
			c.io.Disconnect()
			c.io = nil
		}
		c.mu.Unlock()
	}
}

// encodeEventPayload converts a message struct into the loosely typed form
// socket.io emits, via a JSON round trip.
func encodeEventPayload(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// decodeEventPayload converts received event data back into a message.
func decodeEventPayload(data any) (*payload.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	var msg payload.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	return &msg, nil
}
