package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	eiotransports "github.com/zishang520/engine.io/v2/transports"
	eiotypes "github.com/zishang520/engine.io/v2/types"
	sioserver "github.com/zishang520/socket.io/v2/socket"

	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// sioBackend is an in-process socket.io node backend: it answers predict
// events with the request's values (after an optional delay) and records
// feedback events.
type sioBackend struct {
	srv *sioserver.Server
	web *httptest.Server

	connections atomic.Int32

	mu    sync.Mutex
	delay time.Duration

	feedback chan *payload.Feedback
}

func newSIOBackend(t *testing.T) *sioBackend {
	t.Helper()
	b := &sioBackend{feedback: make(chan *payload.Feedback, 4)}

	opts := sioserver.DefaultServerOptions()
	opts.SetTransports(eiotypes.NewSet(eiotransports.WEBSOCKET, eiotransports.POLLING))
	b.srv = sioserver.NewServer(nil, opts)
	b.web = httptest.NewServer(b.srv.ServeHandler(nil))
	t.Cleanup(func() {
		b.srv.Close(nil)
		b.web.Close()
	})

	b.srv.On("connection", func(clients ...any) {
		client := clients[0].(*sioserver.Socket)
		b.connections.Add(1)

		client.On(eventPredict, func(data ...any) {
			req, err := decodeEventPayload(data[0])
			// assert, not require: this runs off the test goroutine.
			if !assert.NoError(t, err) {
				return
			}

			b.mu.Lock()
			delay := b.delay
			b.mu.Unlock()

			go func() {
				if delay > 0 {
					time.Sleep(delay)
				}
				resp := &payload.Message{Data: payload.Data{Values: req.Data.Values}}
				client.Emit(eventPrediction, encodeEventPayload(resp))
			}()
		})

		client.On(eventFeedback, func(data ...any) {
			fb, err := decodeEventFeedback(data[0])
			if !assert.NoError(t, err) {
				return
			}
			b.feedback <- fb
		})
	})
	return b
}

func (b *sioBackend) setDelay(d time.Duration) {
	b.mu.Lock()
	b.delay = d
	b.mu.Unlock()
}

// endpoint returns the bare host:port address form, as a topology document
// would declare it.
func (b *sioBackend) endpoint() *graph.Endpoint {
	return &graph.Endpoint{Kind: KindSocketIO, Address: b.web.URL}
}

func decodeEventFeedback(data any) (*payload.Feedback, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var fb payload.Feedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func TestSocketIOPredict_RoundTrip(t *testing.T) {
	backend := newSIOBackend(t)
	client := NewClient(Options{CallTimeout: 3 * time.Second})
	defer client.Close()

	// The bare http://host:port address must connect on the default
	// handshake path.
	resp, err := client.Predict(context.Background(), "model", backend.endpoint(), &payload.Message{
		Data: payload.Data{Values: [][]float64{{1, 2}}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}}, resp.Data.Values)
}

func TestSocketIOPredict_ReusesConnection(t *testing.T) {
	backend := newSIOBackend(t)
	client := NewClient(Options{CallTimeout: 3 * time.Second})
	defer client.Close()

	for i := range 3 {
		resp, err := client.Predict(context.Background(), "model", backend.endpoint(), &payload.Message{
			Data: payload.Data{Values: [][]float64{{float64(i)}}},
		})
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{float64(i)}}, resp.Data.Values)
	}
	assert.Equal(t, int32(1), backend.connections.Load(), "sequential predicts share one connection")
}

func TestSocketIOPredict_AbandonedResponseIsDiscarded(t *testing.T) {
	backend := newSIOBackend(t)
	client := NewClient(Options{CallTimeout: 3 * time.Second})
	defer client.Close()

	// First request: the backend answers after 300ms but the caller gives
	// up at 100ms.
	backend.setDelay(300 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Predict(ctx, "model", backend.endpoint(), &payload.Message{
		Data: payload.Data{Values: [][]float64{{1}}},
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTimeout))

	// Second request: the first request's late response must never be
	// served as this one's answer.
	backend.setDelay(0)
	resp, err := client.Predict(context.Background(), "model", backend.endpoint(), &payload.Message{
		Data: payload.Data{Values: [][]float64{{2}}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}}, resp.Data.Values,
		"the second request must receive its own response, not the abandoned one")
}

func TestSocketIOSendFeedback_Emits(t *testing.T) {
	backend := newSIOBackend(t)
	client := NewClient(Options{CallTimeout: 3 * time.Second})
	defer client.Close()

	err := client.SendFeedback(context.Background(), "model", backend.endpoint(), &payload.Feedback{
		Request: &payload.Message{Data: payload.Data{Values: [][]float64{{1}}}},
		Reward:  1,
	})
	require.NoError(t, err)

	select {
	case fb := <-backend.feedback:
		assert.InDelta(t, 1.0, fb.Reward, 1e-9)
		require.NotNil(t, fb.Request)
		assert.Equal(t, [][]float64{{1}}, fb.Request.Data.Values)
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the feedback event")
	}
}

func TestSocketIOPredict_UnreachableEndpoint(t *testing.T) {
	client := NewClient(Options{CallTimeout: 300 * time.Millisecond})
	defer client.Close()

	ep := &graph.Endpoint{Kind: KindSocketIO, Address: "http://127.0.0.1:1"}
	_, err := client.Predict(context.Background(), "model", ep, &payload.Message{})
	require.Error(t, err)
}

func TestSocketIOPredict_ClosedTransport(t *testing.T) {
	inv := newSocketIOInvoker(time.Second)
	inv.Close()

	_, err := inv.Predict(context.Background(), "model",
		&graph.Endpoint{Kind: KindSocketIO, Address: "http://127.0.0.1:1"}, &payload.Message{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "closed")
}
