// Package testutil provides shared helpers for package tests: a scripted
// random source, a config-model graph builder, and a fake node backend.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
	"github.com/vk/predictgrid/internal/transport"
)

// ScriptedSource replays a fixed sequence of draws, cycling when exhausted.
// It makes routing decisions exactly reproducible in tests.
type ScriptedSource struct {
	mu    sync.Mutex
	draws []float64
	next  int
}

// NewScriptedSource builds a source replaying the given draws.
func NewScriptedSource(draws ...float64) *ScriptedSource {
	return &ScriptedSource{draws: draws}
}

// Float64 returns the next scripted draw.
func (s *ScriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draws[s.next%len(s.draws)]
	s.next++
	return d
}

// MustBuildGraph builds and validates a graph from a config model, failing
// the test on any configuration error.
func MustBuildGraph(t *testing.T, model *config.Model) *graph.Graph {
	t.Helper()
	g, err := graph.Build(context.Background(), model, transport.SupportedKinds())
	require.NoError(t, err)
	return g
}

// FloatParam is a shorthand for a float parameter spec.
func FloatParam(name string, value float64) *config.ParamSpec {
	return &config.ParamSpec{Name: name, Type: "float", Value: cty.NumberFloatVal(value)}
}

// StringParam is a shorthand for a string parameter spec.
func StringParam(name, value string) *config.ParamSpec {
	return &config.ParamSpec{Name: name, Type: "string", Value: cty.StringVal(value)}
}

// FakeBackend is an httptest-backed node service speaking the REST JSON
// protocol. It records calls and can delay or fail on demand.
type FakeBackend struct {
	*httptest.Server

	// Respond computes the prediction response. Defaults to echoing the
	// request payload.
	Respond func(req *payload.Message) *payload.Message
	// Delay is applied before answering a predict call.
	Delay time.Duration
	// FailWith, when non-zero, makes every predict call answer that status.
	FailWith int

	mu            sync.Mutex
	predictCalls  int
	feedbackCalls int
	lastFeedback  *payload.Feedback
}

// NewFakeBackend starts a fake node backend. The server is shut down with
// the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", fb.handlePredict)
	mux.HandleFunc("/feedback", fb.handleFeedback)
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Server.Close)
	return fb
}

// Endpoint describes the backend as a graph endpoint.
func (f *FakeBackend) Endpoint() *config.EndpointSpec {
	return &config.EndpointSpec{Kind: transport.KindREST, Address: f.URL}
}

// PredictCalls returns how many predict calls the backend has served.
func (f *FakeBackend) PredictCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.predictCalls
}

// FeedbackCalls returns how many feedback calls the backend has served.
func (f *FakeBackend) FeedbackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedbackCalls
}

// LastFeedback returns the most recently delivered feedback record.
func (f *FakeBackend) LastFeedback() *payload.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFeedback
}

func (f *FakeBackend) handlePredict(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.predictCalls++
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if f.FailWith != 0 {
		http.Error(w, "simulated backend failure", f.FailWith)
		return
	}

	var req payload.Message
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := &req
	if f.Respond != nil {
		resp = f.Respond(&req)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *FakeBackend) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb payload.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.feedbackCalls++
	f.lastFeedback = &fb
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}
