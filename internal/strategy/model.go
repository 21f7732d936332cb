package strategy

import (
	"context"
	"fmt"

	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// modelStrategy is the terminal node behavior: call the backing service with
// the current payload and return its response unmodified. Children, if any
// are configured, are never visited.
type modelStrategy struct {
	caller Caller
}

func (m *modelStrategy) ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error) {
	return &Dispatch{Request: req}, nil
}

func (m *modelStrategy) Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error) {
	return m.caller.Predict(ctx, node.Name, node.Endpoint, req)
}

func (m *modelStrategy) BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error) {
	return nil, fmt.Errorf("model node %q has no backward pass", node.Name)
}
