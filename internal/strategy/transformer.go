package strategy

import (
	"context"
	"fmt"

	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// transformerStrategy rewrites the request through the node's backing
// service before forwarding it to the node's single child. The child's
// response travels upward unchanged.
type transformerStrategy struct {
	caller Caller
}

func (t *transformerStrategy) ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error) {
	branch, err := soleBranch(node)
	if err != nil {
		return nil, err
	}
	rewritten, err := t.caller.Predict(ctx, node.Name, node.Endpoint, req)
	if err != nil {
		return nil, err
	}
	// The rewritten payload has a new identity; metadata carries over from
	// the inbound request where the backend echoed none.
	if rewritten.Meta.RequestID == "" {
		rewritten.Meta.RequestID = req.Meta.RequestID
	}
	return &Dispatch{Branches: []string{branch}, Request: rewritten}, nil
}

func (t *transformerStrategy) Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error) {
	return nil, fmt.Errorf("transformer node %q is not terminal", node.Name)
}

func (t *transformerStrategy) BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error) {
	return responses[0], nil
}

// outputTransformerStrategy forwards the request unmodified and runs the
// backing service over the child's response on the way back up: a
// post-processing hook.
type outputTransformerStrategy struct {
	caller Caller
}

func (o *outputTransformerStrategy) ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error) {
	branch, err := soleBranch(node)
	if err != nil {
		return nil, err
	}
	return &Dispatch{Branches: []string{branch}, Request: req}, nil
}

func (o *outputTransformerStrategy) Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error) {
	return nil, fmt.Errorf("output transformer node %q is not terminal", node.Name)
}

func (o *outputTransformerStrategy) BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error) {
	return o.caller.Predict(ctx, node.Name, node.Endpoint, responses[0])
}

// soleBranch returns a transformer's single child branch. The builder
// enforces the cardinality for static configs; this guards hand-built graphs.
func soleBranch(node *graph.Node) (string, error) {
	branches := node.Branches()
	if len(branches) != 1 {
		return "", errs.ConfigurationAt(node.Name,
			"%s has %d children, need exactly 1", node.Type, len(branches))
	}
	return branches[0], nil
}
