// Package strategy implements the per-node-type behavior of a prediction
// graph walk. Each node type is one Strategy; the closed set is dispatched
// through a single selection point so the routing and combination decisions
// are first-class, independently testable operations.
package strategy

import (
	"context"
	"fmt"

	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// Caller is the slice of the protocol client adapter a strategy needs: one
// synchronous call to a node's backing service. Satisfied by
// *transport.Client.
type Caller interface {
	Predict(ctx context.Context, node string, ep *graph.Endpoint, req *payload.Message) (*payload.Message, error)
}

// Dispatch is the outcome of a node's forward pass: which child branches to
// visit (in merge order) and the request to forward to them. An empty branch
// list marks a terminal node that answers the request itself via Invoke.
type Dispatch struct {
	Branches []string
	Request  *payload.Message
}

// Terminal reports whether the node answers the request itself.
func (d *Dispatch) Terminal() bool {
	return len(d.Branches) == 0
}

// Strategy is one node type's behavior, split along the walk's state
// machine: ForwardPass before descending, Invoke for terminal nodes, and
// BackwardPass on the way back up.
type Strategy interface {
	// ForwardPass may rewrite the request and selects the child branches to
	// visit. It must not retain req or node beyond the call.
	ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error)

	// Invoke answers a terminal dispatch by calling the node's backing
	// service with the current payload.
	Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error)

	// BackwardPass turns the visited children's responses into this node's
	// response. responses is aligned with the dispatch's branch order; a nil
	// entry marks a child whose failure was tolerated by policy.
	BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error)
}

// Set holds one strategy instance per node type, sharing a caller and a
// random source.
type Set struct {
	model             *modelStrategy
	transformer       *transformerStrategy
	outputTransformer *outputTransformerStrategy
	router            *routerStrategy
	combiner          *combinerStrategy
}

// NewSet wires the strategies. src may be nil, in which case the process
// global PRNG is used; tests inject a scripted source.
func NewSet(caller Caller, src Source) *Set {
	if src == nil {
		src = DefaultSource()
	}
	return &Set{
		model:             &modelStrategy{caller: caller},
		transformer:       &transformerStrategy{caller: caller},
		outputTransformer: &outputTransformerStrategy{caller: caller},
		router:            &routerStrategy{src: src},
		combiner:          &combinerStrategy{},
	}
}

// For is the single strategy-selection point over the closed node type set.
func (s *Set) For(t graph.NodeType) (Strategy, error) {
	switch t {
	case graph.Model:
		return s.model, nil
	case graph.Transformer:
		return s.transformer, nil
	case graph.OutputTransformer:
		return s.outputTransformer, nil
	case graph.Router:
		return s.router, nil
	case graph.Combiner:
		return s.combiner, nil
	}
	return nil, fmt.Errorf("no strategy for node type %q", t)
}
