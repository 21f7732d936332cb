package strategy

import (
	"context"
	"fmt"

	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// ParamRatioA is the router parameter giving the probability of the first
// branch key in sorted order. The remaining probability mass is split evenly
// across the other children.
const ParamRatioA = "ratio_a"

const defaultRatioA = 0.5

// routerStrategy is the weighted random A/B selection policy: exactly one
// child per request, drawn independently per request so that over many
// requests each child is chosen with its configured share.
type routerStrategy struct {
	src Source
}

func (r *routerStrategy) ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error) {
	branches := node.Branches()
	if len(branches) < 2 {
		// Never silently route to a sole child.
		return nil, errs.Routing(node.Name,
			"router has %d children, need at least 2", len(branches))
	}

	ratioA, ok := node.Params().Float(ParamRatioA)
	if !ok {
		ratioA = defaultRatioA
	}
	if ratioA < 0 || ratioA > 1 {
		return nil, errs.Routing(node.Name, "ratio_a must be within [0, 1], got %v", ratioA)
	}

	branch := pick(branches, ratioA, r.src.Float64())
	return &Dispatch{Branches: []string{branch}, Request: req}, nil
}

// pick maps one uniform draw onto the branch whose cumulative probability
// interval contains it. branches[0] owns [0, ratioA); the rest split the
// remaining mass evenly.
func pick(branches []string, ratioA, draw float64) string {
	if draw < ratioA {
		return branches[0]
	}
	rest := branches[1:]
	share := (1 - ratioA) / float64(len(rest))
	if share <= 0 {
		// ratioA == 1 with a draw of exactly 1.0 cannot happen (draws are in
		// [0, 1)), but guard the division anyway.
		return branches[0]
	}
	idx := int((draw - ratioA) / share)
	if idx >= len(rest) {
		idx = len(rest) - 1
	}
	return rest[idx]
}

func (r *routerStrategy) Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error) {
	return nil, fmt.Errorf("router node %q is not terminal", node.Name)
}

func (r *routerStrategy) BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error) {
	return responses[0], nil
}
