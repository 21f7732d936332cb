// Package engine orchestrates a full prediction request: the recursive graph
// walk, dispatch to node strategies, combiner fan-out, result aggregation,
// and error propagation. It also mirrors the walk for the asynchronous
// feedback path.
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
	"github.com/vk/predictgrid/internal/strategy"
)

// DefaultMaxDepth bounds the recursive walk. Tree validation makes a deep
// walk unlikely; the bound defends against accidentally cyclic configuration
// reaching the engine through hand-built graphs.
const DefaultMaxDepth = 50

// FeedbackSender is the slice of the protocol client adapter the feedback
// path needs. Satisfied by *transport.Client.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, node string, ep *graph.Endpoint, fb *payload.Feedback) error
}

// Engine walks prediction graphs. Safe for concurrent use; all per-request
// state lives on the stack of one Execute call.
type Engine struct {
	strategies *strategy.Set
	sender     FeedbackSender
	maxDepth   int
}

// New builds an engine. maxDepth <= 0 selects DefaultMaxDepth.
func New(strategies *strategy.Set, sender FeedbackSender, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{strategies: strategies, sender: sender, maxDepth: maxDepth}
}

// Execute walks the graph from its root and returns exactly one response or
// one structured error. The returned route lists the nodes visited and the
// router decisions taken; the same decisions are stamped into the response
// meta for the feedback path.
func (e *Engine) Execute(ctx context.Context, g *graph.Graph, req *payload.Message) (*payload.Message, *Route, error) {
	route := newRoute()
	resp, err := e.walk(ctx, g, g.Root(), req, 1, route)
	if err != nil {
		return nil, route, err
	}

	resp.Meta.RequestID = req.Meta.RequestID
	resp.Meta.Routing = route.Choices()
	return resp, route, nil
}

// walk runs one node's state machine: forward pass, dispatch into children
// (or a terminal invoke), then backward pass over the child responses.
func (e *Engine) walk(ctx context.Context, g *graph.Graph, node *graph.Node, req *payload.Message, depth int, route *Route) (*payload.Message, error) {
	if depth > e.maxDepth {
		return nil, errs.DepthExceeded(node.Name, e.maxDepth)
	}
	if err := ctx.Err(); err != nil {
		// The deadline expired before this node was dispatched; issue no
		// further downstream calls.
		return nil, errs.Timeout(node.Name, "request deadline exceeded before dispatch")
	}

	route.visit(node.Name)

	st, err := e.strategies.For(node.Type)
	if err != nil {
		return nil, errs.ConfigurationAt(node.Name, "%s", err)
	}

	dispatch, err := st.ForwardPass(ctx, req, node)
	if err != nil {
		return nil, err
	}

	if dispatch.Terminal() {
		return st.Invoke(ctx, dispatch.Request, node)
	}

	if node.Type == graph.Router {
		route.choose(node.Name, dispatch.Branches[0])
	}

	responses, err := e.descend(ctx, g, node, dispatch, depth, route)
	if err != nil {
		return nil, err
	}

	return st.BackwardPass(ctx, req, node, responses)
}

// descend visits the dispatched children. A single branch recurses on the
// caller's goroutine; multiple branches (a combiner) fan out concurrently and
// gather before returning, with responses slotted by branch order so arrival
// order never affects the merge.
func (e *Engine) descend(ctx context.Context, g *graph.Graph, node *graph.Node, dispatch *strategy.Dispatch, depth int, route *Route) ([]*payload.Message, error) {
	if len(dispatch.Branches) == 1 {
		child, err := e.resolve(g, node, dispatch.Branches[0])
		if err != nil {
			return nil, err
		}
		resp, err := e.walk(ctx, g, child, dispatch.Request, depth+1, route)
		if err != nil {
			return nil, err
		}
		return []*payload.Message{resp}, nil
	}

	policy, err := strategy.ErrorPolicy(node)
	if err != nil {
		return nil, err
	}

	responses := make([]*payload.Message, len(dispatch.Branches))
	childErrs := make([]error, len(dispatch.Branches))

	grp, grpCtx := errgroup.WithContext(ctx)
	for i, branch := range dispatch.Branches {
		child, err := e.resolve(g, node, branch)
		if err != nil {
			return nil, err
		}
		// Each branch walks its own copy of the payload so sibling subtrees
		// never observe each other's rewrites.
		childReq := dispatch.Request.Clone()
		grp.Go(func() error {
			resp, err := e.walk(grpCtx, g, child, childReq, depth+1, route)
			if err != nil {
				childErrs[i] = err
				if policy == strategy.FailFast {
					// Cancels grpCtx; in-flight siblings are abandoned and
					// their eventual results discarded.
					return err
				}
				return nil
			}
			responses[i] = resp
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	if policy == strategy.ContinueOnError {
		logger := ctxlog.FromContext(ctx)
		for i, cerr := range childErrs {
			if cerr != nil {
				logger.Warn("Combiner child failed; dropped from merge by policy.",
					"combiner", node.Name, "branch", dispatch.Branches[i], "error", cerr)
			}
		}
	}
	return responses, nil
}

// resolve maps a branch key to the child node, defending against graphs that
// were mutated or hand-built without the builder's validation.
func (e *Engine) resolve(g *graph.Graph, node *graph.Node, branch string) (*graph.Node, error) {
	childName, ok := node.Child(branch)
	if !ok {
		return nil, errs.ConfigurationAt(node.Name, "branch %q is not configured", branch)
	}
	child, ok := g.Node(childName)
	if !ok {
		return nil, errs.ConfigurationAt(node.Name,
			"branch %q references unknown node %q", branch, childName)
	}
	return child, nil
}
