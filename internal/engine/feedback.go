package engine

import (
	"context"
	"errors"

	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// SendFeedback walks the route the original prediction took and delivers the
// feedback record to every visited node that has a backing service. Delivery
// is best-effort: one node's failure never aborts delivery to the others, and
// the collected failures are returned for logging only, never surfaced to
// the prediction caller.
//
// The route is reconstructed from the routing decisions stamped into the
// prediction response's meta. A router with no recorded decision ends that
// subtree's delivery; unselected sibling branches are never visited.
func (e *Engine) SendFeedback(ctx context.Context, g *graph.Graph, fb *payload.Feedback) error {
	if fb == nil || fb.Request == nil {
		return errs.Configuration("feedback record has no request payload")
	}

	var routing map[string]string
	if fb.Response != nil {
		routing = fb.Response.Meta.Routing
	}

	var failures []error
	e.deliverFeedback(ctx, g, g.Root(), fb, routing, 1, &failures)
	return errors.Join(failures...)
}

// deliverFeedback mirrors the prediction walk. Unlike Execute, it carries no
// payload rewriting: every node on the route receives the same record.
func (e *Engine) deliverFeedback(ctx context.Context, g *graph.Graph, node *graph.Node, fb *payload.Feedback, routing map[string]string, depth int, failures *[]error) {
	logger := ctxlog.FromContext(ctx)

	if depth > e.maxDepth {
		*failures = append(*failures, errs.DepthExceeded(node.Name, e.maxDepth))
		return
	}
	if ctx.Err() != nil {
		*failures = append(*failures, errs.Timeout(node.Name, "feedback delivery abandoned"))
		return
	}

	if node.Endpoint != nil {
		if err := e.sender.SendFeedback(ctx, node.Name, node.Endpoint, fb); err != nil {
			logger.Warn("Feedback delivery to node failed.", "node", node.Name, "error", err)
			*failures = append(*failures, err)
		}
	}

	for _, branch := range e.feedbackBranches(ctx, node, routing) {
		childName, ok := node.Child(branch)
		if !ok {
			continue
		}
		child, ok := g.Node(childName)
		if !ok {
			continue
		}
		e.deliverFeedback(ctx, g, child, fb, routing, depth+1, failures)
	}
}

// feedbackBranches selects the branches the original prediction descended
// into: the recorded choice for routers, every branch for combiners, the
// sole branch for transformers, and nothing below a model.
func (e *Engine) feedbackBranches(ctx context.Context, node *graph.Node, routing map[string]string) []string {
	switch node.Type {
	case graph.Model:
		return nil
	case graph.Router:
		branch, ok := routing[node.Name]
		if !ok {
			ctxlog.FromContext(ctx).Warn(
				"No recorded routing decision for router; skipping its subtree.",
				"node", node.Name)
			return nil
		}
		return []string{branch}
	default:
		return node.Branches()
	}
}
