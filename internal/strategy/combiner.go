package strategy

import (
	"context"
	"fmt"

	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/graph"
	"github.com/vk/predictgrid/internal/payload"
)

// ParamOnError is the combiner parameter selecting the failure policy for
// child walks.
const ParamOnError = "on_error"

// ErrorPolicy values.
const (
	// FailFast fails the combination as soon as any child fails. Default.
	FailFast = "fail_fast"
	// ContinueOnError drops failed children from the merge. Combination
	// still fails when no child succeeds.
	ContinueOnError = "continue_on_error"
)

// ErrorPolicy reads a combiner's configured failure policy. Dropping a
// failed child's contribution must be explicitly configured; the default is
// fail-fast.
func ErrorPolicy(node *graph.Node) (string, error) {
	policy, ok := node.Params().String(ParamOnError)
	if !ok {
		return FailFast, nil
	}
	switch policy {
	case FailFast, ContinueOnError:
		return policy, nil
	}
	return "", errs.ConfigurationAt(node.Name,
		"unknown on_error policy %q (want %q or %q)", policy, FailFast, ContinueOnError)
}

// combinerStrategy fans the request out to every child and merges their
// responses by element-wise mean over aligned tensor values. The merge is
// deterministic with respect to branch order, never arrival order.
type combinerStrategy struct{}

func (c *combinerStrategy) ForwardPass(ctx context.Context, req *payload.Message, node *graph.Node) (*Dispatch, error) {
	return &Dispatch{Branches: node.Branches(), Request: req}, nil
}

func (c *combinerStrategy) Invoke(ctx context.Context, req *payload.Message, node *graph.Node) (*payload.Message, error) {
	return nil, fmt.Errorf("combiner node %q is not terminal", node.Name)
}

func (c *combinerStrategy) BackwardPass(ctx context.Context, req *payload.Message, node *graph.Node, responses []*payload.Message) (*payload.Message, error) {
	defined := make([]*payload.Message, 0, len(responses))
	for _, resp := range responses {
		if resp != nil {
			defined = append(defined, resp)
		}
	}
	if len(defined) == 0 {
		return nil, errs.Combination(node.Name, "no child produced a defined result")
	}

	first := defined[0]
	for _, resp := range defined[1:] {
		if !first.Data.SameShape(resp.Data) {
			r0, c0 := first.Data.Shape()
			r1, c1 := resp.Data.Shape()
			return nil, errs.Combination(node.Name,
				"child result shapes are incompatible: %dx%d vs %dx%d", r0, c0, r1, c1)
		}
		if !sameNames(first.Data.Names, resp.Data.Names) {
			return nil, errs.Combination(node.Name,
				"child results disagree on feature names")
		}
	}

	merged := first.Clone()
	for i, row := range merged.Data.Values {
		for j := range row {
			sum := 0.0
			for _, resp := range defined {
				sum += resp.Data.Values[i][j]
			}
			merged.Data.Values[i][j] = sum / float64(len(defined))
		}
	}
	return merged, nil
}

// sameNames treats an absent name vector as compatible with anything.
func sameNames(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
