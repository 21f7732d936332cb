package graph

import (
	"fmt"
	"sync/atomic"
)

// NodeType is the closed set of prediction graph node kinds. The set is
// fixed; every dispatch over it is an exhaustive switch.
type NodeType string

const (
	Model             NodeType = "MODEL"
	Transformer       NodeType = "TRANSFORMER"
	OutputTransformer NodeType = "OUTPUT_TRANSFORMER"
	Router            NodeType = "ROUTER"
	Combiner          NodeType = "COMBINER"
)

// ParseNodeType validates a node type as written in a topology document.
func ParseNodeType(s string) (NodeType, error) {
	switch NodeType(s) {
	case Model, Transformer, OutputTransformer, Router, Combiner:
		return NodeType(s), nil
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// RequiresEndpoint reports whether nodes of this type must declare a backing
// service. Routers and combiners are pure logic and have none.
func (t NodeType) RequiresEndpoint() bool {
	switch t {
	case Model, Transformer, OutputTransformer:
		return true
	}
	return false
}

// Endpoint describes how to reach a node's backing service.
type Endpoint struct {
	Kind    string
	Address string
}

// Node is one vertex of a prediction graph. Name, Type, Endpoint, and the
// child mapping are immutable after Build; only the parameter set may be
// replaced, atomically, between requests.
type Node struct {
	Name     string
	Type     NodeType
	Endpoint *Endpoint

	// branches holds the branch keys in sorted order so that iteration and
	// router probability assignment are deterministic.
	branches []string
	children map[string]string

	params atomic.Pointer[ParamSet]
}

// Branches returns the node's branch keys in sorted order. Callers must not
// mutate the returned slice.
func (n *Node) Branches() []string {
	return n.branches
}

// Child resolves a branch key to the child node's name.
func (n *Node) Child(branch string) (string, bool) {
	name, ok := n.children[branch]
	return name, ok
}

// Params returns the node's current parameter set. The snapshot is immutable;
// a request reads it once per visit and therefore observes one consistent set
// for the node throughout its walk.
func (n *Node) Params() *ParamSet {
	return n.params.Load()
}

// SwapParams atomically installs a new parameter set. Intended for the
// deployment layer to refresh tunables between requests; in-flight walks keep
// the snapshot they already read.
func (n *Node) SwapParams(ps *ParamSet) {
	if ps == nil {
		ps = emptyParams
	}
	n.params.Store(ps)
}
