// Package schema defines the HCL shapes of a prediction graph topology
// document. These structs mirror the document structure exactly; the loader
// in internal/hcl translates them into the format-agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Graph is the top-level `graph` block naming the tree's root node.
type Graph struct {
	Root string `hcl:"root"`
}

// Endpoint is the `endpoint` block of a node backed by a running service.
type Endpoint struct {
	Kind    string `hcl:"kind"`
	Address string `hcl:"address"`
}

// Parameter is one `parameter "<name>"` block: a typed value supplied by the
// deployer and consumed by the node's strategy.
type Parameter struct {
	Name  string         `hcl:"name,label"`
	Type  string         `hcl:"type"`
	Value hcl.Expression `hcl:"value"`
}

// Child is one `child "<branch-key>"` block mapping a branch key to another
// node in the document.
type Child struct {
	Branch string `hcl:"branch_key,label"`
	Node   string `hcl:"node"`
}

// Node is a `node "<TYPE>" "<name>"` block: one vertex of the prediction
// graph.
type Node struct {
	Type       string       `hcl:"node_type,label"`
	Name       string       `hcl:"instance_name,label"`
	Endpoint   *Endpoint    `hcl:"endpoint,block"`
	Parameters []*Parameter `hcl:"parameter,block"`
	Children   []*Child     `hcl:"child,block"`
}

// Topology is the root structure of a topology document. A document may be
// split across several files; blocks are merged by the loader.
type Topology struct {
	Graph *Graph   `hcl:"graph,block"`
	Nodes []*Node  `hcl:"node,block"`
	Body  hcl.Body `hcl:",remain"`
}
