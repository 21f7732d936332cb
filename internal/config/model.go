package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a prediction graph
// topology, decoupled from the document format it was loaded from.
type Model struct {
	Root  string
	Nodes []*NodeSpec
}

// NodeSpec is the format-agnostic representation of one `node` block.
// Parameters and Children keep document order.
type NodeSpec struct {
	Name       string
	Type       string
	Endpoint   *EndpointSpec
	Parameters []*ParamSpec
	Children   []*ChildSpec
}

// EndpointSpec describes how to reach a node's backing service.
type EndpointSpec struct {
	Kind    string
	Address string
}

// ParamSpec is one typed parameter as written by the deployer. Value has
// already been evaluated and converted to the declared type.
type ParamSpec struct {
	Name  string
	Type  string
	Value cty.Value
}

// ChildSpec maps a branch key to the name of another node in the model.
type ChildSpec struct {
	Branch string
	Node   string
}
