// Package graph holds the immutable in-memory representation of a prediction
// graph: an arena of typed nodes addressed by name, with child relationships
// stored as branch-key lookups into the arena. The structure is a tree rooted
// at exactly one node and is read-only during request execution; only
// per-node parameter sets may be hot-swapped between requests.
package graph

// Graph is a validated prediction graph. Safe for concurrent use by any
// number of in-flight requests.
type Graph struct {
	root  string
	nodes map[string]*Node
}

// Root returns the graph's root node.
func (g *Graph) Root() *Node {
	return g.nodes[g.root]
}

// Node resolves a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}
