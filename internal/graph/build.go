package graph

import (
	"context"
	"slices"
	"sort"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/ctxlog"
	"github.com/vk/predictgrid/internal/errs"
)

// Build constructs a complete, validated prediction graph from a config
// model. endpointKinds is the set of transport kinds the running engine
// supports; a node declaring any other kind is rejected here, at build time.
// No partially built graph is ever returned.
func Build(ctx context.Context, model *config.Model, endpointKinds []string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "root", model.Root)

	g := &Graph{root: model.Root, nodes: make(map[string]*Node, len(model.Nodes))}

	// First pass: create all nodes.
	for _, spec := range model.Nodes {
		node, err := buildNode(spec, endpointKinds)
		if err != nil {
			return nil, err
		}
		if _, exists := g.nodes[node.Name]; exists {
			return nil, errs.Configuration("duplicate node name %q", node.Name)
		}
		g.nodes[node.Name] = node
	}
	logger.Debug("Build: node creation complete.", "node_count", len(g.nodes))

	// Second pass: resolve child references and check the tree shape.
	if err := linkNodes(g); err != nil {
		return nil, err
	}

	// Third pass: per-type structural rules.
	for _, node := range g.nodes {
		if err := validateShape(ctx, node); err != nil {
			return nil, err
		}
	}

	if err := detectCycles(g); err != nil {
		return nil, err
	}

	reportUnreachable(ctx, g)

	logger.Debug("Build: graph construction successful.")
	return g, nil
}

// buildNode translates one node spec, validating its type, endpoint, and
// parameter set.
func buildNode(spec *config.NodeSpec, endpointKinds []string) (*Node, error) {
	nodeType, err := ParseNodeType(spec.Type)
	if err != nil {
		return nil, errs.ConfigurationAt(spec.Name, "%s", err)
	}

	node := &Node{
		Name:     spec.Name,
		Type:     nodeType,
		children: make(map[string]string, len(spec.Children)),
	}

	if spec.Endpoint != nil {
		if !slices.Contains(endpointKinds, spec.Endpoint.Kind) {
			return nil, errs.ConfigurationAt(spec.Name,
				"endpoint kind %q is not supported (supported: %v)",
				spec.Endpoint.Kind, endpointKinds)
		}
		if spec.Endpoint.Address == "" {
			return nil, errs.ConfigurationAt(spec.Name, "endpoint address is empty")
		}
		node.Endpoint = &Endpoint{Kind: spec.Endpoint.Kind, Address: spec.Endpoint.Address}
	}
	if node.Endpoint == nil && nodeType.RequiresEndpoint() {
		return nil, errs.ConfigurationAt(spec.Name,
			"node type %s requires an endpoint", nodeType)
	}

	for _, c := range spec.Children {
		if _, exists := node.children[c.Branch]; exists {
			return nil, errs.ConfigurationAt(spec.Name, "duplicate branch key %q", c.Branch)
		}
		node.children[c.Branch] = c.Node
		node.branches = append(node.branches, c.Branch)
	}
	sort.Strings(node.branches)

	params, err := NewParamSet(spec.Name, spec.Parameters)
	if err != nil {
		return nil, err
	}
	node.params.Store(params)

	return node, nil
}

// linkNodes verifies every child reference resolves and that no node has two
// parents. Routing and combination decisions are scoped to a single parent,
// so shared sub-children are rejected.
func linkNodes(g *Graph) error {
	if _, ok := g.nodes[g.root]; !ok {
		return errs.Configuration("graph root %q is not a declared node", g.root)
	}

	parent := make(map[string]string, len(g.nodes))
	for _, node := range g.nodes {
		for _, branch := range node.branches {
			childName := node.children[branch]
			if _, ok := g.nodes[childName]; !ok {
				return errs.ConfigurationAt(node.Name,
					"branch %q references unknown node %q", branch, childName)
			}
			if childName == node.Name {
				return errs.ConfigurationAt(node.Name, "branch %q references itself", branch)
			}
			if prev, claimed := parent[childName]; claimed {
				return errs.Configuration(
					"node %q is a child of both %q and %q; the graph must be a tree",
					childName, prev, node.Name)
			}
			parent[childName] = node.Name
		}
	}

	if p, ok := parent[g.root]; ok {
		return errs.Configuration("graph root %q is a child of %q", g.root, p)
	}
	return nil
}

// validateShape enforces the per-type child-count rules.
func validateShape(ctx context.Context, node *Node) error {
	switch node.Type {
	case Router:
		if len(node.branches) < 2 {
			return errs.ConfigurationAt(node.Name,
				"router has %d children, need at least 2", len(node.branches))
		}
		if ratio, ok := node.Params().Float("ratio_a"); ok && (ratio < 0 || ratio > 1) {
			return errs.ConfigurationAt(node.Name,
				"ratio_a must be within [0, 1], got %v", ratio)
		}
	case Combiner:
		if len(node.branches) == 0 {
			return errs.ConfigurationAt(node.Name, "combiner has no children")
		}
	case Transformer, OutputTransformer:
		if len(node.branches) != 1 {
			return errs.ConfigurationAt(node.Name,
				"%s has %d children, need exactly 1", node.Type, len(node.branches))
		}
	case Model:
		if len(node.branches) > 0 {
			// Tolerated but suspicious: a model terminates the walk and its
			// children are never visited.
			ctxlog.FromContext(ctx).Warn(
				"Model node declares children; they will be ignored.",
				"node", node.Name, "children", len(node.branches))
		}
	}
	return nil
}

// detectCycles walks from the root. The single-parent rule already excludes
// cycles reachable from the root, but a defensive check keeps an accidentally
// cyclic configuration from ever reaching the engine's depth guard.
func detectCycles(g *Graph) error {
	visited := make(map[string]bool, len(g.nodes))
	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return errs.ConfigurationAt(name, "cycle detected in graph")
		}
		visited[name] = true
		node := g.nodes[name]
		for _, branch := range node.branches {
			if err := visit(node.children[branch]); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(g.root)
}

// reportUnreachable logs nodes declared in the document but not reachable
// from the root. Not an error: a deployer may stage nodes ahead of wiring
// them in.
func reportUnreachable(ctx context.Context, g *Graph) {
	reachable := make(map[string]bool, len(g.nodes))
	var visit func(name string)
	visit = func(name string) {
		if reachable[name] {
			return
		}
		reachable[name] = true
		node := g.nodes[name]
		for _, branch := range node.branches {
			visit(node.children[branch])
		}
	}
	visit(g.root)

	logger := ctxlog.FromContext(ctx)
	for name := range g.nodes {
		if !reachable[name] {
			logger.Warn("Node is not reachable from the graph root.", "node", name)
		}
	}
}
