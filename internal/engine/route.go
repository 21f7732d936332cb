package engine

import (
	"sync"
)

// Route records the path one request took through the graph: the nodes
// visited, in visit order, and the branch key every router chose. The choices
// are stamped into the response meta so a later feedback call can replay the
// exact same path.
type Route struct {
	mu      sync.Mutex
	visited []string
	choices map[string]string
}

func newRoute() *Route {
	return &Route{choices: make(map[string]string)}
}

// visit appends a node to the visit order. Safe under combiner fan-out.
func (r *Route) visit(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited = append(r.visited, node)
}

// choose records a router's branch selection.
func (r *Route) choose(router, branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choices[router] = branch
}

// Visited returns the visited node names in visit order.
func (r *Route) Visited() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.visited...)
}

// Choices returns the router decisions as a branch key per router name.
func (r *Route) Choices() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.choices))
	for k, v := range r.choices {
		out[k] = v
	}
	return out
}
