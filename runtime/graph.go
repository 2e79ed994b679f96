package runtime

import "fmt"

// DependencyGraph is a directed graph of "must run before" edges between
// step names. It carries no runtime state; once an execution order is
// computed the graph is no longer consulted.
type DependencyGraph struct {
	// dependents maps a step to the steps that must run after it.
	dependents map[string][]string
	indegree   map[string]int
	edges      map[string]map[string]bool

	// declared is the declaration order of the spec's steps.
	declared []string
}

// BuildGraph constructs the dependency graph for a spec: one node per
// step, an edge dep->step for every explicit depends_on entry, and an
// edge ref->step for every step referenced by an input template.
// Explicit and implicit edges are unioned, not duplicated. The built
// graph is verified acyclic before it is returned.
func BuildGraph(spec *FlowSpec) (*DependencyGraph, error) {
	g := &DependencyGraph{
		dependents: make(map[string][]string, len(spec.Steps)),
		indegree:   make(map[string]int, len(spec.Steps)),
		edges:      make(map[string]map[string]bool),
		declared:   spec.StepOrder,
	}

	for _, name := range spec.StepOrder {
		g.dependents[name] = nil
		g.indegree[name] = 0
	}

	// Explicit dependencies.
	for _, name := range spec.StepOrder {
		step := spec.Steps[name]
		for _, dep := range step.DependsOn {
			if _, ok := spec.Steps[dep]; !ok {
				return nil, &GraphError{
					Step:       name,
					Dependency: dep,
					Message:    fmt.Sprintf("depends on unknown step %q", dep),
				}
			}
			g.addEdge(dep, name)
		}
	}

	// Implicit data-flow dependencies from input templates.
	for _, name := range spec.StepOrder {
		step := spec.Steps[name]
		for _, param := range sortedKeys(step.Inputs) {
			for _, ref := range ExtractStepReferences(step.Inputs[param]) {
				if _, ok := spec.Steps[ref]; !ok {
					return nil, &GraphError{
						Step:       name,
						Dependency: ref,
						Message:    fmt.Sprintf("references unknown step %q", ref),
					}
				}
				g.addEdge(ref, name)
			}
		}
	}

	if _, err := g.TopologicalOrder(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *DependencyGraph) addEdge(from, to string) {
	if g.edges[from][to] {
		return
	}
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]bool)
	}
	g.edges[from][to] = true
	g.dependents[from] = append(g.dependents[from], to)
	g.indegree[to]++
}

// HasEdge reports whether a "from must run before to" edge exists.
func (g *DependencyGraph) HasEdge(from, to string) bool {
	return g.edges[from][to]
}

// DependenciesOf returns the steps that must complete before name runs,
// in declaration order.
func (g *DependencyGraph) DependenciesOf(name string) []string {
	var deps []string
	for _, from := range g.declared {
		if g.edges[from][name] {
			deps = append(deps, from)
		}
	}
	return deps
}

// Size returns the number of nodes.
func (g *DependencyGraph) Size() int {
	return len(g.dependents)
}

// TopologicalOrder computes a deterministic execution order using Kahn's
// algorithm. Whenever several steps are ready, the one declared earliest
// in the spec runs first, so an order is reproducible across runs. A
// cycle yields a GraphError naming the steps involved.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.indegree))
	for name, d := range g.indegree {
		indegree[name] = d
	}

	order := make([]string, 0, len(g.declared))
	emitted := make(map[string]bool, len(g.declared))

	for len(order) < len(g.declared) {
		next := ""
		for _, name := range g.declared {
			if !emitted[name] && indegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, &GraphError{Cycle: g.cycleMembers(emitted)}
		}

		emitted[next] = true
		order = append(order, next)
		for _, dependent := range g.dependents[next] {
			indegree[dependent]--
		}
	}

	return order, nil
}

// cycleMembers isolates the steps actually on a cycle among the nodes
// Kahn's algorithm could not emit. Steps that merely depend on a cycle
// have no outgoing edge back into the stuck set and are peeled off until
// only cycle participants remain, in declaration order.
func (g *DependencyGraph) cycleMembers(emitted map[string]bool) []string {
	stuck := make(map[string]bool, len(g.declared))
	for _, name := range g.declared {
		if !emitted[name] {
			stuck[name] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for name := range stuck {
			feedsStuck := false
			for _, dependent := range g.dependents[name] {
				if stuck[dependent] {
					feedsStuck = true
					break
				}
			}
			if !feedsStuck {
				delete(stuck, name)
				changed = true
			}
		}
	}

	var cycle []string
	for _, name := range g.declared {
		if stuck[name] {
			cycle = append(cycle, name)
		}
	}
	return cycle
}
