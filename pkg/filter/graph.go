package filter

import "sort"

// Dependency declarations form a directed graph: an edge from a field to
// every key its Dependencies map derives. Cycles between declared fields
// would make payload assembly non-terminating, so schema construction walks
// the graph once with a depth-first search and a recursion stack. Edges to
// keys that are not declared fields are terminal (payload-only keys).

// detectCycle returns the first cycle found as a key path (closed: the
// first key repeats at the end), or nil when the graph is acyclic.
func detectCycle(fields []Field) []string {
	edges := make(map[string][]string, len(fields))
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Key] = true
	}

	for _, f := range fields {
		if len(f.Dependencies) == 0 {
			continue
		}
		targets := make([]string, 0, len(f.Dependencies))
		for dep := range f.Dependencies {
			if declared[dep] {
				targets = append(targets, dep)
			}
		}
		// Deterministic traversal regardless of map iteration order.
		sort.Strings(targets)
		edges[f.Key] = targets
	}

	const (
		white = iota // unvisited
		gray         // on the recursion stack
		black        // fully explored
	)

	colors := make(map[string]int, len(fields))
	var stack []string
	var cycle []string

	var visit func(key string) bool
	visit = func(key string) bool {
		colors[key] = gray
		stack = append(stack, key)

		for _, next := range edges[key] {
			switch colors[next] {
			case gray:
				// Back edge: slice the stack from the first occurrence.
				for i, k := range stack {
					if k == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[key] = black
		return false
	}

	for _, f := range fields {
		if colors[f.Key] == white {
			if visit(f.Key) {
				return cycle
			}
		}
	}

	return nil
}
