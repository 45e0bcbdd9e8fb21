package callgraph

// Path is an ordered, cycle-free sequence of items from a root down to
// some node, recording one concrete BFS route.
type Path []Item

// graph is the deduplicated directed simple graph built from an edge
// list: one adjacency entry per distinct (caller -> callee) pair,
// preserving the order callees were first seen for a given caller.
type graph struct {
	items     map[Key]Item
	adjacency map[Key][]Key
}

func buildGraph(edges []Edge) *graph {
	g := &graph{
		items:     make(map[Key]Item),
		adjacency: make(map[Key][]Key),
	}
	seen := make(map[Key]map[Key]bool)
	for _, e := range edges {
		ck, lk := e.Caller.Key(), e.Callee.Key()
		if _, ok := g.items[ck]; !ok {
			g.items[ck] = e.Caller
		}
		if _, ok := g.items[lk]; !ok {
			g.items[lk] = e.Callee
		}
		if seen[ck] == nil {
			seen[ck] = make(map[Key]bool)
		}
		if seen[ck][lk] {
			continue
		}
		seen[ck][lk] = true
		g.adjacency[ck] = append(g.adjacency[ck], lk)
	}
	return g
}

// roots returns the nodes that never appear as a callee, in the order
// they were first seen as a caller in edges.
func roots(edges []Edge) []Key {
	targets := make(map[Key]bool)
	for _, e := range edges {
		targets[e.Callee.Key()] = true
	}
	var out []Key
	seen := make(map[Key]bool)
	for _, e := range edges {
		ck := e.Caller.Key()
		if targets[ck] || seen[ck] {
			continue
		}
		seen[ck] = true
		out = append(out, ck)
	}
	return out
}

// BuildPaths computes, for every node reachable from some root, the set
// of simple root-to-node paths discovered by a per-root BFS. If there
// is no root at all (the edge set is pure cycles), the result is empty.
//
// The per-root BFS keeps one visited set shared across all paths from
// that root: the first path to reach a node at a given BFS level wins,
// which both bounds each node to one recorded path per root and
// guarantees termination in the presence of cycles.
func BuildPaths(edges []Edge) map[Key][]Path {
	result := make(map[Key][]Path)
	g := buildGraph(edges)

	for _, root := range roots(edges) {
		for node, path := range bfsFromRoot(g, root) {
			result[node] = append(result[node], path)
		}
	}
	return result
}

func bfsFromRoot(g *graph, root Key) map[Key]Path {
	found := make(map[Key]Path)
	visited := make(map[Key]bool)

	frontier := []Path{{g.items[root]}}
	for len(frontier) > 0 {
		var next []Path
		for _, p := range frontier {
			head := p[len(p)-1].Key()
			if visited[head] {
				continue
			}
			visited[head] = true
			found[head] = append(Path{}, p...)

			for _, n := range g.adjacency[head] {
				extended := make(Path, len(p), len(p)+1)
				copy(extended, p)
				extended = append(extended, g.items[n])
				next = append(next, extended)
			}
		}
		frontier = next
	}
	return found
}
