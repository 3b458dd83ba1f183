package dependency

import "github.com/google/uuid"

// Graph is an adjacency list over "X depends on Y" edges, detached from
// storage so reachability can be tested in isolation. Traversal is iterative
// and bounded by the total number of edges supplied.
type Graph struct {
	adjacency map[uuid.UUID][]uuid.UUID
}

// NewGraph builds a graph from existing edges.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{adjacency: make(map[uuid.UUID][]uuid.UUID, len(edges))}
	for _, e := range edges {
		g.AddEdge(e.TaskID, e.DependsOnTaskID)
	}
	return g
}

// AddEdge records that from depends on to.
func (g *Graph) AddEdge(from, to uuid.UUID) {
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Reaches reports whether to is reachable from from by following dependency
// edges. Breadth-first with a visited set, so diamonds and existing cycles
// terminate.
func (g *Graph) Reaches(from, to uuid.UUID) bool {
	if from == to {
		return true
	}
	visited := map[uuid.UUID]struct{}{from: {}}
	queue := []uuid.UUID{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[current] {
			if next == to {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// WouldCycle reports whether adding the edge taskID -> dependsOn would close
// a cycle: it does iff taskID is already reachable from dependsOn.
func (g *Graph) WouldCycle(taskID, dependsOn uuid.UUID) bool {
	return g.Reaches(dependsOn, taskID)
}
