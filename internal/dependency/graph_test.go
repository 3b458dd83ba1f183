package dependency

import (
	"testing"

	"github.com/google/uuid"
)

func edge(from, to uuid.UUID) Edge {
	return Edge{ID: uuid.New(), TaskID: from, DependsOnTaskID: to, Type: TypeBlocks}
}

func TestGraphReachesChain(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	g := NewGraph([]Edge{edge(a, b), edge(b, c)})

	if !g.Reaches(a, c) {
		t.Fatalf("a must reach c through b")
	}
	if g.Reaches(c, a) {
		t.Fatalf("reachability is directed")
	}
	if g.Reaches(a, d) {
		t.Fatalf("d is disconnected")
	}
}

func TestGraphReachesSelf(t *testing.T) {
	a := uuid.New()
	g := NewGraph(nil)
	if !g.Reaches(a, a) {
		t.Fatalf("every node reaches itself")
	}
}

func TestGraphReachesDiamond(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	// a -> b -> d and a -> c -> d: the visited set must keep the
	// traversal from revisiting d.
	g := NewGraph([]Edge{edge(a, b), edge(a, c), edge(b, d), edge(c, d)})

	if !g.Reaches(a, d) {
		t.Fatalf("a must reach d")
	}
	if g.Reaches(d, a) {
		t.Fatalf("d must not reach a")
	}
}

func TestGraphTerminatesOnExistingCycle(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	// A pre-existing cycle b <-> c must not hang the traversal.
	g := NewGraph([]Edge{edge(a, b), edge(b, c), edge(c, b)})

	if g.Reaches(a, uuid.New()) {
		t.Fatalf("unknown node is unreachable")
	}
	if !g.Reaches(a, c) {
		t.Fatalf("a must reach c")
	}
}

func TestWouldCycle(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := NewGraph([]Edge{edge(a, b), edge(b, c)})

	// a already reaches c, so c depending on a closes a cycle.
	if !g.WouldCycle(c, a) {
		t.Fatalf("expected cycle for c -> a")
	}
	// Depending on a fresh node is always safe.
	if g.WouldCycle(a, uuid.New()) {
		t.Fatalf("unexpected cycle for edge to disconnected node")
	}
}
