package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zhiyu/hypergen/core"
)

// Tree is the arena holding every node of one run.
type Tree struct {
	nodes []*Node
}

// NewTree creates a tree holding a single PLAN root carrying info. The root
// starts NOT_READY; the engine promotes it to READY when the run begins.
func NewTree(info Info) *Tree {
	t := &Tree{}
	t.alloc(Node{
		ID:     "",
		Info:   info,
		Kind:   core.KindPlan,
		Status: core.StatusNotReady,
		Outer:  NoRef,
		Layer:  0,
	})
	return t
}

func (t *Tree) alloc(n Node) *Node {
	n.Ref = Ref(len(t.nodes))
	if n.InstanceKey == "" {
		n.InstanceKey = uuid.NewString()
	}
	if n.Inner == nil {
		n.Inner = newGraph()
	}
	if n.Results == nil {
		n.Results = map[core.Action]Result{}
	}
	if n.Info.Dependency == nil {
		n.Info.Dependency = []string{}
	}
	node := &n
	t.nodes = append(t.nodes, node)
	return node
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[RootRef] }

// Len returns the arena size, detached nodes included.
func (t *Tree) Len() int { return len(t.nodes) }

// Node resolves a handle.
func (t *Tree) Node(r Ref) (*Node, error) {
	if r < 0 || int(r) >= len(t.nodes) {
		return nil, fmt.Errorf("ref %d: %w", r, core.ErrNodeNotFound)
	}
	return t.nodes[r], nil
}

func (t *Tree) at(r Ref) *Node {
	if r < 0 || int(r) >= len(t.nodes) {
		return nil
	}
	return t.nodes[r]
}

// Outer returns the PLAN node owning n's graph, or nil for the root.
func (t *Tree) Outer(n *Node) *Node { return t.at(n.Outer) }

// Parents returns n's resolved dependency nodes.
func (t *Tree) Parents(n *Node) []*Node { return t.resolve(n.Parents) }

// Children returns the members of n's graph in creation order.
func (t *Tree) Children(n *Node) []*Node { return t.resolve(n.Inner.Nodes) }

// Ordered returns the members of n's graph in topological order.
func (t *Tree) Ordered(n *Node) []*Node { return t.resolve(n.Inner.Order) }

func (t *Tree) resolve(refs []Ref) []*Node {
	out := make([]*Node, 0, len(refs))
	for _, r := range refs {
		if n := t.at(r); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Walk visits every attached node depth-first in topological order, parents
// before their children. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		if !fn(n) {
			return false
		}
		for _, c := range t.Ordered(n) {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(t.Root())
}

// Find returns the attached node with the given instance key.
func (t *Tree) Find(instanceKey string) (*Node, error) {
	var found *Node
	t.Walk(func(n *Node) bool {
		if n.InstanceKey == instanceKey {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("instance %s: %w", instanceKey, core.ErrNodeNotFound)
	}
	return found, nil
}

// IsAtom reports whether n is the single EXECUTE child of an atomic PLAN node.
func (t *Tree) IsAtom(n *Node) bool {
	outer := t.Outer(n)
	return n.Kind == core.KindExecute && outer != nil && outer.Inner.Len() == 1
}

// FinalResult returns the externally visible result of a finished node.
func (t *Tree) FinalResult(n *Node) (string, bool) {
	if n.Status != core.StatusFinish {
		return "", false
	}
	key := core.ActionFinalAggregate
	if n.Kind == core.KindExecute {
		key = core.ActionExecute
	}
	r, ok := n.Results[key]
	return r.Value, ok
}

// Expand materializes the child graph of the PLAN node at ref from descs.
// An empty descs collapses the node into a single atomic EXECUTE child.
// A graph whose members have all stayed NOT_READY may be rebuilt; once any
// member has started the graph is frozen.
func (t *Tree) Expand(ref Ref, descs []Descriptor) error {
	owner, err := t.Node(ref)
	if err != nil {
		return err
	}
	if owner.Kind != core.KindPlan {
		return fmt.Errorf("expand %s: execute nodes own no graph: %w", owner.ID, core.ErrContract)
	}
	for _, c := range t.Children(owner) {
		if c.Status != core.StatusNotReady {
			return fmt.Errorf("expand %s: child %s already started: %w", owner.ID, c.ID, core.ErrContract)
		}
	}

	ps, err := normalize(descs, owner.Info)
	if err != nil {
		return err
	}
	sortByCreation(ps)
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if seen[p.desc.ID] {
			return fmt.Errorf("expand %s: id %q: %w", owner.ID, p.desc.ID, core.ErrDuplicateNode)
		}
		seen[p.desc.ID] = true
	}
	injectImplicitDependencies(ps)

	// Order and cycle check run on provisional refs before touching the arena.
	base := Ref(len(t.nodes))
	idToRef := make(map[string]Ref, len(ps))
	members := make([]Ref, len(ps))
	for i, p := range ps {
		idToRef[p.desc.ID] = base + Ref(i)
		members[i] = base + Ref(i)
	}
	parents := make([][]Ref, len(ps))
	edges := map[Ref][]Ref{}
	for i, p := range ps {
		self := members[i]
		for _, dep := range p.deps {
			pr, ok := idToRef[dep]
			if !ok || pr == self {
				continue
			}
			parents[i] = append(parents[i], pr)
			edges[pr] = append(edges[pr], self)
		}
	}
	order, err := topologicalOrder(members, edges)
	if err != nil {
		return fmt.Errorf("expand %s: %w", owner.ID, err)
	}

	for _, c := range t.Children(owner) {
		c.Detached = true
	}

	for i, p := range ps {
		kind := core.KindPlan
		if p.desc.Atom {
			kind = core.KindExecute
		}
		info := Info{
			Goal:       p.desc.Goal,
			TaskType:   p.taskType,
			Length:     p.desc.Length,
			Dependency: p.desc.Dependency,
		}
		if p.desc.HasSubTasks {
			info.CandidatePlan = p.desc.SubTasks
			info.HasCandidatePlan = true
		}
		t.alloc(Node{
			ID:      p.desc.ID,
			Info:    info,
			Kind:    kind,
			Status:  core.StatusNotReady,
			Outer:   owner.Ref,
			Parents: parents[i],
			Layer:   owner.Layer + 1,
		})
	}

	owner.Inner = &Graph{Nodes: members, Edges: edges, Order: order}
	return nil
}

// Advance records the result of action on the node at ref and moves it to the
// state the transition table prescribes. The action must be the one
// NextAction reports for the node's current state.
func (t *Tree) Advance(ref Ref, action core.Action, res Result) (core.Status, error) {
	n, err := t.Node(ref)
	if err != nil {
		return 0, err
	}
	want, next, err := NextAction(n)
	if err != nil {
		return 0, err
	}
	if want != action {
		return 0, fmt.Errorf("node %s in %s expects %s, got %s: %w", n.ID, n.Status, want, action, core.ErrContract)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	n.Results[action] = res
	n.Status = next
	return next, nil
}
