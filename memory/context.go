package memory

import (
	"fmt"
	"sort"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// outerReach bounds how far ancestor predecessors are followed.
const outerReach = 3

// Entry is the representation of one finished node inside a context.
type Entry struct {
	ID         string        `json:"id"`
	TaskType   core.TaskType `json:"task_type"`
	Goal       string        `json:"goal"`
	Dependency []string      `json:"dependency"`
	Result     string        `json:"result"`
}

// Context is the assembled input of a node's action.
type Context struct {
	// Predecessors holds same-graph predecessors grouped by hop distance,
	// furthest group first.
	Predecessors [][]Entry `json:"same_graph_precedents"`
	// Upper holds one group per ancestor level, furthest ancestor first.
	Upper [][]Entry `json:"upper_graph_precedents"`
}

// FlatPredecessors returns the predecessor groups concatenated in order.
func (c Context) FlatPredecessors() []Entry {
	var out []Entry
	for _, g := range c.Predecessors {
		out = append(out, g...)
	}
	return out
}

// Empty reports whether the context carries no entries.
func (c Context) Empty() bool {
	return len(c.Predecessors) == 0 && len(c.Upper) == 0
}

// Context assembles the context for n. The atomic child of a PLAN node sees
// the context of its owner. Call Refresh for n first.
func (m *Memory) Context(n *task.Node) (Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tree.IsAtom(n) {
		n = m.tree.Outer(n)
	}

	var ctx Context
	for _, group := range m.predecessors(n, 0) {
		entries, err := m.represent(group)
		if err != nil {
			return Context{}, err
		}
		if len(entries) > 0 {
			ctx.Predecessors = append(ctx.Predecessors, entries)
		}
	}

	var levels [][]*task.Node
	for o := m.tree.Outer(n); o != nil; o = m.tree.Outer(o) {
		var flat []*task.Node
		for _, g := range m.predecessors(o, outerReach) {
			flat = append(flat, g...)
		}
		levels = append(levels, flat)
	}
	for i := len(levels) - 1; i >= 0; i-- {
		entries, err := m.represent(levels[i])
		if err != nil {
			return Context{}, err
		}
		if len(entries) > 0 {
			ctx.Upper = append(ctx.Upper, entries)
		}
	}
	return ctx, nil
}

// predecessors walks n's dependency chain breadth-first and groups nodes by
// their shortest hop distance (bounded by maxDist when positive). Groups are
// returned furthest first, each in creation order.
func (m *Memory) predecessors(n *task.Node, maxDist int) [][]*task.Node {
	dist := map[task.Ref]int{}
	frontier := m.tree.Parents(n)
	for d := 1; len(frontier) > 0; d++ {
		if maxDist > 0 && d > maxDist {
			break
		}
		var next []*task.Node
		for _, p := range frontier {
			if _, seen := dist[p.Ref]; seen {
				continue
			}
			dist[p.Ref] = d
			next = append(next, m.tree.Parents(p)...)
		}
		frontier = next
	}

	byDist := map[int][]*task.Node{}
	maxSeen := 0
	for ref, d := range dist {
		node, err := m.tree.Node(ref)
		if err != nil {
			continue
		}
		byDist[d] = append(byDist[d], node)
		if d > maxSeen {
			maxSeen = d
		}
	}
	var groups [][]*task.Node
	for d := maxSeen; d >= 1; d-- {
		g := byDist[d]
		if len(g) == 0 {
			continue
		}
		sort.Slice(g, func(i, j int) bool { return g[i].Ref < g[j].Ref })
		groups = append(groups, g)
	}
	return groups
}

func (m *Memory) represent(nodes []*task.Node) ([]Entry, error) {
	var out []Entry
	for _, n := range nodes {
		if n.Info.TaskType == core.TaskTypeComposition {
			continue
		}
		in, ok := m.infos[n.InstanceKey]
		if !ok || !in.HasResult {
			return nil, fmt.Errorf("predecessor %s has no final result: %w", n.ID, core.ErrContract)
		}
		e := Entry{
			ID:         n.ID,
			TaskType:   n.Info.TaskType,
			Goal:       n.Info.Goal,
			Dependency: []string{},
			Result:     in.Result,
		}
		for _, p := range m.tree.Parents(n) {
			if p.Info.TaskType != core.TaskTypeComposition {
				e.Dependency = append(e.Dependency, p.ID)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
