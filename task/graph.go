package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zhiyu/hypergen/core"
)

// Graph is the ordered set of sibling nodes owned by a PLAN node.
type Graph struct {
	// Nodes holds members in creation order.
	Nodes []Ref `json:"nodes"`
	// Edges maps a parent to the members that must wait for it.
	Edges map[Ref][]Ref `json:"edges"`
	// Order is the layered topological order.
	Order []Ref `json:"topological_order"`
}

func newGraph() *Graph {
	return &Graph{Edges: map[Ref][]Ref{}}
}

// Len returns the number of member nodes.
func (g *Graph) Len() int { return len(g.Nodes) }

// Empty reports whether the graph has not been planned yet.
func (g *Graph) Empty() bool { return len(g.Nodes) == 0 }

// prepared is a normalized descriptor ready for arena insertion.
type prepared struct {
	desc     Descriptor
	taskType core.TaskType
	deps     []string
}

// normalize cleans goal text, canonicalizes task types, applies the atomic
// collapse and fills composition length inheritance.
func normalize(descs []Descriptor, parent Info) ([]prepared, error) {
	if len(descs) == 0 {
		descs = []Descriptor{{
			ID:       "0",
			Goal:     parent.Goal,
			TaskType: parent.TaskType.Tag(),
			Length:   parent.Length,
			Atom:     true,
		}}
	}

	out := make([]prepared, 0, len(descs))
	compositions := 0
	for _, d := range descs {
		tt, err := core.ParseTaskType(d.TaskType)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", d.ID, err)
		}
		if tt == core.TaskTypeComposition {
			compositions++
		}
		d.Goal = strings.ReplaceAll(d.Goal, "\n", ";")
		for i := range d.SubTasks {
			d.SubTasks[i].Goal = strings.ReplaceAll(d.SubTasks[i].Goal, "\n", ";")
		}
		out = append(out, prepared{desc: d, taskType: tt, deps: append([]string(nil), d.Dependency...)})
	}

	for i := range out {
		p := &out[i]
		if p.taskType != core.TaskTypeComposition {
			p.desc.Length = ""
			continue
		}
		if compositions == 1 && p.desc.Length == "" {
			p.desc.Length = parent.Length
		}
	}
	return out, nil
}

// sortByCreation orders descriptors by the numeric suffix of their id.
// Ids without a numeric suffix keep their relative arrival order after all
// numbered ids.
func sortByCreation(ps []prepared) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, aok := creationKey(ps[i].desc.ID)
		b, bok := creationKey(ps[j].desc.ID)
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
}

// injectImplicitDependencies makes every ANALYSIS node depend on all earlier
// ANALYSIS nodes and every COMPOSITION node on all earlier COMPOSITION nodes.
// Input must already be in creation order.
func injectImplicitDependencies(ps []prepared) {
	var analyses, compositions []string
	for i := range ps {
		p := &ps[i]
		switch p.taskType {
		case core.TaskTypeAnalysis:
			p.deps = mergeIDs(p.deps, analyses)
			sort.SliceStable(p.deps, func(a, b int) bool {
				x, _ := creationKey(p.deps[a])
				y, _ := creationKey(p.deps[b])
				return x < y
			})
			analyses = append(analyses, p.desc.ID)
		case core.TaskTypeComposition:
			p.deps = mergeIDs(p.deps, compositions)
			compositions = append(compositions, p.desc.ID)
		}
	}
}

func mergeIDs(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// topologicalOrder runs the layered BFS sort over members in creation order.
func topologicalOrder(nodes []Ref, edges map[Ref][]Ref) ([]Ref, error) {
	indegree := make(map[Ref]int, len(nodes))
	for _, children := range edges {
		for _, c := range children {
			indegree[c]++
		}
	}

	order := make([]Ref, 0, len(nodes))
	visited := make(map[Ref]bool, len(nodes))
	for len(order) < len(nodes) {
		var batch []Ref
		for _, n := range nodes {
			if !visited[n] && indegree[n] == 0 {
				batch = append(batch, n)
				visited[n] = true
			}
		}
		if len(batch) == 0 {
			return nil, core.ErrCycle
		}
		for _, n := range batch {
			for _, c := range edges[n] {
				indegree[c]--
			}
		}
		order = append(order, batch...)
	}
	return order, nil
}
