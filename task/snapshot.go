package task

import (
	"encoding/json"
	"fmt"

	"github.com/zhiyu/hypergen/core"
)

// SnapshotNode is the recursive, self-contained view of a node written after
// every scheduler tick for external progress consumers.
type SnapshotNode struct {
	ID          string                 `json:"nid"`
	InstanceKey string                 `json:"hashkey"`
	TaskInfo    Info                   `json:"task_info"`
	Kind        core.NodeKind          `json:"node_type"`
	Status      core.Status            `json:"status"`
	Layer       int                    `json:"layer"`
	Results     map[core.Action]Result `json:"result"`
	FinalResult string                 `json:"final_result,omitempty"`
	InnerGraph  SnapshotGraph          `json:"inner_graph"`
}

// SnapshotGraph mirrors a Graph with members rendered in topological order.
type SnapshotGraph struct {
	TaskList []string            `json:"task_list"`
	Edges    map[string][]string `json:"edges"`
	Nodes    []SnapshotNode      `json:"topological_task_queue"`
}

// Snapshot renders the whole attached tree rooted at the root node.
func (t *Tree) Snapshot() SnapshotNode {
	return t.snapshot(t.Root())
}

func (t *Tree) snapshot(n *Node) SnapshotNode {
	s := SnapshotNode{
		ID:          n.ID,
		InstanceKey: n.InstanceKey,
		TaskInfo:    n.Info,
		Kind:        n.Kind,
		Status:      n.Status,
		Layer:       n.Layer,
		Results:     n.Results,
		InnerGraph: SnapshotGraph{
			TaskList: []string{},
			Edges:    map[string][]string{},
			Nodes:    []SnapshotNode{},
		},
	}
	if v, ok := t.FinalResult(n); ok {
		s.FinalResult = v
	}
	for parent, children := range n.Inner.Edges {
		p := t.at(parent)
		if p == nil {
			continue
		}
		for _, c := range t.resolve(children) {
			s.InnerGraph.Edges[p.ID] = append(s.InnerGraph.Edges[p.ID], c.ID)
		}
	}
	for _, c := range t.Ordered(n) {
		s.InnerGraph.TaskList = append(s.InnerGraph.TaskList, c.Label())
		s.InnerGraph.Nodes = append(s.InnerGraph.Nodes, t.snapshot(c))
	}
	return s
}

type arena struct {
	Nodes []*Node `json:"nodes"`
}

// MarshalJSON serializes the arena so a run can be resumed with Restore.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(arena{Nodes: t.nodes})
}

// Restore rebuilds a tree from MarshalJSON output, validating every handle.
func Restore(data []byte) (*Tree, error) {
	var a arena
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if len(a.Nodes) == 0 {
		return nil, fmt.Errorf("decode tree: no root: %w", core.ErrNodeNotFound)
	}
	t := &Tree{nodes: a.Nodes}
	check := func(owner *Node, r Ref) error {
		if t.at(r) == nil {
			return fmt.Errorf("node %s references ref %d: %w", owner.ID, r, core.ErrNodeNotFound)
		}
		return nil
	}
	for i, n := range t.nodes {
		if n == nil || n.Ref != Ref(i) {
			return nil, fmt.Errorf("decode tree: slot %d out of place: %w", i, core.ErrContract)
		}
		if n.Inner == nil {
			n.Inner = newGraph()
		}
		if n.Inner.Edges == nil {
			n.Inner.Edges = map[Ref][]Ref{}
		}
		if n.Results == nil {
			n.Results = map[core.Action]Result{}
		}
		if n.Outer != NoRef {
			if err := check(n, n.Outer); err != nil {
				return nil, err
			}
		}
		for _, r := range append(append([]Ref{}, n.Parents...), n.Inner.Nodes...) {
			if err := check(n, r); err != nil {
				return nil, err
			}
		}
	}
	if !t.Root().IsRoot() {
		return nil, fmt.Errorf("decode tree: slot 0 is not a root: %w", core.ErrContract)
	}
	return t, nil
}
