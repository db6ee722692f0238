package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// PlanView is one entry of the layered plan shown to planners.
type PlanView struct {
	ID         string     `json:"id"`
	TaskType   string     `json:"task_type"`
	Goal       string     `json:"goal"`
	Dependency []string   `json:"dependency"`
	Finish     bool       `json:"finish"`
	Current    bool       `json:"is_current_to_plan_task"`
	SubTasks   []PlanView `json:"sub_tasks"`
}

// FullPlan renders the plan of the whole tree down to one layer below n as
// JSON. Atomic children are hidden.
func (m *Memory) FullPlan(n *task.Node) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target := n.Layer + 1
	var build func(c *task.Node) *PlanView
	build = func(c *task.Node) *PlanView {
		if m.tree.IsAtom(c) || c.Layer > target {
			return nil
		}
		v := &PlanView{
			ID:         c.ID,
			TaskType:   c.Info.TaskType.Tag(),
			Goal:       c.Info.Goal,
			Dependency: []string{},
			Finish:     c.Status == core.StatusFinish,
			Current:    c.InstanceKey == n.InstanceKey,
			SubTasks:   []PlanView{},
		}
		for _, p := range m.tree.Parents(c) {
			if p.Info.TaskType != core.TaskTypeComposition {
				v.Dependency = append(v.Dependency, p.ID)
			}
		}
		if c.Layer < target {
			for _, child := range m.tree.Ordered(c) {
				if sv := build(child); sv != nil {
					v.SubTasks = append(v.SubTasks, *sv)
				}
			}
		}
		return v
	}
	b, err := json.Marshal(build(m.tree.Root()))
	if err != nil {
		return ""
	}
	return string(b)
}

// WritingOutline lists the composition tasks of the run as an indented
// outline with progress markers. Unless global is set, only finished and
// in-progress sections plus n itself are listed.
func (m *Memory) WritingOutline(n *task.Node, global bool) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lines []string
	var visit func(c *task.Node, indent string, path []int)
	visit = func(c *task.Node, indent string, path []int) {
		if m.tree.IsAtom(c) || c.Info.TaskType != core.TaskTypeComposition {
			return
		}
		self := c.InstanceKey == n.InstanceKey
		started := c.Status == core.StatusFinish || c.Status == core.StatusDoing
		if !global && !started && !self {
			return
		}
		ids := make([]string, len(path))
		for i, p := range path {
			ids[i] = strconv.Itoa(p)
		}
		line := fmt.Sprintf("%s【%s】.%s: %s", indent, strings.Join(ids, "."), c.Info.Length, c.Info.Goal)
		switch {
		case c.Status == core.StatusFinish:
			line += " :**FINISHED**"
		case c.Status == core.StatusDoing:
			line += " :**DOING**"
		case self:
			line += " :**You Need To Write**"
		default:
			line += " :**Not Started Yet, You should avoid content related to this part**"
		}
		lines = append(lines, line)
		if c.Status != core.StatusDoing {
			return
		}
		idx := 1
		for _, child := range m.tree.Ordered(c) {
			if child.Info.TaskType != core.TaskTypeComposition {
				continue
			}
			visit(child, indent+"\t", append(append([]int(nil), path...), idx))
			idx++
		}
	}
	visit(m.tree.Root(), "", nil)
	if len(lines) > 0 {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// planOwner returns the PLAN node standing for n: the owner of an atomic
// child, n itself otherwise.
func (m *Memory) planOwner(n *task.Node) *task.Node {
	if n.Kind == core.KindExecute {
		if o := m.tree.Outer(n); o != nil {
			return o
		}
	}
	return n
}

// DependentWrites returns the composition siblings that depend directly on n
// (or on the PLAN node owning n when n is an execute node).
func (m *Memory) DependentWrites(n *task.Node) []*task.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur := m.planOwner(n)
	outer := m.tree.Outer(cur)
	if outer == nil {
		return nil
	}
	var out []*task.Node
	for _, sib := range m.tree.Ordered(outer) {
		if sib.Info.TaskType != core.TaskTypeComposition {
			continue
		}
		for _, p := range sib.Parents {
			if p == cur.Ref {
				out = append(out, sib)
				break
			}
		}
	}
	return out
}

// OuterWrite returns the node whose graph contains the PLAN node standing
// for n; the root stands for itself.
func (m *Memory) OuterWrite(n *task.Node) *task.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur := m.planOwner(n)
	if o := m.tree.Outer(cur); o != nil {
		return o
	}
	return cur
}

// RootGoal returns the goal of the run.
func (m *Memory) RootGoal() string {
	return m.tree.Root().Info.Goal
}
