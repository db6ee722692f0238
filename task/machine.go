package task

import (
	"fmt"

	"github.com/zhiyu/hypergen/core"
)

type transition struct {
	from   core.Status
	when   func(n *Node) bool
	action core.Action
	to     core.Status
}

func always(*Node) bool { return true }
func isPlan(n *Node) bool { return n.Kind == core.KindPlan }
func isExecute(n *Node) bool { return n.Kind == core.KindExecute }

// transitions is evaluated in order; the first matching row wins.
var transitions = []transition{
	{core.StatusReady, isPlan, core.ActionPlan, core.StatusPlanDone},
	{core.StatusReady, isExecute, core.ActionExecute, core.StatusNeedPostReflect},
	{core.StatusNeedUpdate, always, core.ActionUpdate, core.StatusReady},
	{core.StatusPlanDone, always, core.ActionPriorReflect, core.StatusDoing},
	{core.StatusFinalToFinish, always, core.ActionFinalAggregate, core.StatusNeedPostReflect},
	{core.StatusNeedPostReflect, isPlan, core.ActionPlanningPostReflect, core.StatusFinish},
	{core.StatusNeedPostReflect, isExecute, core.ActionExecutePostReflect, core.StatusFinish},
}

// NextAction returns the action the scheduler must run for n and the state n
// enters afterwards. A node outside the activate category, or one no row
// matches, is a contract violation.
func NextAction(n *Node) (core.Action, core.Status, error) {
	if !n.Status.IsActivate() {
		return "", 0, fmt.Errorf("node %s in %s is not actionable: %w", n.ID, n.Status, core.ErrContract)
	}
	for _, tr := range transitions {
		if tr.from == n.Status && tr.when(n) {
			return tr.action, tr.to, nil
		}
	}
	return "", 0, fmt.Errorf("no transition for node %s in %s: %w", n.ID, n.Status, core.ErrContract)
}

type examRule struct {
	from core.Status
	when func(t *Tree, n *Node) bool
	to   core.Status
}

var examRules = []examRule{
	{core.StatusNotReady, func(t *Tree, n *Node) bool {
		return outerDoing(t, n) && len(n.Parents) == 0
	}, core.StatusReady},
	{core.StatusNotReady, func(t *Tree, n *Node) bool {
		if !outerDoing(t, n) {
			return false
		}
		for _, p := range t.Parents(n) {
			if p.Status != core.StatusFinish {
				return false
			}
		}
		return true
	}, core.StatusNeedUpdate},
	{core.StatusDoing, func(t *Tree, n *Node) bool {
		for _, c := range t.Children(n) {
			if c.Status != core.StatusFinish {
				return false
			}
		}
		return true
	}, core.StatusFinalToFinish},
}

func outerDoing(t *Tree, n *Node) bool {
	o := t.Outer(n)
	return o != nil && o.Status == core.StatusDoing
}

// Exam applies the first matching suspend-state predicate to n and reports
// whether its status changed. Nodes outside the suspend category are left alone.
func (t *Tree) Exam(n *Node) bool {
	if !n.Status.IsSuspend() {
		return false
	}
	for _, r := range examRules {
		if r.from == n.Status && r.when(t, n) {
			n.Status = r.to
			return true
		}
	}
	return false
}

// Change is one status transition observed during an exam sweep.
type Change struct {
	Node *Node
	From core.Status
	To   core.Status
}

// ExamAll sweeps the whole tree: inside every suspended node the members are
// examined in topological order before the node itself, so a change can
// cascade upward within one sweep. It returns the transitions made.
func (t *Tree) ExamAll() []Change {
	var changes []Change
	var visit func(n *Node)
	visit = func(n *Node) {
		if !n.Status.IsSuspend() {
			return
		}
		for _, c := range t.Ordered(n) {
			visit(c)
		}
		from := n.Status
		if t.Exam(n) {
			changes = append(changes, Change{Node: n, From: from, To: n.Status})
		}
	}
	visit(t.Root())
	return changes
}

// Runnable returns activate-state nodes in discovery order: a breadth-first
// scan from the root that descends into suspended nodes' graphs.
func (t *Tree) Runnable() []*Node {
	var out []*Node
	queue := []*Node{t.Root()}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.Status.IsActivate() {
			out = append(out, n)
		}
		if n.Status.IsSuspend() {
			queue = append(queue, t.Ordered(n)...)
		}
	}
	return out
}

// NextRunnable returns the first node Runnable would return, or nil.
func (t *Tree) NextRunnable() *Node {
	queue := []*Node{t.Root()}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.Status.IsActivate() {
			return n
		}
		if n.Status.IsSuspend() {
			queue = append(queue, t.Ordered(n)...)
		}
	}
	return nil
}
