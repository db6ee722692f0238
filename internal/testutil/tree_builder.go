package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// TreeBuilder helps construct task trees with fluent chaining for tests.
// Example:
//
//	tree := NewTreeBuilder("write a report", core.TaskTypeComposition).Length("800").Started().Build()
type TreeBuilder struct {
	info    task.Info
	started bool
}

// NewTreeBuilder creates a builder for a tree whose root carries goal and tt.
func NewTreeBuilder(goal string, tt core.TaskType) *TreeBuilder {
	return &TreeBuilder{info: task.Info{Goal: goal, TaskType: tt}}
}

// Length sets the root's word count requirement (chainable).
func (b *TreeBuilder) Length(length string) *TreeBuilder {
	b.info.Length = length
	return b
}

// Started marks the root DOING so its planned children can become ready (chainable).
func (b *TreeBuilder) Started() *TreeBuilder {
	b.started = true
	return b
}

// Build returns the tree.
func (b *TreeBuilder) Build() *task.Tree {
	tree := task.NewTree(b.info)
	if b.started {
		tree.Root().Status = core.StatusDoing
	}
	return tree
}

// Desc is shorthand for a planner descriptor.
func Desc(id string, tt core.TaskType, goal string, deps ...string) task.Descriptor {
	return task.Descriptor{ID: id, TaskType: tt.Tag(), Goal: goal, Dependency: deps}
}

// Expand plans n with descs, marks it DOING and returns its children in
// creation order.
func Expand(tb testing.TB, tree *task.Tree, n *task.Node, descs ...task.Descriptor) []*task.Node {
	tb.Helper()
	require.NoError(tb, tree.Expand(n.Ref, descs))
	n.Status = core.StatusDoing
	return tree.Children(n)
}

// Child returns the attached child of n with the given id.
func Child(tb testing.TB, tree *task.Tree, n *task.Node, id string) *task.Node {
	tb.Helper()
	for _, c := range tree.Children(n) {
		if c.ID == id {
			return c
		}
	}
	tb.Fatalf("node %q has no child %q", n.ID, id)
	return nil
}

// Finish records result as the node's final result and marks it FINISH.
func Finish(n *task.Node, result string) {
	key := core.ActionFinalAggregate
	if n.Kind == core.KindExecute {
		key = core.ActionExecute
	}
	n.Results[key] = task.Result{Value: result}
	n.Status = core.StatusFinish
}
