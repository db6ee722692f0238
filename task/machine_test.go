package task

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
)

func TestNextActionTable(t *testing.T) {
	cases := []struct {
		status core.Status
		kind   core.NodeKind
		action core.Action
		next   core.Status
	}{
		{core.StatusReady, core.KindPlan, core.ActionPlan, core.StatusPlanDone},
		{core.StatusReady, core.KindExecute, core.ActionExecute, core.StatusNeedPostReflect},
		{core.StatusNeedUpdate, core.KindPlan, core.ActionUpdate, core.StatusReady},
		{core.StatusNeedUpdate, core.KindExecute, core.ActionUpdate, core.StatusReady},
		{core.StatusPlanDone, core.KindPlan, core.ActionPriorReflect, core.StatusDoing},
		{core.StatusFinalToFinish, core.KindPlan, core.ActionFinalAggregate, core.StatusNeedPostReflect},
		{core.StatusNeedPostReflect, core.KindPlan, core.ActionPlanningPostReflect, core.StatusFinish},
		{core.StatusNeedPostReflect, core.KindExecute, core.ActionExecutePostReflect, core.StatusFinish},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", tc.status, tc.kind), func(t *testing.T) {
			action, next, err := NextAction(&Node{Status: tc.status, Kind: tc.kind})
			require.NoError(t, err)
			assert.Equal(t, tc.action, action)
			assert.Equal(t, tc.next, next)
		})
	}
}

func TestNextActionRejectsNonActivate(t *testing.T) {
	for _, s := range []core.Status{core.StatusNotReady, core.StatusDoing, core.StatusFinish, core.StatusFailed} {
		_, _, err := NextAction(&Node{Status: s})
		assert.ErrorIs(t, err, core.ErrContract, s.String())
	}
}

func TestAdvanceRejectsWrongAction(t *testing.T) {
	tree := NewTree(rootInfo())
	tree.Root().Status = core.StatusReady
	_, err := tree.Advance(RootRef, core.ActionExecute, Result{})
	assert.ErrorIs(t, err, core.ErrContract)

	next, err := tree.Advance(RootRef, core.ActionPlan, Result{Value: "[]"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPlanDone, next)
	r, ok := tree.Root().Result(core.ActionPlan)
	require.True(t, ok)
	assert.False(t, r.Timestamp.IsZero())
}

func TestExamPredicates(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "2", Goal: "b", TaskType: "search", Dependency: []string{"1"}},
	}))
	a, b := tree.Children(tree.Root())[0], tree.Children(tree.Root())[1]

	// Outer not DOING: nothing moves.
	tree.Root().Status = core.StatusPlanDone
	assert.Empty(t, tree.ExamAll())
	assert.False(t, tree.Exam(a))

	tree.Root().Status = core.StatusDoing
	changes := tree.ExamAll()
	require.Len(t, changes, 1)
	assert.Equal(t, a, changes[0].Node)
	assert.Equal(t, core.StatusReady, a.Status)
	assert.Equal(t, core.StatusNotReady, b.Status)

	a.Status = core.StatusFinish
	tree.ExamAll()
	assert.Equal(t, core.StatusNeedUpdate, b.Status)
	assert.Equal(t, core.StatusDoing, tree.Root().Status)

	b.Status = core.StatusFinish
	tree.ExamAll()
	assert.Equal(t, core.StatusFinalToFinish, tree.Root().Status)
}

func TestExamCascadesUpward(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{{ID: "1", Goal: "a", TaskType: "search"}}))
	child := tree.Children(tree.Root())[0]
	require.NoError(t, tree.Expand(child.Ref, nil))
	leaf := tree.Children(child)[0]

	tree.Root().Status = core.StatusDoing
	child.Status = core.StatusDoing
	leaf.Status = core.StatusFinish

	changes := tree.ExamAll()
	require.Len(t, changes, 1)
	assert.Equal(t, core.StatusFinalToFinish, child.Status)
	assert.Equal(t, core.StatusDoing, tree.Root().Status)
}

func TestExamSweepIsIdempotent(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "2", Goal: "b", TaskType: "think"},
		{ID: "3", Goal: "c", TaskType: "write"},
	}))
	tree.Root().Status = core.StatusDoing

	tree.ExamAll()
	before := map[Ref]core.Status{}
	tree.Walk(func(n *Node) bool { before[n.Ref] = n.Status; return true })

	assert.Empty(t, tree.ExamAll())
	tree.Walk(func(n *Node) bool {
		assert.Equal(t, before[n.Ref], n.Status, n.ID)
		return true
	})
}

func TestRunnableDiscovery(t *testing.T) {
	tree := NewTree(rootInfo())
	assert.Nil(t, tree.NextRunnable(), "root starts NOT_READY")

	tree.Root().Status = core.StatusReady
	assert.Equal(t, tree.Root(), tree.NextRunnable())

	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "2", Goal: "b", TaskType: "search"},
	}))
	tree.Root().Status = core.StatusDoing
	tree.ExamAll()
	runnable := tree.Runnable()
	assert.Equal(t, []string{"1", "2"}, ids(runnable))
	assert.Equal(t, runnable[0], tree.NextRunnable())

	tree.Root().Status = core.StatusFinish
	assert.Nil(t, tree.NextRunnable(), "silence nodes are not descended")
}

// simulate drives the tree with instant capabilities: plans come from the
// plans map keyed by goal (missing goals collapse to atoms) and every other
// action returns the node id. It returns the outer ids of finished execute nodes
// in completion order.
func simulate(t *testing.T, tree *Tree, plans map[string][]Descriptor) []string {
	t.Helper()
	var finished []string
	tree.Root().Status = core.StatusReady
	for step := 0; step < 1000; step++ {
		n := tree.NextRunnable()
		if n == nil {
			return finished
		}
		if n.Status == core.StatusReady || n.Status == core.StatusNeedUpdate {
			for _, p := range tree.Parents(n) {
				require.Equal(t, core.StatusFinish, p.Status, "dependency %s of %s not finished", p.ID, n.ID)
			}
		}
		action, _, err := NextAction(n)
		require.NoError(t, err)
		if action == core.ActionPlan {
			require.NoError(t, tree.Expand(n.Ref, plans[n.Info.Goal]))
		}
		next, err := tree.Advance(n.Ref, action, Result{Value: "done:" + n.ID})
		require.NoError(t, err)
		if next == core.StatusFinish && n.Kind == core.KindExecute {
			finished = append(finished, tree.Outer(n).ID)
		}
		tree.ExamAll()
	}
	t.Fatal("simulation did not terminate")
	return nil
}

func TestSimulationRespectsDependencies(t *testing.T) {
	tree := NewTree(rootInfo())
	finished := simulate(t, tree, map[string][]Descriptor{
		"write a report": {
			{ID: "3", Goal: "part three", TaskType: "write"},
			{ID: "1", Goal: "part one", TaskType: "write"},
			{ID: "2", Goal: "part two", TaskType: "write"},
		},
	})
	assert.Equal(t, []string{"1", "2", "3"}, finished)
	assert.Equal(t, core.StatusFinish, tree.Root().Status)

	tree.Walk(func(n *Node) bool {
		assert.Equal(t, core.StatusFinish, n.Status, n.Label())
		return true
	})
}

func TestFinalResultOnlyWhenFinished(t *testing.T) {
	n := &Node{Kind: core.KindExecute, Status: core.StatusNeedPostReflect, Results: map[core.Action]Result{
		core.ActionExecute: {Value: "text"},
	}}
	tree := NewTree(rootInfo())
	_, ok := tree.FinalResult(n)
	assert.False(t, ok)

	n.Status = core.StatusFinish
	v, ok := tree.FinalResult(n)
	assert.True(t, ok)
	assert.Equal(t, "text", v)
}
