package task

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
)

func rootInfo() Info {
	return Info{Goal: "write a report", TaskType: core.TaskTypeComposition, Length: "3000 words"}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestExpandEmptyPlanCollapsesToAtom(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, nil))

	children := tree.Children(tree.Root())
	require.Len(t, children, 1)
	atom := children[0]
	assert.Equal(t, core.KindExecute, atom.Kind)
	assert.Equal(t, "write a report", atom.Info.Goal)
	assert.Equal(t, core.TaskTypeComposition, atom.Info.TaskType)
	assert.Equal(t, "3000 words", atom.Info.Length)
	assert.Equal(t, 1, atom.Layer)
	assert.True(t, tree.IsAtom(atom))
}

func TestExpandNormalizesDescriptors(t *testing.T) {
	tree := NewTree(rootInfo())
	err := tree.Expand(RootRef, []Descriptor{
		{ID: "2", Goal: "reason\nabout it", TaskType: "analyze"},
		{ID: "1", Goal: "look up facts", TaskType: "search", Length: "ignored"},
		{ID: "3", Goal: "write", TaskType: "write"},
	})
	require.NoError(t, err)

	children := tree.Children(tree.Root())
	assert.Equal(t, []string{"1", "2", "3"}, ids(children))
	assert.Equal(t, "reason;about it", children[1].Info.Goal)
	assert.Equal(t, core.TaskTypeAnalysis, children[1].Info.TaskType)
	assert.Empty(t, children[0].Info.Length)
	assert.Equal(t, "3000 words", children[2].Info.Length, "single composition inherits length")
	for _, c := range children {
		assert.Equal(t, core.KindPlan, c.Kind)
		assert.Equal(t, core.StatusNotReady, c.Status)
		assert.NotEmpty(t, c.InstanceKey)
	}
}

func TestExpandKeepsExplicitLengthWithSeveralCompositions(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "write"},
		{ID: "2", Goal: "b", TaskType: "write", Length: "500"},
	}))
	children := tree.Children(tree.Root())
	assert.Empty(t, children[0].Info.Length)
	assert.Equal(t, "500", children[1].Info.Length)
}

func TestImplicitSequencing(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "search", TaskType: "search"},
		{ID: "2", Goal: "think a", TaskType: "think"},
		{ID: "3", Goal: "write a", TaskType: "write"},
		{ID: "4", Goal: "think b", TaskType: "think", Dependency: []string{"1"}},
		{ID: "5", Goal: "write b", TaskType: "write", Dependency: []string{"4"}},
		{ID: "6", Goal: "write c", TaskType: "write"},
	}))
	byID := map[string]*Node{}
	for _, c := range tree.Children(tree.Root()) {
		byID[c.ID] = c
	}
	parentIDs := func(id string) []string { return ids(tree.Parents(byID[id])) }

	assert.Empty(t, parentIDs("1"))
	assert.Empty(t, parentIDs("2"))
	assert.Empty(t, parentIDs("3"))
	assert.Equal(t, []string{"1", "2"}, parentIDs("4"))
	assert.Equal(t, []string{"4", "3"}, parentIDs("5"))
	assert.Equal(t, []string{"3", "5"}, parentIDs("6"))

	order := ids(tree.Ordered(tree.Root()))
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5", "6"}, order); diff != "" {
		t.Fatalf("topological order mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectImplicitDependenciesIsANamedPass(t *testing.T) {
	ps := []prepared{
		{desc: Descriptor{ID: "1"}, taskType: core.TaskTypeComposition},
		{desc: Descriptor{ID: "2"}, taskType: core.TaskTypeComposition, deps: []string{"1"}},
		{desc: Descriptor{ID: "3"}, taskType: core.TaskTypeComposition},
	}
	injectImplicitDependencies(ps)
	assert.Empty(t, ps[0].deps)
	assert.Equal(t, []string{"1"}, ps[1].deps, "no duplicate edge")
	assert.Equal(t, []string{"1", "2"}, ps[2].deps)
}

func TestExpandDropsUnresolvedAndSelfDependencies(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search", Dependency: []string{"9", "1"}},
		{ID: "2", Goal: "b", TaskType: "search", Dependency: []string{"1", "x"}},
	}))
	children := tree.Children(tree.Root())
	assert.Empty(t, children[0].Parents)
	assert.Equal(t, []string{"1"}, ids(tree.Parents(children[1])))
	assert.Equal(t, []string{"9", "1"}, children[0].Info.Dependency, "declared ids are kept as task info")
}

func TestExpandRejectsCycle(t *testing.T) {
	tree := NewTree(rootInfo())
	err := tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search", Dependency: []string{"3"}},
		{ID: "2", Goal: "b", TaskType: "search", Dependency: []string{"1"}},
		{ID: "3", Goal: "c", TaskType: "search", Dependency: []string{"2"}},
	})
	require.ErrorIs(t, err, core.ErrCycle)
	assert.True(t, tree.Root().Inner.Empty(), "a failed expansion leaves no graph")
	assert.Equal(t, 1, tree.Len())
}

func TestExpandRejectsDuplicateIDs(t *testing.T) {
	tree := NewTree(rootInfo())
	err := tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "1", Goal: "b", TaskType: "search"},
	})
	assert.ErrorIs(t, err, core.ErrDuplicateNode)
}

func TestExpandRejectsUnknownTaskType(t *testing.T) {
	tree := NewTree(rootInfo())
	err := tree.Expand(RootRef, []Descriptor{{ID: "1", Goal: "a", TaskType: "paint"}})
	assert.Error(t, err)
}

func TestExpandCarriesCandidatePlan(t *testing.T) {
	descs, err := ParseDescriptors([]byte(`[
		{"id": 1, "goal": "outline", "task_type": "think", "dependency": [],
		 "sub_tasks": [{"id": "1.1", "goal": "sub\ngoal", "task_type": "think", "dependency": []}]},
		{"id": 2, "goal": "write", "task_type": "write", "dependency": [1], "length": 800}
	]`))
	require.NoError(t, err)

	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, descs))
	children := tree.Children(tree.Root())

	assert.True(t, children[0].Info.HasCandidatePlan)
	require.Len(t, children[0].Info.CandidatePlan, 1)
	assert.Equal(t, "sub;goal", children[0].Info.CandidatePlan[0].Goal)
	assert.False(t, children[1].Info.HasCandidatePlan)
	assert.Equal(t, "800", children[1].Info.Length)
	assert.Equal(t, []string{"1"}, ids(tree.Parents(children[1])))
}

func TestExpandReplanBeforeStart(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{{ID: "1", Goal: "a", TaskType: "search"}}))
	old := tree.Children(tree.Root())[0]

	require.NoError(t, tree.Expand(RootRef, []Descriptor{{ID: "1", Goal: "b", TaskType: "search"}}))
	assert.True(t, old.Detached)
	assert.Equal(t, "b", tree.Children(tree.Root())[0].Info.Goal)

	tree.Children(tree.Root())[0].Status = core.StatusReady
	err := tree.Expand(RootRef, nil)
	assert.ErrorIs(t, err, core.ErrContract)
}

func TestTopologicalOrderLayers(t *testing.T) {
	nodes := []Ref{10, 11, 12, 13}
	edges := map[Ref][]Ref{10: {12}, 11: {12}, 12: {13}}
	order, err := topologicalOrder(nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, []Ref{10, 11, 12, 13}, order)

	_, err = topologicalOrder([]Ref{1, 2}, map[Ref][]Ref{1: {2}, 2: {1}})
	assert.ErrorIs(t, err, core.ErrCycle)
}
