package memory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

func finish(n *task.Node, result string) {
	key := core.ActionFinalAggregate
	if n.Kind == core.KindExecute {
		key = core.ActionExecute
	}
	n.Results[key] = task.Result{Value: result}
	n.Status = core.StatusFinish
}

func children(tree *task.Tree, n *task.Node) map[string]*task.Node {
	out := map[string]*task.Node{}
	for _, c := range tree.Children(n) {
		out[c.ID] = c
	}
	return out
}

func entryIDs(es []Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestArticleAppendOrder(t *testing.T) {
	m := New(task.NewTree(task.Info{Goal: "g", TaskType: core.TaskTypeComposition}))
	m.AppendArticle("one")
	m.AppendArticle("two")
	m.AppendArticle("three")
	assert.Equal(t, "one\n\ntwo\n\nthree", m.Article())
}

func TestSearchResultIndices(t *testing.T) {
	m := New(task.NewTree(task.Info{Goal: "g", TaskType: core.TaskTypeComposition}))
	assert.Equal(t, 1, m.StartIndex())

	first := m.AddSearchResults([]core.SearchResult{{URL: "a"}, {URL: "b"}})
	assert.Equal(t, 1, first[0].Index)
	assert.Equal(t, 2, first[1].Index)
	second := m.AddSearchResults([]core.SearchResult{{URL: "c"}})
	assert.Equal(t, 3, second[0].Index)
	assert.Equal(t, 4, m.StartIndex())
	assert.Len(t, m.SearchResults(), 3)
}

func TestContextGroupsByDistance(t *testing.T) {
	tree := task.NewTree(task.Info{Goal: "report", TaskType: core.TaskTypeComposition})
	require.NoError(t, tree.Expand(task.RootRef, []task.Descriptor{
		{ID: "1", Goal: "find a", TaskType: "search"},
		{ID: "2", Goal: "find b", TaskType: "search"},
		{ID: "3", Goal: "compare", TaskType: "think", Dependency: []string{"1"}},
		{ID: "4", Goal: "intro", TaskType: "write"},
		{ID: "5", Goal: "body", TaskType: "write", Dependency: []string{"3", "2"}},
	}))
	c := children(tree, tree.Root())
	for _, id := range []string{"1", "2", "3", "4"} {
		finish(c[id], "result "+id)
	}

	m := New(tree)
	m.Refresh(c["5"])
	ctx, err := m.Context(c["5"])
	require.NoError(t, err)

	require.Len(t, ctx.Predecessors, 2)
	assert.Equal(t, []string{"1"}, entryIDs(ctx.Predecessors[0]), "distance 2 first")
	assert.Equal(t, []string{"2", "3"}, entryIDs(ctx.Predecessors[1]), "composition 4 excluded")
	assert.Equal(t, "result 3", ctx.Predecessors[1][1].Result)
	assert.Equal(t, []string{"1"}, ctx.Predecessors[1][1].Dependency)
	assert.Empty(t, ctx.Upper, "root has no ancestors")
	assert.Equal(t, []string{"1", "2", "3"}, entryIDs(ctx.FlatPredecessors()))
}

func TestContextUpperLevelsAndAtomSubstitution(t *testing.T) {
	tree := task.NewTree(task.Info{Goal: "report", TaskType: core.TaskTypeComposition})
	require.NoError(t, tree.Expand(task.RootRef, []task.Descriptor{
		{ID: "1", Goal: "background", TaskType: "search"},
		{ID: "2", Goal: "section", TaskType: "write", Dependency: []string{"1"}},
	}))
	top := children(tree, tree.Root())
	finish(top["1"], "bg")

	require.NoError(t, tree.Expand(top["2"].Ref, []task.Descriptor{
		{ID: "2.1", Goal: "detail", TaskType: "search"},
		{ID: "2.2", Goal: "para", TaskType: "write", Dependency: []string{"2.1"}},
	}))
	mid := children(tree, top["2"])
	finish(mid["2.1"], "detail result")

	require.NoError(t, tree.Expand(mid["2.2"].Ref, nil))
	atom := tree.Children(mid["2.2"])[0]

	m := New(tree)
	m.Refresh(atom)
	ctx, err := m.Context(atom)
	require.NoError(t, err)

	// The atom sees the context of 2.2: its predecessor 2.1 plus the
	// predecessors of its ancestor 2 (node 1).
	require.Len(t, ctx.Predecessors, 1)
	assert.Equal(t, []string{"2.1"}, entryIDs(ctx.Predecessors[0]))
	require.Len(t, ctx.Upper, 1)
	assert.Equal(t, []string{"1"}, entryIDs(ctx.Upper[0]))
	assert.Equal(t, "bg", ctx.Upper[0][0].Result)
}

func TestContextAssertsFinishedPredecessors(t *testing.T) {
	tree := task.NewTree(task.Info{Goal: "report", TaskType: core.TaskTypeComposition})
	require.NoError(t, tree.Expand(task.RootRef, []task.Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "2", Goal: "b", TaskType: "think", Dependency: []string{"1"}},
	}))
	c := children(tree, tree.Root())
	m := New(tree)
	m.Refresh(c["2"])
	_, err := m.Context(c["2"])
	assert.ErrorIs(t, err, core.ErrContract)
}

func TestSaveLoad(t *testing.T) {
	tree := task.NewTree(task.Info{Goal: "g", TaskType: core.TaskTypeComposition})
	m := New(tree)
	m.AppendArticle("hello")
	m.AddSearchResults([]core.SearchResult{{URL: "https://example.com", Title: "ex"}})

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	assert.Contains(t, buf.String(), `"all_search_results"`)

	loaded, err := Load(tree, &buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.Article())
	assert.Equal(t, 2, loaded.StartIndex())
	assert.Equal(t, "ex", loaded.SearchResults()[0].Title)
}
