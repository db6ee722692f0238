package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
)

func TestSnapshotIsRecursive(t *testing.T) {
	tree := NewTree(rootInfo())
	simulate(t, tree, map[string][]Descriptor{
		"write a report": {
			{ID: "1", Goal: "facts", TaskType: "search"},
			{ID: "2", Goal: "prose", TaskType: "write", Dependency: []string{"1"}},
		},
	})

	snap := tree.Snapshot()
	assert.Equal(t, core.StatusFinish, snap.Status)
	require.Len(t, snap.InnerGraph.Nodes, 2)
	assert.Equal(t, []string{"2"}, snap.InnerGraph.Edges["1"])
	require.Len(t, snap.InnerGraph.Nodes[0].InnerGraph.Nodes, 1, "atomic wrapper")
	assert.NotEmpty(t, snap.FinalResult)

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"topological_task_queue"`)
	assert.Contains(t, string(b), `"status":"FINISH"`)
}

func TestRestoreResumesMidRun(t *testing.T) {
	tree := NewTree(rootInfo())
	require.NoError(t, tree.Expand(RootRef, []Descriptor{
		{ID: "1", Goal: "a", TaskType: "search"},
		{ID: "2", Goal: "b", TaskType: "write", Dependency: []string{"1"}},
	}))
	tree.Root().Status = core.StatusDoing
	tree.ExamAll()

	data, err := json.Marshal(tree)
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, tree.Len(), restored.Len())
	assert.Equal(t, tree.Root().InstanceKey, restored.Root().InstanceKey)

	next := restored.NextRunnable()
	require.NotNil(t, next)
	assert.Equal(t, "1", next.ID)
	assert.Equal(t, []string{"1"}, ids(restored.Parents(restored.Children(restored.Root())[1])))
}

func TestRestoreRejectsDanglingRefs(t *testing.T) {
	_, err := Restore([]byte(`{"nodes":[{"ref":0,"id":"","outer":-1,"parents":[4],"node_type":"PLAN","status":"READY","task_info":{"goal":"g","task_type":"write","dependency":[]}}]}`))
	assert.ErrorIs(t, err, core.ErrNodeNotFound)

	_, err = Restore([]byte(`{"nodes":[]}`))
	assert.Error(t, err)
}
