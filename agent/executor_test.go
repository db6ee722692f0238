package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/testutil"
	"github.com/zhiyu/hypergen/model"
)

func TestExecutorRetriesEmptyAnswers(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		"<result>\n\n</result>",
		"I forgot the tags",
		"<think>\nweigh both\n</think>\n<result>\nB is cheaper\n</result>",
	)
	x := NewExecutor(llm, fixedDay)

	tree := testutil.NewTreeBuilder("compare A and B", core.TaskTypeAnalysis).Started().Build()
	atom := testutil.Expand(t, tree, tree.Root())[0]
	require.True(t, tree.IsAtom(atom))

	out, err := x.Execute(context.Background(), callFor(tree, atom))
	require.NoError(t, err)
	assert.Equal(t, "B is cheaper", out.Result)
	assert.Equal(t, "weigh both", out.Detail["think"])
	assert.Equal(t, []bool{false, true, true}, overwriteFlags(llm.Calls()))
}

func TestExecutorKeepsEmptyAnswerWhenBudgetRunsOut(t *testing.T) {
	llm := model.NewMockModel("m").Queue("", "")
	x := NewExecutor(llm, fixedDay, func(o *Options) { o.Retry.Execute = 2 })

	tree := testutil.NewTreeBuilder("compare", core.TaskTypeAnalysis).Build()
	out, err := x.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Empty(t, out.Result)
	assert.Equal(t, 2, llm.CallCount())
}

func TestExecutorWriteAppendsToArticle(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		"<article>\nFirst paragraph.\n</article>",
		"<article>\nSecond paragraph.\n</article>",
	)
	x := NewExecutor(llm, fixedDay)

	tree := testutil.NewTreeBuilder("essay", core.TaskTypeComposition).Length("300 words").Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeComposition, "opening"),
		testutil.Desc("2", core.TaskTypeComposition, "closing"),
	)
	call := callFor(tree, kids[0])

	out, err := x.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.", out.Result)

	testutil.Finish(kids[0], out.Result)
	call.Memory.Refresh(kids[1])
	_, err = x.Execute(context.Background(), Call{Node: kids[1], Memory: call.Memory})
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", call.Memory.Article())
	// The second writer sees what was already written.
	assert.Contains(t, llm.Calls()[1].Messages[0].Content, "First paragraph.")
}

func TestExecutorStoryWriterUsesStoryPrompt(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<article>\nOnce upon a time.\n</article>")
	x := NewExecutor(llm, fixedDay, func(o *Options) {
		o.Mode = prompt.ModeStory
		o.Tasks = config.Story().Tasks
	})

	tree := testutil.NewTreeBuilder("a fable", core.TaskTypeComposition).Build()
	out, err := x.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.", out.Result)

	assert.Contains(t, llm.Calls()[0].System, "novelist")
}

func TestExecutorReasonsOverSearchWithoutRetriever(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<result>\nfrom memory\n</result>")
	x := NewExecutor(llm, fixedDay)

	tree := testutil.NewTreeBuilder("who founded ACME", core.TaskTypeSearch).Build()
	out, err := x.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "from memory", out.Result)
}

func TestUpdaterRewritesGoalFromDependencies(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<goal_updating>\nsummarise ACME's 2025 revenue\n</goal_updating>")
	tasks := config.Report().Tasks
	tasks.Analysis.UpdateGoal = true
	u := NewUpdater(llm, fixedDay, func(o *Options) { o.Tasks = tasks })

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeSearch, "find revenue"),
		testutil.Desc("2", core.TaskTypeAnalysis, "summarise revenue", "1"),
		testutil.Desc("3", core.TaskTypeComposition, "write", "2"),
	)
	testutil.Finish(kids[0], "$3M")

	out, err := u.Update(context.Background(), callFor(tree, kids[1]))
	require.NoError(t, err)
	assert.Equal(t, "summarise ACME's 2025 revenue", out.Goal)
	assert.Equal(t, out.Goal, out.Result)

	// Composition keeps its goal without asking.
	testutil.Finish(kids[1], "about $3M")
	out, err = u.Update(context.Background(), callFor(tree, kids[2]))
	require.NoError(t, err)
	assert.Empty(t, out.Goal)
	assert.Equal(t, "write", out.Result)
	assert.Equal(t, 1, llm.CallCount())
}

func TestUpdaterKeepsUnchangedGoal(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<goal_updating>\nsummarise revenue\n</goal_updating>")
	tasks := config.Report().Tasks
	tasks.Analysis.UpdateGoal = true
	u := NewUpdater(llm, fixedDay, func(o *Options) { o.Tasks = tasks })

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeSearch, "find revenue"),
		testutil.Desc("2", core.TaskTypeAnalysis, "summarise revenue", "1"),
	)
	testutil.Finish(kids[0], "$3M")

	out, err := u.Update(context.Background(), callFor(tree, kids[1]))
	require.NoError(t, err)
	assert.Empty(t, out.Goal)
	assert.Equal(t, "summarise revenue", out.Result)
}

func TestExecutorSearchRetriesWithCacheBypass(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		"<result>\n</result>",
		"<result>\n\n</result>",
		"<result>\nACME was founded in 1999\n</result>",
	)
	x := NewExecutor(llm, fixedDay)

	tree := testutil.NewTreeBuilder("when was ACME founded", core.TaskTypeSearch).Build()
	out, err := x.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "ACME was founded in 1999", out.Result)
	assert.Equal(t, 3, llm.CallCount())
	assert.Equal(t, []bool{false, true, true}, overwriteFlags(llm.Calls()))
}
