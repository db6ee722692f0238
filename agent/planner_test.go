package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/testutil"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/task"
)

const complexAnswer = `<think>
needs several parts
</think>
<atomic_task_determination>
complex
</atomic_task_determination>`

const planAnswer = `<think>
split by topic
</think>
<result>
{"id": "", "goal": "report", "task_type": "write", "sub_tasks": [
  {"id": "1", "task_type": "search", "goal": "collect facts", "dependency": []},
  {"id": "2", "task_type": "write", "goal": "write it up", "dependency": ["1"], "length": "600 words"}
]}
</result>`

func overwriteFlags(calls []model.Request) []bool {
	out := make([]bool, len(calls))
	for i, c := range calls {
		out[i] = c.OverwriteCache
	}
	return out
}

func TestPlannerAllAtomSkipsModel(t *testing.T) {
	llm := model.NewMockModel("m")
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("compare vendors", core.TaskTypeAnalysis).Build()
	out, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "[]", out.Result)
	assert.Empty(t, out.Plan)
	assert.Equal(t, prompt.AtomicVerdict, out.Detail["atom_result"])
	assert.Zero(t, llm.CallCount())
}

func TestPlannerAllAtomRefinesOnlyWithDependencies(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<goal_updating>\nfind the 2025 revenue\nof ACME\n</goal_updating>")
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("report on ACME", core.TaskTypeComposition).Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeSearch, "find the company"),
		testutil.Desc("2", core.TaskTypeSearch, "find its revenue", "1"),
	)

	out, err := p.Plan(context.Background(), callFor(tree, kids[0]))
	require.NoError(t, err)
	assert.Empty(t, out.Goal)
	assert.Zero(t, llm.CallCount())

	testutil.Finish(kids[0], "ACME Corp")
	out, err = p.Plan(context.Background(), callFor(tree, kids[1]))
	require.NoError(t, err)
	assert.Equal(t, "find the 2025 revenue; of ACME", out.Goal)
	assert.Equal(t, "[]", out.Result)
	require.Equal(t, 1, llm.CallCount())
	assert.Contains(t, llm.Calls()[0].Messages[0].Content, "ACME Corp")
}

func TestPlannerUsesCandidatePlan(t *testing.T) {
	llm := model.NewMockModel("m")
	p := NewPlanner(llm, fixedDay, func(o *Options) {
		o.Mode = prompt.ModeStory
		o.Tasks = config.Story().Tasks
	})

	tree := testutil.NewTreeBuilder("a story", core.TaskTypeComposition).Started().Build()
	withPlan := testutil.Desc("1", core.TaskTypeAnalysis, "design the plot")
	withPlan.HasSubTasks = true
	withPlan.SubTasks = []task.Descriptor{
		testutil.Desc("1.1", core.TaskTypeAnalysis, "hero"),
		testutil.Desc("1.2", core.TaskTypeAnalysis, "villain", "1.1"),
	}
	kids := testutil.Expand(t, tree, tree.Root(),
		withPlan,
		testutil.Desc("2", core.TaskTypeAnalysis, "design the setting"),
	)

	out, err := p.Plan(context.Background(), callFor(tree, kids[0]))
	require.NoError(t, err)
	if diff := cmp.Diff(withPlan.SubTasks, out.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	out, err = p.Plan(context.Background(), callFor(tree, kids[1]))
	require.NoError(t, err)
	assert.Equal(t, "[]", out.Result)
	assert.Empty(t, out.Plan)
	assert.Zero(t, llm.CallCount())
}

func TestPlannerForcesAtomAtLayer(t *testing.T) {
	llm := model.NewMockModel("m")
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(), testutil.Desc("1", core.TaskTypeComposition, "section"))
	kids[0].Layer = 3

	out, err := p.Plan(context.Background(), callFor(tree, kids[0]))
	require.NoError(t, err)
	assert.Equal(t, "[]", out.Result)
	assert.Zero(t, llm.CallCount())
}

func TestPlannerAtomicVerdict(t *testing.T) {
	llm := model.NewMockModel("m").Queue("<atomic_task_determination>atomic</atomic_task_determination>")
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("a short note", core.TaskTypeComposition).Build()
	out, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "[]", out.Result)
	assert.Empty(t, out.Plan)
	assert.Equal(t, 1, llm.CallCount())
}

func TestPlannerJudgesThenPlans(t *testing.T) {
	llm := model.NewMockModel("m").Queue("I am not sure", complexAnswer, planAnswer)
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("report on ACME", core.TaskTypeComposition).Length("1000 words").Build()
	out, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)

	require.Len(t, out.Plan, 2)
	assert.Equal(t, "collect facts", out.Plan[0].Goal)
	assert.Equal(t, []string{"1"}, out.Plan[1].Dependency)
	assert.Equal(t, "needs several parts", out.CandidateThink)
	assert.Equal(t, "split by topic", out.Detail["plan_think"])
	assert.Equal(t, prompt.ComplexVerdict, out.Detail["atom_result"])

	assert.Equal(t, []bool{false, true, false}, overwriteFlags(llm.Calls()))
	// The planner is shown the judgement's reasoning.
	assert.Contains(t, llm.Calls()[2].Messages[0].Content, "needs several parts")
}

func TestPlannerInvalidJudgementCountsAsComplex(t *testing.T) {
	llm := model.NewMockModel("m").Queue("maybe", "perhaps", planAnswer)
	p := NewPlanner(llm, fixedDay, func(o *Options) { o.Retry.Atom = 2 })

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Build()
	out, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Len(t, out.Plan, 2)
	assert.Equal(t, 3, llm.CallCount())
}

func TestPlannerExhaustedPlanIsParseError(t *testing.T) {
	llm := model.NewMockModel("m").Queue(complexAnswer, "no json here", "still none")
	p := NewPlanner(llm, fixedDay, func(o *Options) { o.Retry.Plan = 2 })

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Build()
	_, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPlanParse)
	assert.Equal(t, []bool{false, false, true}, overwriteFlags(llm.Calls()))
}

func TestPlannerModelErrorIsNotRetried(t *testing.T) {
	boom := errors.New("provider down")
	llm := model.NewMockModel("m").QueueError(boom)
	p := NewPlanner(llm, fixedDay)

	tree := testutil.NewTreeBuilder("report", core.TaskTypeComposition).Build()
	_, err := p.Plan(context.Background(), callFor(tree, tree.Root()))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, llm.CallCount())
}

func TestParsePlanFallsBackToWholeAnswer(t *testing.T) {
	descs, err := parsePlan("```json\n{\"sub_tasks\": [{\"id\": 1, \"task_type\": \"think\", \"goal\": \"g\"}]}\n```")
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "1", descs[0].ID)

	_, err = parsePlan("<result>\nnothing\n</result>")
	assert.Error(t, err)
}
