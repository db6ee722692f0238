package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/testutil"
	"github.com/zhiyu/hypergen/memory"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/task"
)

// MockCapability records which action the proxy dispatched.
type MockCapability struct {
	mock.Mock
}

func (m *MockCapability) outcome(name string, call Call) (Outcome, error) {
	args := m.MethodCalled(name, call.Node.ID)
	return args.Get(0).(Outcome), args.Error(1)
}

func (m *MockCapability) Plan(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("Plan", call)
}

func (m *MockCapability) Execute(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("Execute", call)
}

func (m *MockCapability) Update(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("Update", call)
}

func (m *MockCapability) FinalAggregate(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("FinalAggregate", call)
}

func (m *MockCapability) PriorReflect(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("PriorReflect", call)
}

func (m *MockCapability) PlanningPostReflect(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("PlanningPostReflect", call)
}

func (m *MockCapability) ExecutePostReflect(_ context.Context, call Call) (Outcome, error) {
	return m.outcome("ExecutePostReflect", call)
}

const testDay = "Mar 3, 2026"

func fixedDay(o *Options) { o.Today = testDay }

// callFor refreshes a fresh memory for n.
func callFor(tree *task.Tree, n *task.Node) Call {
	mem := memory.New(tree)
	mem.Refresh(n)
	return Call{Node: n, Memory: mem}
}

func TestProxyDispatchesEveryAction(t *testing.T) {
	capability := &MockCapability{}
	actions := map[core.Action]string{
		core.ActionPlan:                "Plan",
		core.ActionExecute:             "Execute",
		core.ActionUpdate:              "Update",
		core.ActionFinalAggregate:      "FinalAggregate",
		core.ActionPriorReflect:        "PriorReflect",
		core.ActionPlanningPostReflect: "PlanningPostReflect",
		core.ActionExecutePostReflect:  "ExecutePostReflect",
	}
	for _, method := range actions {
		capability.On(method, "").Return(Outcome{Result: method}, nil).Once()
	}

	tree := testutil.NewTreeBuilder("goal", core.TaskTypeAnalysis).Build()
	proxy := NewProxy(capability)
	for action, method := range actions {
		out, err := proxy.Do(context.Background(), action, callFor(tree, tree.Root()))
		require.NoError(t, err)
		assert.Equal(t, method, out.Result)
	}
	capability.AssertExpectations(t)
}

func TestProxyOverrideByTaskType(t *testing.T) {
	capability := &MockCapability{}
	capability.On("Execute", "1").Return(Outcome{Result: "default"}, nil)

	tree := testutil.NewTreeBuilder("goal", core.TaskTypeComposition).Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeAnalysis, "think"),
		testutil.Desc("2", core.TaskTypeSearch, "look up"),
	)

	proxy := NewProxy(capability)
	proxy.Handle(core.TaskTypeSearch, core.ActionExecute, func(context.Context, Call) (Outcome, error) {
		return Outcome{Result: "override"}, nil
	})

	out, err := proxy.Do(context.Background(), core.ActionExecute, callFor(tree, kids[0]))
	require.NoError(t, err)
	assert.Equal(t, "default", out.Result)

	out, err = proxy.Do(context.Background(), core.ActionExecute, callFor(tree, kids[1]))
	require.NoError(t, err)
	assert.Equal(t, "override", out.Result)
	capability.AssertNumberOfCalls(t, "Execute", 1)
}

func TestProxyContractViolations(t *testing.T) {
	tree := testutil.NewTreeBuilder("goal", core.TaskTypeAnalysis).Build()

	_, err := NewProxy(nil).Do(context.Background(), core.ActionPlan, callFor(tree, tree.Root()))
	assert.ErrorIs(t, err, core.ErrContract)

	_, err = NewProxy(&MockCapability{}).Do(context.Background(), core.ActionPlan, Call{})
	assert.ErrorIs(t, err, core.ErrContract)
}

func TestProxyPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	capability := &MockCapability{}
	capability.On("Plan", "").Return(Outcome{}, boom)

	tree := testutil.NewTreeBuilder("goal", core.TaskTypeAnalysis).Build()
	_, err := NewProxy(capability).Do(context.Background(), core.ActionPlan, callFor(tree, tree.Root()))
	assert.ErrorIs(t, err, boom)
}

func TestWorkerSharesConfiguration(t *testing.T) {
	llm := model.NewMockModel("m")
	w := New(llm, fixedDay)

	assert.Same(t, w.Planner.env, w.Executor.env)
	assert.Same(t, w.Planner.env, w.Aggregator.env)
	assert.Same(t, w.Planner.env, w.Updater.env)
	assert.Nil(t, w.Executor.search)

	w = New(llm, func(o *Options) { o.Retriever = &fakeRetriever{} })
	assert.NotNil(t, w.Executor.search)
}

func TestPassThroughReflection(t *testing.T) {
	w := New(model.NewMockModel("m"))
	tree := testutil.NewTreeBuilder("goal", core.TaskTypeAnalysis).Build()
	call := callFor(tree, tree.Root())
	for _, action := range []core.Action{core.ActionPriorReflect, core.ActionPlanningPostReflect, core.ActionExecutePostReflect} {
		out, err := Handlers(w)[action](context.Background(), call)
		require.NoError(t, err)
		assert.Equal(t, Outcome{}, out)
	}
}
