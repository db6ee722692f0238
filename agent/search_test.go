package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/testutil"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/search"
	"github.com/zhiyu/hypergen/task"
)

// fakeRetriever returns one page per query and records every round.
type fakeRetriever struct {
	mu     sync.Mutex
	rounds []search.Query
	starts []int
}

func (f *fakeRetriever) Run(_ context.Context, q search.Query, startIndex int) ([]core.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, q)
	f.starts = append(f.starts, startIndex)
	pages := make([]core.SearchResult, len(q.Queries))
	for i, query := range q.Queries {
		pages[i] = core.SearchResult{
			URL:     "https://example.com/" + query,
			Title:   "About " + query,
			Summary: "facts on " + query,
			Query:   query,
		}
	}
	return pages, nil
}

func turnAnswer(observation string, queries ...string) string {
	list := make([]string, len(queries))
	for i, q := range queries {
		list[i] = fmt.Sprintf("%q", q)
	}
	return fmt.Sprintf("<observation>\n%s\n</observation>\n<missing_info>\nsome\n</missing_info>\n<current_turn_search_querys>\n[%s]\n</current_turn_search_querys>",
		observation, strings.Join(list, ", "))
}

func TestSearchAgentRunsRoundsUntilNoQueries(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		turnAnswer("nothing yet", "acme founder", "acme revenue"),
		"garbled answer",
		turnAnswer("found the founder", "acme 2025"),
		turnAnswer("enough"),
	)
	retriever := &fakeRetriever{}
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = retriever
		o.Search.LLMMerge = false
		o.Search.MaxTurn = 5
	})

	tree := testutil.NewTreeBuilder("research ACME", core.TaskTypeSearch).Build()
	call := callFor(tree, tree.Root())
	call.Memory.AddSearchResults([]core.SearchResult{{URL: "https://earlier.example"}})

	out, err := agent.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, "3", out.Detail["turns"])

	require.Len(t, retriever.rounds, 2)
	assert.Equal(t, []int{1, 3}, retriever.starts)
	assert.Equal(t, []string{"acme founder", "acme revenue"}, retriever.rounds[0].Queries)
	assert.Equal(t, "research ACME", retriever.rounds[0].Question)
	assert.Contains(t, retriever.rounds[0].Think, "<turn=0>")
	assert.NotContains(t, retriever.rounds[0].Think, prompt.TagSearchQueries)

	assert.Len(t, call.Memory.SearchResults(), 4)
	assert.Contains(t, out.Result, "<web_page index=1>")
	assert.Contains(t, out.Result, "<web_page index=3>")
	assert.Contains(t, out.Result, prompt.ShortSummary("found the founder"))
	assert.Contains(t, out.Result, prompt.ShortSummary("enough"))
	assert.NotContains(t, out.Result, "nothing yet")

	calls := llm.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []bool{false, false, true, false}, overwriteFlags(calls))
	// Later rounds see the previous round's pages.
	assert.Contains(t, calls[3].Messages[0].Content, "facts on acme 2025")
}

func TestSearchAgentStopsAtMaxTurn(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		turnAnswer("first look", "q1"),
		turnAnswer("still looking", "q2"),
	)
	retriever := &fakeRetriever{}
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = retriever
		o.Search.LLMMerge = false
		o.Search.MaxTurn = 2
	})

	tree := testutil.NewTreeBuilder("research", core.TaskTypeSearch).Build()
	out, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "2", out.Detail["turns"])
	// The forced final round only observes.
	assert.Len(t, retriever.rounds, 1)
	assert.Contains(t, out.Result, "facts on q1")
	assert.NotContains(t, out.Result, "q2")
}

func TestSearchAgentMergesResults(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		turnAnswer("start", "q1"),
		turnAnswer("done"),
		"<result>\nACME was founded in 1999 [0].\n</result>",
	)
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = &fakeRetriever{}
		o.Search.LLMMerge = true
	})

	tree := testutil.NewTreeBuilder("research", core.TaskTypeSearch).Build()
	out, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "ACME was founded in 1999 [0].", out.Result)
	assert.Contains(t, out.Detail["search_results"], "facts on q1")
	assert.Contains(t, llm.Calls()[2].Messages[0].Content, "facts on q1")
}

func TestSearchAgentMergeFallsBackToRawResults(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		turnAnswer("start", "q1"),
		turnAnswer("done"),
		"<result>\n</result>",
		"",
	)
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = &fakeRetriever{}
		o.Search.LLMMerge = true
		o.Retry.SearchMerge = 2
	})

	tree := testutil.NewTreeBuilder("research", core.TaskTypeSearch).Build()
	out, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, out.Detail["search_results"], out.Result)
	assert.Contains(t, out.Result, "facts on q1")
	assert.Equal(t, 4, llm.CallCount())
}

// emptyFirstRetriever answers its first round with no pages.
type emptyFirstRetriever struct {
	fakeRetriever
	seen []search.Query
}

func (r *emptyFirstRetriever) Run(ctx context.Context, q search.Query, startIndex int) ([]core.SearchResult, error) {
	r.seen = append(r.seen, q)
	if len(r.seen) == 1 {
		return nil, nil
	}
	return r.fakeRetriever.Run(ctx, q, startIndex)
}

func TestSearchAgentRerunsEmptyRoundsWithoutCache(t *testing.T) {
	llm := model.NewMockModel("m").Queue(
		turnAnswer("looking", "q1"),
		turnAnswer("nothing found"),
		turnAnswer("looking again", "q1"),
		turnAnswer("found it"),
	)
	retriever := &emptyFirstRetriever{}
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = retriever
		o.Search.LLMMerge = false
		o.Retry.Search = 3
	})

	tree := testutil.NewTreeBuilder("research tides", core.TaskTypeSearch).Build()
	out, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "2", out.Detail["turns"])
	assert.Contains(t, out.Result, "facts on q1")

	require.Len(t, retriever.seen, 2)
	assert.False(t, retriever.seen[0].Fresh)
	assert.True(t, retriever.seen[1].Fresh)
	assert.Equal(t, []bool{false, false, true, true}, overwriteFlags(llm.Calls()))
}

func TestSearchAgentKeepsEmptyResultWhenRetriesRunOut(t *testing.T) {
	llm := model.NewMockModel("m").Respond(func(model.Request) (string, error) {
		return turnAnswer("looking", "q1"), nil
	})
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = nothingRetriever{}
		o.Search.LLMMerge = false
		o.Search.MaxTurn = 2
		o.Retry.Search = 2
	})

	tree := testutil.NewTreeBuilder("research tides", core.TaskTypeSearch).Build()
	out, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	require.NoError(t, err)
	assert.Equal(t, "2", out.Detail["turns"])
	assert.NotContains(t, out.Result, "<web_page")
	assert.Equal(t, 4, llm.CallCount())
	assert.Equal(t, []bool{false, false, true, true}, overwriteFlags(llm.Calls()))
}

type nothingRetriever struct{}

func (nothingRetriever) Run(context.Context, search.Query, int) ([]core.SearchResult, error) {
	return nil, nil
}

func TestSearchAgentNeedsRetriever(t *testing.T) {
	agent := NewSearchAgent(model.NewMockModel("m"), fixedDay)
	tree := testutil.NewTreeBuilder("research", core.TaskTypeSearch).Build()
	_, err := agent.Execute(context.Background(), callFor(tree, tree.Root()))
	assert.ErrorIs(t, err, core.ErrContract)
}

func writeDesc(id, goal, length string, deps ...string) task.Descriptor {
	d := testutil.Desc(id, core.TaskTypeComposition, goal, deps...)
	d.Length = length
	return d
}

func TestSearchPromptCarriesWritingTargets(t *testing.T) {
	llm := model.NewMockModel("m").Queue(turnAnswer("done"))
	agent := NewSearchAgent(llm, fixedDay, func(o *Options) {
		o.Retriever = &fakeRetriever{}
		o.Search.LLMMerge = false
	})

	tree := testutil.NewTreeBuilder("report on ACME", core.TaskTypeComposition).Length("2000 words").Started().Build()
	kids := testutil.Expand(t, tree, tree.Root(),
		testutil.Desc("1", core.TaskTypeSearch, "find ACME history"),
		writeDesc("2", "write the history section", "800 words", "1"),
	)

	data, err := agent.promptData(callFor(tree, kids[0]), true)
	require.NoError(t, err)
	assert.Equal(t, "Write Task1: write the history section, word count requirements: 800 words", data.TargetWriteTasks)
	assert.Equal(t, "Write Task report on ACME, word count requirements: 2000 words", data.OuterWriteTask)
	assert.Equal(t, testDay, data.Today)
}
