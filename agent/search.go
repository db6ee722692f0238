package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/search"
)

// SearchAgent answers SEARCH tasks in rounds: the model proposes queries,
// the retriever fetches and condenses pages, and the model observes them in
// the next round, until it proposes no more queries or MaxTurn is reached.
type SearchAgent struct {
	*env
}

// NewSearchAgent creates a search agent. Options.Retriever must be set.
func NewSearchAgent(llm model.Model, optFns ...func(o *Options)) *SearchAgent {
	return &SearchAgent{env: newEnv(llm, optFns...)}
}

// searchTurn is one parsed round.
type searchTurn struct {
	n           int
	observation string
	missingInfo string
	planThink   string
	queryThink  string
	queries     []string
	rawQueries  string
	pages       []core.SearchResult
	ranPipeline bool
}

func (t searchTurn) format(withQueries bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<turn=%d>\n", t.n)
	for _, f := range []struct{ tag, val string }{
		{prompt.TagObservation, t.observation},
		{prompt.TagMissingInfo, t.missingInfo},
		{prompt.TagPlanningThink, t.planThink},
		{prompt.TagQueryThink, t.queryThink},
	} {
		fmt.Fprintf(&b, "<%s>\n%s\n</%s>\n", f.tag, f.val, f.tag)
	}
	if withQueries {
		fmt.Fprintf(&b, "<%s>\n%s\n</%s>\n", prompt.TagSearchQueries, t.rawQueries, prompt.TagSearchQueries)
	}
	b.WriteString("</turn>")
	return b.String()
}

func parseTurn(text string) (searchTurn, error) {
	raw := strings.TrimSpace(prompt.Tag(text, prompt.TagSearchQueries))
	queries, err := prompt.StringList(raw)
	if err != nil {
		return searchTurn{}, err
	}
	return searchTurn{
		observation: strings.TrimSpace(prompt.Tag(text, prompt.TagObservation)),
		missingInfo: strings.TrimSpace(prompt.Tag(text, prompt.TagMissingInfo)),
		planThink:   strings.TrimSpace(prompt.Tag(text, prompt.TagPlanningThink)),
		queryThink:  strings.TrimSpace(prompt.Tag(text, prompt.TagQueryThink)),
		queries:     queries,
		rawQueries:  raw,
	}, nil
}

// Execute implements the execute action for SEARCH tasks.
func (s *SearchAgent) Execute(ctx context.Context, call Call) (Outcome, error) {
	if s.opts.Retriever == nil {
		return Outcome{}, fmt.Errorf("search agent without retriever: %w", core.ErrContract)
	}
	n := call.Node
	base, err := s.promptData(call, true)
	if err != nil {
		return Outcome{}, err
	}
	// Rounds whose retrievals all came back empty are rerun with the caches
	// bypassed, so an empty cached round is not replayed.
	opts := retry.Options{Attempts: s.opts.Retry.Search, OnRetry: s.retryLogger("search", n.ID)}
	turns, err := retry.Until(ctx, opts, func(ctx context.Context, a retry.Attempt) ([]searchTurn, error) {
		turns, err := s.rounds(ctx, call, base, a.Overwrite)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		return turns, nil
	}, func(turns []searchTurn) bool { return !fruitless(turns) })
	if err != nil {
		if !retry.IsRejected(err) {
			return Outcome{}, err
		}
		s.opts.Logger.Warn("search collected nothing", "node", n.ID)
	}

	raw := collect(turns)
	out := Outcome{Result: raw, Detail: map[string]string{"turns": strconv.Itoa(len(turns))}}
	if !s.opts.Search.LLMMerge {
		return out, nil
	}
	merged, err := s.merge(ctx, call, base, raw)
	if err != nil {
		return Outcome{}, err
	}
	out.Result = merged
	out.Detail["search_results"] = raw
	return out, nil
}

// rounds runs search turns until the model stops asking or MaxTurn is hit.
func (s *SearchAgent) rounds(ctx context.Context, call Call, base prompt.Data, fresh bool) ([]searchTurn, error) {
	n, mem := call.Node, call.Memory
	maxTurn := s.opts.Search.MaxTurn
	if maxTurn <= 0 {
		maxTurn = 1
	}
	var turns []searchTurn
	for i := 0; i < maxTurn; i++ {
		forceStop := i == maxTurn-1
		t, err := s.turn(ctx, call, base, turns, i, forceStop, fresh)
		if err != nil {
			return nil, err
		}
		if len(t.queries) == 0 || forceStop {
			turns = append(turns, t)
			break
		}
		pages, err := s.opts.Retriever.Run(ctx, search.Query{
			Question: n.Info.Goal,
			Think:    t.format(false),
			Queries:  t.queries,
			Fresh:    fresh,
		}, mem.StartIndex())
		if err != nil {
			return nil, fmt.Errorf("search round %d of %s: %w", i, n.ID, err)
		}
		t.pages = mem.AddSearchResults(pages)
		t.ranPipeline = true
		s.opts.Logger.Info("search round", "node", n.ID, "turn", i, "queries", len(t.queries), "pages", len(t.pages))
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *SearchAgent) turn(ctx context.Context, call Call, base prompt.Data, history []searchTurn, i int, forceStop, fresh bool) (searchTurn, error) {
	n := call.Node
	data := base
	data.Question = n.Info.Goal
	data.Turn = i
	data.ForceStop = forceStop
	data.History = "None"
	if len(history) > 0 {
		parts := make([]string, len(history))
		for j, h := range history {
			parts[j] = h.format(true)
		}
		data.History = strings.Join(parts, "\n")
	}
	data.ToolResult = "null"
	if len(history) > 0 {
		data.ToolResult = prompt.FormatPages(history[len(history)-1].pages)
	}

	opts := retry.Options{Attempts: s.opts.Retry.SearchParse, OnRetry: s.retryLogger("search_turn", n.ID)}
	t, err := retry.Do(ctx, opts, func(ctx context.Context, a retry.Attempt) (searchTurn, error) {
		a.Overwrite = a.Overwrite || fresh
		text, err := s.ask(ctx, prompt.RoleSearchTurn, data, s.opts.Search.Temperature, a)
		if err != nil {
			return searchTurn{}, err
		}
		return parseTurn(text)
	})
	if err != nil {
		return searchTurn{}, fmt.Errorf("search turn %d of %s: %w", i, n.ID, err)
	}
	t.n = i
	return t, nil
}

// fruitless reports whether the retriever ran and never returned a page.
func fruitless(turns []searchTurn) bool {
	ran := false
	for _, t := range turns {
		if !t.ranPipeline {
			continue
		}
		if len(t.pages) > 0 {
			return false
		}
		ran = true
	}
	return ran
}

// collect renders every round that was observed afterwards: its pages
// followed by the next round's observation of them.
func collect(turns []searchTurn) string {
	var parts []string
	for i := 0; i+1 < len(turns); i++ {
		if !turns[i].ranPipeline {
			continue
		}
		for _, p := range turns[i].pages {
			parts = append(parts, prompt.FormatPage(p))
		}
		parts = append(parts, prompt.ShortSummary(turns[i+1].observation))
	}
	return strings.Join(parts, "\n\n")
}

// merge condenses the raw rounds for the writers. An answer that stays
// empty falls back to the raw text.
func (s *SearchAgent) merge(ctx context.Context, call Call, base prompt.Data, raw string) (string, error) {
	n := call.Node
	data := base
	data.SearchResults = raw
	opts := retry.Options{Attempts: s.opts.Retry.SearchMerge, OnRetry: s.retryLogger("search_merge", n.ID)}
	merged, err := retry.Until(ctx, opts, func(ctx context.Context, a retry.Attempt) (string, error) {
		text, err := s.ask(ctx, prompt.RoleSearchMerge, data, s.cfgFor(n).ExecuteTemperature, a)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(prompt.Tag(text, prompt.TagResult)), nil
	}, func(v string) bool { return v != "" })
	if err != nil {
		if !retry.IsRejected(err) {
			return "", err
		}
		s.opts.Logger.Warn("search merge gave nothing, keeping raw results", "node", n.ID)
		return raw, nil
	}
	return merged, nil
}
