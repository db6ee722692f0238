package agent

import (
	"context"
	"strings"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
)

// Executor runs atomic tasks: writers for COMPOSITION, reasoners for
// ANALYSIS and the search agent for SEARCH.
type Executor struct {
	*env
	search *SearchAgent
}

// NewExecutor creates an executor. SEARCH tasks use the search agent when
// Options.Retriever is set.
func NewExecutor(llm model.Model, optFns ...func(o *Options)) *Executor {
	return newExecutor(newEnv(llm, optFns...))
}

func newExecutor(e *env) *Executor {
	x := &Executor{env: e}
	if e.opts.Retriever != nil {
		x.search = &SearchAgent{env: e}
	}
	return x
}

// Execute implements the execute action.
func (x *Executor) Execute(ctx context.Context, call Call) (Outcome, error) {
	switch call.Node.Info.TaskType {
	case core.TaskTypeComposition:
		return x.write(ctx, call)
	case core.TaskTypeSearch:
		if x.search != nil {
			return x.search.Execute(ctx, call)
		}
	}
	return x.reason(ctx, call)
}

type execAnswer struct {
	text  string
	think string
}

// generate retries role until the extracted tag is non-empty. Exhausting
// the budget yields the last (empty) answer rather than an error.
func (x *Executor) generate(ctx context.Context, call Call, role prompt.Role, tag string) (execAnswer, error) {
	n := call.Node
	data, err := x.promptData(call, true)
	if err != nil {
		return execAnswer{}, err
	}
	temperature := x.cfgFor(n).ExecuteTemperature
	opts := retry.Options{Attempts: x.opts.Retry.Execute, OnRetry: x.retryLogger("execute", n.ID)}
	ans, err := retry.Until(ctx, opts, func(ctx context.Context, a retry.Attempt) (execAnswer, error) {
		text, err := x.ask(ctx, role, data, temperature, a)
		if err != nil {
			return execAnswer{}, err
		}
		return execAnswer{
			text:  strings.TrimSpace(prompt.Tag(text, tag)),
			think: strings.TrimSpace(prompt.Tag(text, prompt.TagThink)),
		}, nil
	}, func(a execAnswer) bool { return a.text != "" })
	if err != nil {
		if !retry.IsRejected(err) {
			return execAnswer{}, err
		}
		x.opts.Logger.Error("execution produced no content", "node", n.ID, "role", role)
	}
	return ans, nil
}

func (x *Executor) write(ctx context.Context, call Call) (Outcome, error) {
	ans, err := x.generate(ctx, call, prompt.RoleWrite, prompt.TagArticle)
	if err != nil {
		return Outcome{}, err
	}
	call.Memory.AppendArticle(ans.text)
	return Outcome{Result: ans.text}, nil
}

func (x *Executor) reason(ctx context.Context, call Call) (Outcome, error) {
	ans, err := x.generate(ctx, call, prompt.RoleReason, prompt.TagResult)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Result: ans.text}
	if ans.think != "" {
		out.Detail = map[string]string{"think": ans.think}
	}
	return out, nil
}
