package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/task"
)

// Aggregator combines the results of a PLAN node's finished children.
type Aggregator struct {
	*env
}

// NewAggregator creates an aggregator.
func NewAggregator(llm model.Model, optFns ...func(o *Options)) *Aggregator {
	return &Aggregator{env: newEnv(llm, optFns...)}
}

// FinalAggregate implements the finalAggregate action.
func (g *Aggregator) FinalAggregate(ctx context.Context, call Call) (Outcome, error) {
	n, mem := call.Node, call.Memory
	tree := mem.Tree()
	children := tree.Ordered(n)

	if len(children) == 1 && children[0].Kind == core.KindExecute {
		res, ok := tree.FinalResult(children[0])
		if !ok {
			return Outcome{}, fmt.Errorf("atomic child of %s unfinished: %w", n.ID, core.ErrContract)
		}
		return Outcome{Result: res}, nil
	}

	switch n.Info.TaskType {
	case core.TaskTypeComposition:
		return Outcome{Result: mem.Article()}, nil
	case core.TaskTypeSearch:
		joined, err := concat(tree, children)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: joined}, nil
	}

	joined, err := concat(tree, children)
	if err != nil {
		return Outcome{}, err
	}
	if g.cfgFor(n).Aggregate != config.AggregateLLM {
		return Outcome{Result: joined}, nil
	}
	return g.combine(ctx, call, joined)
}

// concat joins the children's results in topological order.
func concat(tree *task.Tree, children []*task.Node) (string, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		res, ok := tree.FinalResult(c)
		if !ok {
			return "", fmt.Errorf("child %s unfinished: %w", c.ID, core.ErrContract)
		}
		parts = append(parts, fmt.Sprintf("【%s】:\n %s", c.Info.Goal, res))
	}
	return strings.Join(parts, "\n\n"), nil
}

func (g *Aggregator) combine(ctx context.Context, call Call, joined string) (Outcome, error) {
	n := call.Node
	data, err := g.promptData(call, true)
	if err != nil {
		return Outcome{}, err
	}
	data.FinalAggregate = joined
	opts := retry.Options{Attempts: g.opts.Retry.Execute, OnRetry: g.retryLogger("aggregate", n.ID)}
	res, err := retry.Until(ctx, opts, func(ctx context.Context, a retry.Attempt) (string, error) {
		text, err := g.ask(ctx, prompt.RoleAggregate, data, g.cfgFor(n).ExecuteTemperature, a)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(prompt.Tag(text, prompt.TagResult)), nil
	}, func(v string) bool { return v != "" })
	if err != nil {
		if !retry.IsRejected(err) {
			return Outcome{}, err
		}
		g.opts.Logger.Warn("aggregation gave nothing, keeping concatenation", "node", n.ID)
		return Outcome{Result: joined}, nil
	}
	return Outcome{Result: res, Detail: map[string]string{"children": joined}}, nil
}
