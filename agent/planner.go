package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/task"
)

// Planner decides whether a task is atomic and, if not, decomposes it.
type Planner struct {
	*env
}

// NewPlanner creates a planner.
func NewPlanner(llm model.Model, optFns ...func(o *Options)) *Planner {
	return &Planner{env: newEnv(llm, optFns...)}
}

type atomJudgement struct {
	think   string
	verdict string
	goal    string
}

// Plan implements the plan action. The shortcuts are checked in order: all
// atom, candidate plan, forced atom layer. Otherwise the model judges the
// task and, when it is complex, plans it.
func (p *Planner) Plan(ctx context.Context, call Call) (Outcome, error) {
	n := call.Node
	cfg := p.cfgFor(n)

	switch {
	case cfg.AllAtom:
		out := Outcome{Result: "[]", Detail: map[string]string{"atom_result": prompt.AtomicVerdict}}
		if cfg.AtomUpdate && (!cfg.OnlyOnDepend || len(n.Parents) > 0) {
			goal, err := p.refineAtom(ctx, call)
			if err != nil {
				return Outcome{}, err
			}
			if goal != "" {
				out.Goal = goal
				out.Detail["update_result"] = goal
			}
		}
		return out, nil

	case cfg.UseCandidatePlan:
		if !n.Info.HasCandidatePlan {
			p.opts.Logger.Info("candidate plan missing", "node", n.ID)
			return Outcome{Result: "[]"}, nil
		}
		p.opts.Logger.Info("using candidate plan", "node", n.ID, "subtasks", len(n.Info.CandidatePlan))
		return p.outcome(n.Info.CandidatePlan, nil), nil

	case cfg.ForceAtomLayer > 0 && n.Layer >= cfg.ForceAtomLayer:
		p.opts.Logger.Info("forcing atom", "node", n.ID, "layer", n.Layer, "force_atom_layer", cfg.ForceAtomLayer)
		return Outcome{Result: "[]", Detail: map[string]string{"atom_result": prompt.AtomicVerdict}}, nil
	}

	j, err := p.judge(ctx, call)
	if err != nil {
		return Outcome{}, err
	}
	detail := map[string]string{"atom_think": j.think, "atom_result": j.verdict}
	out := Outcome{CandidateThink: j.think}
	if j.goal != "" {
		out.Goal = j.goal
		detail["update_result"] = j.goal
	}
	if j.verdict == prompt.AtomicVerdict {
		out.Result = "[]"
		out.Detail = detail
		return out, nil
	}

	// The planner sees the refined goal and the judgement's reasoning.
	planned := *n
	planned.Info.CandidateThink = j.think
	if j.goal != "" {
		planned.Info.Goal = j.goal
	}
	descs, think, err := p.plan(ctx, Call{Node: &planned, Memory: call.Memory})
	if err != nil {
		return Outcome{}, err
	}
	detail["plan_think"] = think
	planOut := p.outcome(descs, detail)
	planOut.Goal = out.Goal
	planOut.CandidateThink = out.CandidateThink
	return planOut, nil
}

func (p *Planner) outcome(descs []task.Descriptor, detail map[string]string) Outcome {
	b, err := json.Marshal(descs)
	if err != nil {
		b = []byte("[]")
	}
	return Outcome{Result: string(b), Plan: descs, Detail: detail}
}

// refineAtom rewrites the goal of an all-atom task from its dependencies.
func (p *Planner) refineAtom(ctx context.Context, call Call) (string, error) {
	role := prompt.RoleUpdate
	if call.Node.Info.TaskType == core.TaskTypeSearch {
		role = prompt.RoleSearchUpdate
	}
	data, err := p.promptData(call, false)
	if err != nil {
		return "", err
	}
	text, err := p.ask(ctx, role, data, p.cfgFor(call.Node).PlanTemperature, retry.Attempt{})
	if err != nil {
		return "", err
	}
	return flattenGoal(prompt.Tag(text, prompt.TagGoalUpdate)), nil
}

func flattenGoal(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "; ")
}

// judge asks whether the task is atomic until the answer is one of the two
// verdicts. An answer that never becomes valid counts as complex.
func (p *Planner) judge(ctx context.Context, call Call) (atomJudgement, error) {
	n := call.Node
	cfg := p.cfgFor(n)
	role := prompt.RoleAtom
	if cfg.UpdateOnAtom && len(n.Parents) > 0 {
		role = prompt.RoleAtomUpdate
	}
	data, err := p.promptData(call, false)
	if err != nil {
		return atomJudgement{}, err
	}

	opts := retry.Options{Attempts: p.opts.Retry.Atom, OnRetry: p.retryLogger("atom", n.ID)}
	j, err := retry.Until(ctx, opts, func(ctx context.Context, a retry.Attempt) (atomJudgement, error) {
		text, err := p.ask(ctx, role, data, cfg.PlanTemperature, a)
		if err != nil {
			return atomJudgement{}, err
		}
		return atomJudgement{
			think:   strings.TrimSpace(prompt.Tag(text, prompt.TagThink)),
			verdict: strings.TrimSpace(prompt.Tag(text, prompt.TagAtom)),
			goal:    flattenGoal(prompt.Tag(text, prompt.TagGoalUpdate)),
		}, nil
	}, func(j atomJudgement) bool {
		return j.verdict == prompt.AtomicVerdict || j.verdict == prompt.ComplexVerdict
	})
	if err != nil {
		if !retry.IsRejected(err) {
			return atomJudgement{}, err
		}
		p.opts.Logger.Error("atom judgement failed, planning anyway", "node", n.ID, "verdict", j.verdict)
		j.verdict = prompt.ComplexVerdict
	}
	return j, nil
}

// plan asks for a decomposition until one parses.
func (p *Planner) plan(ctx context.Context, call Call) ([]task.Descriptor, string, error) {
	n := call.Node
	data, err := p.promptData(call, false)
	if err != nil {
		return nil, "", err
	}
	var think string
	opts := retry.Options{Attempts: p.opts.Retry.Plan, OnRetry: p.retryLogger("plan", n.ID)}
	descs, err := retry.Do(ctx, opts, func(ctx context.Context, a retry.Attempt) ([]task.Descriptor, error) {
		text, err := p.ask(ctx, prompt.RolePlan, data, p.cfgFor(n).PlanTemperature, a)
		if err != nil {
			return nil, err
		}
		think = strings.TrimSpace(prompt.Tag(text, prompt.TagThink))
		return parsePlan(text)
	})
	if err != nil {
		if !errors.Is(err, retry.ErrExhausted) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("plan %s: %w: %w", n.ID, core.ErrPlanParse, err)
	}
	return descs, think, nil
}

// parsePlan reads sub_tasks from the <result> block, falling back to the
// whole answer when the block is missing or malformed.
func parsePlan(text string) ([]task.Descriptor, error) {
	source := strings.TrimSpace(prompt.Tag(text, prompt.TagResult))
	if source == "" {
		source = text
	}
	descs, err := prompt.SubTasks(source)
	if err == nil {
		return descs, nil
	}
	if source != text {
		if descs, err2 := prompt.SubTasks(text); err2 == nil {
			return descs, nil
		}
	}
	return nil, err
}
