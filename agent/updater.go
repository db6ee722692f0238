package agent

import (
	"context"

	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
)

// Updater runs when a task's dependencies have finished. With UpdateGoal
// set for the task type it lets the model rewrite the task's own goal from
// their results; it never touches other nodes.
type Updater struct {
	*env
}

// NewUpdater creates an updater.
func NewUpdater(llm model.Model, optFns ...func(o *Options)) *Updater {
	return &Updater{env: newEnv(llm, optFns...)}
}

// Update implements the update action.
func (u *Updater) Update(ctx context.Context, call Call) (Outcome, error) {
	n := call.Node
	cfg := u.cfgFor(n)
	if !cfg.UpdateGoal || len(n.Parents) == 0 {
		return Outcome{Result: n.Info.Goal}, nil
	}
	data, err := u.promptData(call, false)
	if err != nil {
		return Outcome{}, err
	}
	text, err := u.ask(ctx, prompt.RoleUpdate, data, cfg.PlanTemperature, retry.Attempt{})
	if err != nil {
		return Outcome{}, err
	}
	goal := flattenGoal(prompt.Tag(text, prompt.TagGoalUpdate))
	if goal == "" || goal == n.Info.Goal {
		return Outcome{Result: n.Info.Goal}, nil
	}
	u.opts.Logger.Info("goal updated", "node", n.ID, "from", n.Info.Goal, "to", goal)
	return Outcome{Result: goal, Goal: goal}, nil
}

// PassThrough serves the reflection hooks without doing anything.
type PassThrough struct{}

// PriorReflect implements Capability.
func (PassThrough) PriorReflect(context.Context, Call) (Outcome, error) { return Outcome{}, nil }

// PlanningPostReflect implements Capability.
func (PassThrough) PlanningPostReflect(context.Context, Call) (Outcome, error) {
	return Outcome{}, nil
}

// ExecutePostReflect implements Capability.
func (PassThrough) ExecutePostReflect(context.Context, Call) (Outcome, error) {
	return Outcome{}, nil
}
