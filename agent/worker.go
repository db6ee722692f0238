package agent

import (
	"context"

	"github.com/zhiyu/hypergen/model"
)

// Worker is the standard Capability: a planner, executor, aggregator and
// updater sharing one model and configuration, with pass-through reflection.
type Worker struct {
	PassThrough

	Planner    *Planner
	Executor   *Executor
	Aggregator *Aggregator
	Updater    *Updater
}

var _ Capability = (*Worker)(nil)

// New builds a Worker.
func New(llm model.Model, optFns ...func(o *Options)) *Worker {
	e := newEnv(llm, optFns...)
	return &Worker{
		Planner:    &Planner{env: e},
		Executor:   newExecutor(e),
		Aggregator: &Aggregator{env: e},
		Updater:    &Updater{env: e},
	}
}

// Plan implements Capability.
func (w *Worker) Plan(ctx context.Context, call Call) (Outcome, error) {
	return w.Planner.Plan(ctx, call)
}

// Execute implements Capability.
func (w *Worker) Execute(ctx context.Context, call Call) (Outcome, error) {
	return w.Executor.Execute(ctx, call)
}

// Update implements Capability.
func (w *Worker) Update(ctx context.Context, call Call) (Outcome, error) {
	return w.Updater.Update(ctx, call)
}

// FinalAggregate implements Capability.
func (w *Worker) FinalAggregate(ctx context.Context, call Call) (Outcome, error) {
	return w.Aggregator.FinalAggregate(ctx, call)
}
