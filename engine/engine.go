package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhiyu/hypergen/agent"
	"github.com/zhiyu/hypergen/artifact"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/logging"
	"github.com/zhiyu/hypergen/memory"
	"github.com/zhiyu/hypergen/task"
)

// Config defines tuning parameters for the scheduler loop.
//
// Example:
//
//	cfg := Config{MaxSteps: 500}
type Config struct {
	// MaxSteps bounds the number of ticks of one run. A run that reaches the
	// bound before the root finishes ends with ErrOutOfSteps. Zero or
	// negative means DefaultConfig.MaxSteps.
	MaxSteps int
}

// DefaultConfig allows 10000 ticks.
var DefaultConfig = Config{
	MaxSteps: 10000,
}

// Terminal results recorded in place of the root's answer.
const (
	ResultStopped    = "stopped by user"
	ResultOutOfSteps = "Out of Step"
)

// Options configures an Engine instance using the functional options pattern.
//
// Default implementations are provided for every collaborator so a test can
// build an engine from a proxy alone.
type Options struct {
	// Config holds the scheduler bounds.
	Config Config

	// RunID scopes the artifacts of the run. Defaults to a random UUID.
	RunID string

	// ArtifactStore receives the per-tick snapshots and the final result.
	// Defaults to an in-memory store.
	ArtifactStore core.ArtifactStore

	// Logger receives scheduler logs. Defaults to a no-op logger.
	Logger logging.Logger

	// Metrics collects Prometheus counters. Nil disables metrics.
	Metrics *Metrics

	// Callbacks hooks into the tick lifecycle. Nil disables callbacks.
	Callbacks *CallbackManager
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := Options{Config: DefaultConfig}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.MaxSteps <= 0 {
		opts.Config.MaxSteps = DefaultConfig.MaxSteps
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return opts
}

// Engine drives one task tree to completion, one node transition per tick.
//
// Each tick the engine:
//  1. discovers the first runnable node breadth first from the root
//  2. refreshes the run memory for it
//  3. runs the action the state machine prescribes through the proxy
//  4. applies the outcome and sweeps the tree for status changes
//  5. persists the tree, the article and the memory
//
// Step, StepNode and Run serialize on an internal mutex; Stop may be called
// from any goroutine and is observed before the next tick selects a node.
type Engine struct {
	runID     string
	cfg       Config
	proxy     *agent.Proxy
	tree      *task.Tree
	mem       *memory.Memory
	artifacts core.ArtifactStore
	logger    logging.Logger
	metrics   *Metrics
	callbacks *CallbackManager

	mu      sync.Mutex
	steps   int
	stopped atomic.Bool
}

// New creates an engine for a fresh run whose root carries root.
func New(root task.Info, proxy *agent.Proxy, optFns ...func(o *Options)) *Engine {
	tree := task.NewTree(root)
	tree.Root().Status = core.StatusReady
	return newEngine(tree, memory.New(tree), proxy, buildOptions(optFns))
}

// Resume restores the run identified by Options.RunID from its persisted
// tree.json and memory.jsonl. The step count restarts at zero.
func Resume(ctx context.Context, proxy *agent.Proxy, optFns ...func(o *Options)) (*Engine, error) {
	opts := buildOptions(optFns)
	tree, mem, err := load(ctx, opts.ArtifactStore, opts.RunID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", opts.RunID, err)
	}
	return newEngine(tree, mem, proxy, opts), nil
}

func newEngine(tree *task.Tree, mem *memory.Memory, proxy *agent.Proxy, opts Options) *Engine {
	return &Engine{
		runID:     opts.RunID,
		cfg:       opts.Config,
		proxy:     proxy,
		tree:      tree,
		mem:       mem,
		artifacts: opts.ArtifactStore,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		callbacks: opts.Callbacks,
	}
}

// RunID returns the identifier the artifacts are stored under.
func (e *Engine) RunID() string { return e.runID }

// Tree returns the task tree. Callers must not mutate it while a tick runs.
func (e *Engine) Tree() *task.Tree { return e.tree }

// Memory returns the run memory.
func (e *Engine) Memory() *memory.Memory { return e.mem }

// Stop asks the engine to halt before the next tick.
func (e *Engine) Stop() { e.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (e *Engine) Stopped() bool { return e.stopped.Load() }

// Steps returns the number of ticks applied so far.
func (e *Engine) Steps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Done reports whether the root reached a silence state.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.Root().Status.IsSilence()
}

// Step applies one tick to the first runnable node. It reports done once the
// root is silence. An unfinished tree without a runnable node is a contract
// violation.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tree.Root().Status.IsSilence() {
		return true, nil
	}
	n := e.tree.NextRunnable()
	if n == nil {
		return false, fmt.Errorf("no runnable node while root is %s: %w", e.tree.Root().Status, core.ErrContract)
	}
	if err := e.act(ctx, n); err != nil {
		return false, err
	}
	return e.tree.Root().Status.IsSilence(), nil
}

// StepNode applies one tick to the node with the given instance key, which
// must be runnable.
func (e *Engine) StepNode(ctx context.Context, instanceKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.tree.Find(instanceKey)
	if err != nil {
		return err
	}
	if !n.Status.IsActivate() {
		return fmt.Errorf("node %s in %s is not runnable: %w", n.ID, n.Status, core.ErrContract)
	}
	return e.act(ctx, n)
}

func (e *Engine) act(ctx context.Context, n *task.Node) error {
	action, _, err := task.NextAction(n)
	if err != nil {
		return err
	}
	e.mem.Refresh(n)

	cbCtx := &CallbackContext{RunID: e.runID, Node: n, Action: action, Metadata: map[string]any{}}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeAction, cbCtx); err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	if action.Quiet() {
		e.logger.Debug("run action", "action", action, "node", n.Label())
	} else {
		e.logger.Info("run action", "action", action, "node", n.Label())
	}
	start := time.Now()
	out, err := e.proxy.Do(ctx, action, agent.Call{Node: n, Memory: e.mem})
	dur := time.Since(start)
	e.metrics.action(action, n.Info.TaskType, dur, err)
	if al, ok := e.logger.(logging.ActionLogger); ok {
		al.LogAction(string(action), n.ID, dur, err)
	}
	if err != nil {
		return e.fail(ctx, cbCtx, err)
	}
	cbCtx.Outcome = &out

	if out.Goal != "" {
		n.Info.Goal = out.Goal
	}
	if out.CandidateThink != "" {
		n.Info.CandidateThink = out.CandidateThink
	}
	if action == core.ActionPlan {
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnPlan, cbCtx); err != nil {
			return e.fail(ctx, cbCtx, err)
		}
		if err := e.tree.Expand(n.Ref, out.Plan); err != nil {
			return e.fail(ctx, cbCtx, err)
		}
		e.logger.Debug("expanded node", "node", n.ID, "children", n.Inner.Len())
	}
	if _, err := e.tree.Advance(n.Ref, action, task.Result{Value: out.Result, Detail: out.Detail}); err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	for _, c := range e.tree.ExamAll() {
		e.logger.Debug("status change", "node", c.Node.Label(), "from", c.From, "to", c.To)
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnStatusChange, &CallbackContext{
			RunID:    e.runID,
			Node:     c.Node,
			Change:   &c,
			Metadata: map[string]any{},
		}); err != nil {
			return e.fail(ctx, cbCtx, err)
		}
	}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterAction, cbCtx); err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	if err := e.persist(ctx); err != nil {
		return err
	}
	e.steps++
	e.metrics.tick()
	return nil
}

func (e *Engine) fail(ctx context.Context, cbCtx *CallbackContext, err error) error {
	cbCtx.Err = err
	_ = e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cbCtx)
	return fmt.Errorf("%s %s: %w", cbCtx.Action, cbCtx.Node.ID, err)
}

// Run ticks until the root finishes and returns its final result.
//
// A stop request ends the run with ResultStopped and ErrStopped; reaching
// MaxSteps ends it with ResultOutOfSteps and ErrOutOfSteps. Both terminal
// results are persisted like a normal one. Any tick error aborts the run.
func (e *Engine) Run(ctx context.Context) (string, error) {
	start := time.Now()
	e.logger.Info("run started", "run_id", e.runID, "goal", e.tree.Root().Info.Goal)
	for {
		if err := ctx.Err(); err != nil {
			e.metrics.run(outcomeFailed)
			return "", err
		}
		e.mu.Lock()
		root := e.tree.Root()
		finished := root.Status.IsSilence()
		steps := e.steps
		e.mu.Unlock()

		switch {
		case finished:
			result, _ := e.tree.FinalResult(root)
			return e.finish(ctx, outcomeFinished, result, nil, start)
		case e.Stopped():
			return e.finish(ctx, outcomeStopped, ResultStopped, core.ErrStopped, start)
		case steps >= e.cfg.MaxSteps:
			return e.finish(ctx, outcomeOutOfSteps, ResultOutOfSteps,
				fmt.Errorf("%d ticks: %w", steps, core.ErrOutOfSteps), start)
		}

		if _, err := e.Step(ctx); err != nil {
			e.metrics.run(outcomeFailed)
			e.logger.Error("run failed", "run_id", e.runID, "step", steps, "error", err)
			return "", err
		}
	}
}

func (e *Engine) finish(ctx context.Context, outcome, result string, runErr error, start time.Time) (string, error) {
	e.metrics.run(outcome)
	if err := e.persistResult(ctx, result); err != nil {
		return result, errors.Join(runErr, err)
	}
	e.logger.Info("run ended", "run_id", e.runID, "outcome", outcome, "steps", e.Steps(), "duration", time.Since(start))
	return result, runErr
}
