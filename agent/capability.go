package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/memory"
	"github.com/zhiyu/hypergen/task"
)

// Call is the input of one action: the node it runs for and the run memory.
// Memory must have been refreshed for Node.
type Call struct {
	Node   *task.Node
	Memory *memory.Memory
}

// Outcome is what an action produced. The engine records Result and Detail
// on the node and applies the other fields before advancing it.
type Outcome struct {
	Result string
	Detail map[string]string

	// Plan is the decomposition a plan action chose. Empty means atomic.
	Plan []task.Descriptor
	// Goal, when set, replaces the node's goal.
	Goal string
	// CandidateThink, when set, is stored on the node for later prompts.
	CandidateThink string
}

// Capability serves every action of the task state machine.
type Capability interface {
	Plan(ctx context.Context, call Call) (Outcome, error)
	Execute(ctx context.Context, call Call) (Outcome, error)
	Update(ctx context.Context, call Call) (Outcome, error)
	FinalAggregate(ctx context.Context, call Call) (Outcome, error)
	PriorReflect(ctx context.Context, call Call) (Outcome, error)
	PlanningPostReflect(ctx context.Context, call Call) (Outcome, error)
	ExecutePostReflect(ctx context.Context, call Call) (Outcome, error)
}

// Handler runs one action.
type Handler func(ctx context.Context, call Call) (Outcome, error)

// Handlers maps every action to the matching Capability method.
func Handlers(c Capability) map[core.Action]Handler {
	return map[core.Action]Handler{
		core.ActionPlan:                c.Plan,
		core.ActionExecute:             c.Execute,
		core.ActionUpdate:              c.Update,
		core.ActionFinalAggregate:      c.FinalAggregate,
		core.ActionPriorReflect:        c.PriorReflect,
		core.ActionPlanningPostReflect: c.PlanningPostReflect,
		core.ActionExecutePostReflect:  c.ExecutePostReflect,
	}
}

type override struct {
	taskType core.TaskType
	action   core.Action
}

// Proxy dispatches actions to handlers. Handlers registered for a specific
// task type take precedence over the default capability.
type Proxy struct {
	mu        sync.RWMutex
	handlers  map[core.Action]Handler
	overrides map[override]Handler
}

// NewProxy registers every action of c.
func NewProxy(c Capability) *Proxy {
	p := &Proxy{overrides: map[override]Handler{}}
	if c != nil {
		p.handlers = Handlers(c)
	} else {
		p.handlers = map[core.Action]Handler{}
	}
	return p
}

// Handle replaces the handler of action for one task type.
func (p *Proxy) Handle(tt core.TaskType, action core.Action, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[override{tt, action}] = h
}

// Do runs action for call.Node. An action without a handler violates the
// scheduler contract.
func (p *Proxy) Do(ctx context.Context, action core.Action, call Call) (Outcome, error) {
	if call.Node == nil || call.Memory == nil {
		return Outcome{}, fmt.Errorf("%s: call without node or memory: %w", action, core.ErrContract)
	}
	p.mu.RLock()
	h, ok := p.overrides[override{call.Node.Info.TaskType, action}]
	if !ok || h == nil {
		h, ok = p.handlers[action]
	}
	p.mu.RUnlock()
	if !ok || h == nil {
		return Outcome{}, fmt.Errorf("no handler for %s on %s: %w", action, call.Node.Info.TaskType, core.ErrContract)
	}
	return h(ctx, call)
}
