package engine

import (
	"context"
	"fmt"

	"github.com/zhiyu/hypergen/agent"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// CallbackType defines the lifecycle points of a scheduler tick where
// callbacks can be executed.
//
// Available callback types:
//   - BeforeAction/AfterAction: around the capability call of one node action
//   - OnPlan: after a plan action, before its sub-tasks are added to the tree
//   - OnStatusChange: for every transition made by the exam sweep
//   - OnError: when an action fails
//
// Callbacks are executed synchronously and can stop a tick by returning an
// error, which the engine treats like a failed action.
type CallbackType string

const (
	// CallbackBeforeAction is triggered before a node action runs.
	CallbackBeforeAction CallbackType = "before_action"

	// CallbackAfterAction is triggered after the outcome of an action has
	// been applied to the tree.
	CallbackAfterAction CallbackType = "after_action"

	// CallbackOnPlan is triggered with the plan outcome before expansion.
	CallbackOnPlan CallbackType = "on_plan"

	// CallbackOnStatusChange is triggered for each exam-sweep transition.
	CallbackOnStatusChange CallbackType = "on_status_change"

	// CallbackOnError is triggered when an action fails. Its return value
	// is ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect about the tick.
type CallbackContext struct {
	// RunID identifies the engine run.
	RunID string

	// Node is the node being acted on, or the node whose status changed.
	Node *task.Node

	// Action is the action being run. Empty for status changes.
	Action core.Action

	// Outcome is set once the capability returned.
	Outcome *agent.Outcome

	// Change is set for CallbackOnStatusChange.
	Change *task.Change

	// Err is set for CallbackOnError.
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for tick lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. Returning an error fails the tick.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	trace := NewFunctionCallback(
//	    CallbackBeforeAction,
//	    func(ctx context.Context, c *CallbackContext) error {
//	        log.Printf("%s on %s", c.Action, c.Node.ID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds the registered callbacks of an engine. Callbacks run
// in registration order and the first error stops the chain.
//
// The manager is not safe for concurrent registration; register everything
// before the engine starts running.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}
	for _, callback := range cm.callbacks[callbackType] {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback forwards a one-line description of every callback it sees
// to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnStatusChange, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the tick event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil || callbackCtx.Node == nil {
		return nil
	}
	var message string
	switch {
	case callbackCtx.Change != nil:
		message = fmt.Sprintf("[%s] %s: %s -> %s", c.callbackType, callbackCtx.Node.ID, callbackCtx.Change.From, callbackCtx.Change.To)
	case callbackCtx.Err != nil:
		message = fmt.Sprintf("[%s] %s on %s: %v", c.callbackType, callbackCtx.Action, callbackCtx.Node.ID, callbackCtx.Err)
	default:
		message = fmt.Sprintf("[%s] %s on %s", c.callbackType, callbackCtx.Action, callbackCtx.Node.Label())
	}
	c.logger(message)
	return nil
}

// PlanValidationCallback rejects plans before they are added to the tree.
//
// Example:
//
//	maxWidth := func(plan []task.Descriptor) error {
//	    if len(plan) > 12 {
//	        return errors.New("plan too wide")
//	    }
//	    return nil
//	}
//	callback := NewPlanValidationCallback(maxWidth)
type PlanValidationCallback struct {
	validator func(plan []task.Descriptor) error
}

// NewPlanValidationCallback creates a new plan validation callback.
func NewPlanValidationCallback(validator func(plan []task.Descriptor) error) *PlanValidationCallback {
	return &PlanValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackOnPlan).
func (c *PlanValidationCallback) Type() CallbackType {
	return CallbackOnPlan
}

// Execute validates the plan carried by the outcome.
func (c *PlanValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Outcome != nil {
		return c.validator(callbackCtx.Outcome.Plan)
	}
	return nil
}
