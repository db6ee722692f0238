package core

// Action names a transition the scheduler asks a node to perform. The string
// value is also the key under which the node records the action's result.
type Action string

const (
	ActionPlan                Action = "plan"
	ActionExecute             Action = "execute"
	ActionUpdate              Action = "update"
	ActionFinalAggregate      Action = "finalAggregate"
	ActionPriorReflect        Action = "priorReflect"
	ActionPlanningPostReflect Action = "planningPostReflect"
	ActionExecutePostReflect  Action = "executePostReflect"
)

// Actions lists every action; a capability proxy must serve all of them.
var Actions = []Action{
	ActionPlan,
	ActionExecute,
	ActionUpdate,
	ActionFinalAggregate,
	ActionPriorReflect,
	ActionPlanningPostReflect,
	ActionExecutePostReflect,
}

// Quiet reports whether the action is a bookkeeping hook that rarely changes
// observable output. The engine logs these at debug level.
func (a Action) Quiet() bool {
	switch a {
	case ActionUpdate, ActionPriorReflect, ActionPlanningPostReflect, ActionExecutePostReflect:
		return true
	default:
		return false
	}
}
