package core

import "errors"

var (
	// ErrCycle marks a plan whose dependencies cannot be topologically ordered.
	ErrCycle = errors.New("dependency cycle in task graph")
	// ErrDuplicateNode marks a plan that declares the same id twice.
	ErrDuplicateNode = errors.New("duplicate node id in task graph")
	// ErrPlanParse marks planning output that stayed unparseable after the retry budget.
	ErrPlanParse = errors.New("unparseable plan")
	// ErrContract marks an inconsistency between the state machine and the tree.
	ErrContract = errors.New("scheduler contract violation")
	// ErrNodeNotFound marks a reference to a node that is not in the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrOutOfSteps marks a run that hit the scheduler tick ceiling.
	ErrOutOfSteps = errors.New("out of steps")
	// ErrStopped marks a run halted by an external stop request.
	ErrStopped = errors.New("stopped by user")
	// ErrBudgetExceeded marks a run that spent its model call allowance.
	ErrBudgetExceeded = errors.New("model call budget exceeded")
)

// IsFatal reports whether err must abort the current item run rather than
// degrade to a best-effort result.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrDuplicateNode) ||
		errors.Is(err, ErrPlanParse) ||
		errors.Is(err, ErrContract) ||
		errors.Is(err, ErrNodeNotFound)
}
