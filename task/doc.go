// Package task holds the recursive task tree: TaskNodes, the per-plan Graphs
// that order sibling nodes, and the state machine that drives each node from
// NOT_READY to FINISH.
//
// # Arena
//
// Nodes live in a flat arena owned by a Tree and refer to each other through
// Ref handles (outer node, dependency parents, graph members) instead of live
// pointers. The tree therefore has no reference cycles and serializes directly
// for crash recovery (MarshalJSON / Restore) alongside the recursive,
// self-contained Snapshot consumed by progress UIs.
//
// # Topology
//
// Planning is the only operation that mutates topology. Tree.Expand turns a
// flat list of Descriptors into a node's child Graph in four named passes:
// normalize, order by creation, inject implicit sequencing, resolve. A cycle
// or duplicate id aborts the expansion with core.ErrCycle or
// core.ErrDuplicateNode and leaves the tree untouched.
//
// # State machine
//
// NextAction reports the single transition the scheduler must run for an
// activate-state node; Tree.Advance records its result and moves the status.
// Tree.ExamAll re-evaluates the suspend-state predicates bottom-up across the
// whole tree and is idempotent.
package task
