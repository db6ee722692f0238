// Package memory holds the per-run shared state of a generation run and
// assembles the context each node sees before it acts.
//
// Memory owns the "article so far" (appended to by composition execute
// actions in completion order) and the accumulated search results, each tagged
// with a run-global citation index. Context assembly walks a node's
// same-graph dependency chain and its ancestors' predecessors through a
// read-only InfoNode cache refreshed before every action.
package memory
