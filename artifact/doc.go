// Package artifact contains concrete implementations of core.ArtifactStore,
// the store a run writes its outputs to: the node tree snapshot, the arena
// form used for resuming, the article so far, the memory log, the final
// result and the done marker.
//
// The canonical interface lives in the core package to avoid dependency
// cycles. Callers should depend on it rather than on the concrete types so
// a directory on disk and the in-memory store can be swapped in tests.
package artifact
