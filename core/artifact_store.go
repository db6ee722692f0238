package core

import "context"

// ArtifactStore persists the named output files of a run (node snapshots, the
// article so far, the final result). Implementations must be safe for
// concurrent use and scope artifacts by run identifier. Put overwrites.
type ArtifactStore interface {
	Put(ctx context.Context, runID, name string, data []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
	Delete(ctx context.Context, runID, name string) error
}
