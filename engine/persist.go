package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/memory"
	"github.com/zhiyu/hypergen/task"
)

// Artifact names written under the run id.
const (
	ArtifactNodes   = "nodes.json"
	ArtifactTree    = "tree.json"
	ArtifactArticle = "article.txt"
	ArtifactMemory  = "memory.jsonl"
	ArtifactResult  = "result.txt"
	ArtifactDone    = "done"
)

// persist writes the full state of the run. Every file is a complete
// snapshot, never a diff.
func (e *Engine) persist(ctx context.Context) error {
	nodes, err := json.MarshalIndent(e.tree.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	arena, err := json.Marshal(e.tree)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	var mem bytes.Buffer
	if err := e.mem.Save(&mem); err != nil {
		return err
	}

	for _, f := range []struct {
		name string
		data []byte
	}{
		{ArtifactNodes, nodes},
		{ArtifactTree, arena},
		{ArtifactArticle, []byte(e.mem.Article())},
		{ArtifactMemory, mem.Bytes()},
	} {
		if err := e.artifacts.Put(ctx, e.runID, f.name, f.data); err != nil {
			return fmt.Errorf("persist %s: %w", f.name, err)
		}
	}
	return nil
}

func (e *Engine) persistResult(ctx context.Context, result string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.persist(ctx); err != nil {
		return err
	}
	// Unescaped: newlines inside the article stay newlines.
	if err := e.artifacts.Put(ctx, e.runID, ArtifactResult, []byte(result+"\n")); err != nil {
		return fmt.Errorf("persist %s: %w", ArtifactResult, err)
	}
	if err := e.artifacts.Put(ctx, e.runID, ArtifactDone, []byte{}); err != nil {
		return fmt.Errorf("persist %s: %w", ArtifactDone, err)
	}
	return nil
}

func load(ctx context.Context, store core.ArtifactStore, runID string) (*task.Tree, *memory.Memory, error) {
	arena, err := store.Get(ctx, runID, ArtifactTree)
	if err != nil {
		return nil, nil, err
	}
	tree, err := task.Restore(arena)
	if err != nil {
		return nil, nil, err
	}
	data, err := store.Get(ctx, runID, ArtifactMemory)
	if err != nil {
		return nil, nil, err
	}
	mem, err := memory.Load(tree, bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return tree, mem, nil
}
