package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/zhiyu/hypergen/core"
)

// FSStore keeps each run's artifacts as files under <base>/<runID>/<name>.
// Writes go to a temporary file that is renamed into place, so a reader
// polling the directory never sees a half-written snapshot.
type FSStore struct {
	fs   afero.Fs
	base string
}

var _ core.ArtifactStore = (*FSStore)(nil)

// NewFSStore creates a store rooted at base on the given filesystem.
func NewFSStore(fsys afero.Fs, base string) *FSStore {
	return &FSStore{fs: fsys, base: base}
}

// NewDirStore creates a store rooted at dir on the local disk.
func NewDirStore(dir string) *FSStore {
	return NewFSStore(afero.NewOsFs(), dir)
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

func (s *FSStore) dir(runID string) string {
	if runID == "" {
		return s.base
	}
	return filepath.Join(s.base, runID)
}

// Dir returns the directory holding the run's artifacts.
func (s *FSStore) Dir(runID string) string { return s.dir(runID) }

// Put writes the artifact, replacing any previous content.
func (s *FSStore) Put(ctx context.Context, runID, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.dir(runID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

// Get reads the artifact or returns ErrNotFound.
func (s *FSStore) Get(_ context.Context, runID, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir(runID), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// List returns the sorted artifact names of the run, skipping temporary
// files and subdirectories.
func (s *FSStore) List(_ context.Context, runID string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir(runID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() || strings.HasPrefix(path.Base(fi.Name()), ".") {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the artifact or returns ErrNotFound.
func (s *FSStore) Delete(_ context.Context, runID, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.dir(runID), name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
