package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const addTimeLayout = "2006-01-02_15:04:05"

type fileRecord struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
	AddTime string          `json:"add_time"`
	Hint    string          `json:"hint,omitempty"`
}

// FileStore is an append-only JSONL cache file. The whole file is loaded at
// open; later records for a key override earlier ones. Appends are guarded
// by a process mutex and an advisory lock on <path>.lock so several
// processes can share one file.
type FileStore struct {
	path string
	mu   sync.RWMutex
	kv   map[string][]byte
	open bool
}

var _ Store = (*FileStore)(nil)

var (
	registryMu sync.Mutex
	registry   = map[string]*FileStore{}
)

// OpenFile returns the FileStore for path, sharing one instance per path
// within the process.
func OpenFile(path string) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[abs]; ok && existing.isOpen() {
		return existing, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	store := &FileStore{path: abs, kv: map[string][]byte{}, open: true}
	if err := store.load(); err != nil {
		return nil, err
	}
	registry[abs] = store
	return store, nil
}

func (f *FileStore) isOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.open
}

func (f *FileStore) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open cache %s: %w", f.path, err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn trailing write from a crashed process; skip it.
			continue
		}
		f.kv[rec.Key] = append([]byte(nil), rec.Value...)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read cache %s: %w", f.path, err)
	}
	return nil
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.open {
		return nil, false, ErrClosed
	}
	v, ok := f.kv[key]
	return v, ok, nil
}

// Put implements Store.
func (f *FileStore) Put(_ context.Context, key string, value []byte, hint string) error {
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %s is not JSON", key)
	}
	rec := fileRecord{Key: key, Value: value, AddTime: time.Now().Format(addTimeLayout), Hint: hint}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrClosed
	}
	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", f.path, err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		file.Close()
		return fmt.Errorf("append cache %s: %w", f.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close cache %s: %w", f.path, err)
	}
	f.kv[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of distinct keys.
func (f *FileStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.kv)
}

// Close releases the store; OpenFile on the same path afterwards reloads it.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}
