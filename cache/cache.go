// Package cache provides the content-addressed result cache shared by model
// calls and search requests. Entries are keyed by a hash of the call
// arguments, so re-running an item with the same inputs replays earlier
// answers instead of calling the backend again.
package cache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Store is a key/value backend for cached results.
type Store interface {
	// Get returns the raw value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key. hint is a human readable description of
	// the arguments; backends may drop it.
	Put(ctx context.Context, key string, value []byte, hint string) error
	Close() error
}

// Key hashes args together with name into a stable hex key. args are
// rendered as JSON with sorted object keys so that field order does not
// matter.
func Key(name string, args any) (string, error) {
	canon, err := canonical(name, args)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonical(name string, args any) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode cache args: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode cache args: %w", err)
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		obj = map[string]any{"args": generic}
	}
	obj["cache_name"] = name

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, fmt.Errorf("encode cache key: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

const maxHint = 2000

// Scope is a named view over a Store. Values are JSON encoded.
type Scope struct {
	store Store
	name  string
}

// NewScope binds name to store. A nil store yields a scope that never hits.
func NewScope(store Store, name string) *Scope {
	return &Scope{store: store, name: name}
}

// Name returns the scope name mixed into every key.
func (s *Scope) Name() string { return s.name }

// Lookup decodes the cached value for args into out and reports a hit.
func (s *Scope) Lookup(ctx context.Context, args, out any) (bool, error) {
	if s == nil || s.store == nil {
		return false, nil
	}
	key, err := Key(s.name, args)
	if err != nil {
		return false, err
	}
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", s.name, err)
	}
	return true, nil
}

// Save stores v as the result for args. Empty values are not stored, so a
// failed call is never replayed as a hit.
func (s *Scope) Save(ctx context.Context, args, v any) error {
	if s == nil || s.store == nil || empty(v) {
		return nil
	}
	canon, err := canonical(s.name, args)
	if err != nil {
		return err
	}
	sum := md5.Sum(canon)
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s result: %w", s.name, err)
	}
	hint := string(canon)
	if len(hint) > maxHint {
		hint = hint[:maxHint]
	}
	return s.store.Put(ctx, hex.EncodeToString(sum[:]), raw, hint)
}

func empty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return empty(rv.Elem().Interface())
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache closed")
