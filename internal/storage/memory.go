package storage

import (
	"context"
	"fmt"
	"sync"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// SharedStore is the associative store behind MemoryStore instances. It is
// safe for concurrent use; values are deep-copied on every write and read so
// no caller ever holds a reference into the store.
//
// One process-wide SharedStore exists as an explicit default (see
// DefaultSharedStore) so that independently constructed MemoryStores with
// the same namespace observe each other's artifacts, matching the on-disk
// backends' behavior for a shared root.
type SharedStore struct {
	mu   sync.RWMutex
	data map[memKey]any
}

type memKey struct {
	namespace string
	kind      string // "table", "header" or "json"
	name      string
}

// NewSharedStore returns an empty shared store.
func NewSharedStore() *SharedStore {
	return &SharedStore{data: make(map[memKey]any)}
}

// Reset drops every artifact in every namespace. Intended for tests.
func (s *SharedStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[memKey]any)
}

var defaultShared = NewSharedStore()

// DefaultSharedStore returns the process-wide store used by NewMemory.
func DefaultSharedStore() *SharedStore { return defaultShared }

// MemoryStore is the zero-I/O backend: artifacts live in a SharedStore,
// partitioned by an instance namespace. Two instances see each other's
// artifacts only when given the same namespace and shared store.
type MemoryStore struct {
	shared    *SharedStore
	namespace string
}

// NewMemory returns an in-memory backend over the process-wide shared store.
// An empty namespace selects "default".
func NewMemory(namespace string) *MemoryStore {
	return NewMemoryWith(defaultShared, namespace)
}

// NewMemoryWith returns an in-memory backend over an explicit shared store,
// for tests that need full isolation from the process-wide one.
func NewMemoryWith(shared *SharedStore, namespace string) *MemoryStore {
	if namespace == "" {
		namespace = "default"
	}
	return &MemoryStore{shared: shared, namespace: namespace}
}

// RootPath returns a synthetic key identifying the namespace.
func (s *MemoryStore) RootPath() string {
	return "memory://" + s.namespace
}

func (s *MemoryStore) key(kind, name string) memKey {
	return memKey{namespace: s.namespace, kind: kind, name: name}
}

// WriteJSON stores a deep copy of data.
func (s *MemoryStore) WriteJSON(ctx context.Context, data map[string]any, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	key := s.key("json", name)
	if _, ok := s.shared.data[key]; ok && !override {
		return fmt.Errorf("memory: document %q in %s: %w", name, s.namespace, ErrExists)
	}
	s.shared.data[key] = deepCopyValue(data)
	return nil
}

// ReadJSON returns a deep copy of the stored document.
func (s *MemoryStore) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	v, ok := s.shared.data[s.key("json", name)]
	if !ok {
		return nil, fmt.Errorf("memory: document %q in %s: %w", name, s.namespace, ErrNotFound)
	}
	return deepCopyValue(v).(map[string]any), nil
}

// WriteTable stores deep copies of the table and its header.
func (s *MemoryStore) WriteTable(ctx context.Context, tbl *table.Table, hdr schema.Header, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := schema.Validate(hdr, tbl); err != nil {
		return err
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	key := s.key("table", name)
	if _, ok := s.shared.data[key]; ok && !override {
		return fmt.Errorf("memory: table %q in %s: %w", name, s.namespace, ErrExists)
	}
	s.shared.data[key] = tbl.Clone()
	if hdr != nil {
		s.shared.data[s.key("header", name)] = hdr.Clone()
	} else {
		delete(s.shared.data, s.key("header", name))
	}
	return nil
}

// ReadTable returns a deep copy; mutating it never affects the stored table.
func (s *MemoryStore) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	v, ok := s.shared.data[s.key("table", name)]
	if !ok {
		return nil, fmt.Errorf("memory: table %q in %s: %w", name, s.namespace, ErrNotFound)
	}
	tbl := v.(*table.Table).Clone()
	if h, ok := s.shared.data[s.key("header", name)]; ok {
		h.(schema.Header).Apply(tbl)
	}
	return tbl, nil
}

// ReadTableHeader returns (nil, nil) when no header was stored.
func (s *MemoryStore) ReadTableHeader(ctx context.Context, name string) (schema.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()

	v, ok := s.shared.data[s.key("header", name)]
	if !ok {
		return nil, nil
	}
	return v.(schema.Header).Clone(), nil
}

// deepCopyValue copies the JSON-like subset of Go values: maps, slices and
// scalars. Anything else is stored as-is, which is fine for the value types
// produced by encoding/json.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
