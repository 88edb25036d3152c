package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	bolt "go.etcd.io/bbolt"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// ContainerStore keeps every artifact inside one hierarchical container
// file (bbolt). Each table occupies a group <root>/<name> with two entries,
// "table" (binary block) and "header" (JSON blob); free-standing documents
// live under <root>/json/<name>.
//
// Structural restriction, unlike the other backends: the write path fails
// with ErrExists whenever the target group already exists. There is no
// implicit override; override=true performs an explicit pre-delete of the
// whole group before rewriting, and says so at warn level.
//
// Format limitation: the container's table block has no mask channel for
// integer columns. Before writing, every nullable-integer column is widened
// to float64 with NaN at masked rows. The original dtype is not persisted,
// so round-tripping such a table is lossy for dtype identity (and for exact
// values beyond 2^53), though the caller-supplied header keeps the original
// dtype string as an advisory record.
type ContainerStore struct {
	path      string
	rootGroup string
}

const (
	containerTableKey  = "table"
	containerHeaderKey = "header"
	containerJSONGroup = "json"
)

// NewContainer returns a container backend bound to the given file.
// rootGroup namespaces all artifacts within the file; empty selects "stardb".
func NewContainer(path, rootGroup string) *ContainerStore {
	if rootGroup == "" {
		rootGroup = "stardb"
	}
	return &ContainerStore{path: path, rootGroup: rootGroup}
}

// RootPath returns the container file path.
func (s *ContainerStore) RootPath() string { return s.path }

func (s *ContainerStore) update(fn func(root *bolt.Bucket) error) error {
	db, err := bolt.Open(s.path, 0o644, nil)
	if err != nil {
		return fmt.Errorf("container: opening %s: %w", s.path, err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(s.rootGroup))
		if err != nil {
			return err
		}
		return fn(root)
	})
}

func (s *ContainerStore) view(fn func(root *bolt.Bucket) error) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("container: %s: %w", s.path, ErrNotFound)
	}
	db, err := bolt.Open(s.path, 0o644, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("container: opening %s: %w", s.path, err)
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(s.rootGroup))
		if root == nil {
			return fmt.Errorf("container: group %q: %w", s.rootGroup, ErrNotFound)
		}
		return fn(root)
	})
}

// WriteJSON stores data as a dataset under the json group.
func (s *ContainerStore) WriteJSON(ctx context.Context, data map[string]any, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("container: encoding document %q: %w", name, err)
	}

	return s.update(func(root *bolt.Bucket) error {
		group, err := root.CreateBucketIfNotExists([]byte(containerJSONGroup))
		if err != nil {
			return err
		}
		if group.Get([]byte(name)) != nil && !override {
			return fmt.Errorf("container: document %q in %s: %w", name, s.path, ErrExists)
		}
		return group.Put([]byte(name), buf)
	})
}

// ReadJSON loads a dataset stored by WriteJSON.
func (s *ContainerStore) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data map[string]any
	err := s.view(func(root *bolt.Bucket) error {
		group := root.Bucket([]byte(containerJSONGroup))
		if group == nil {
			return fmt.Errorf("container: document %q in %s: %w", name, s.path, ErrNotFound)
		}
		buf := group.Get([]byte(name))
		if buf == nil {
			return fmt.Errorf("container: document %q in %s: %w", name, s.path, ErrNotFound)
		}
		return json.Unmarshal(buf, &data)
	})
	return data, err
}

// WriteTable stores the table block and header JSON under one group.
func (s *ContainerStore) WriteTable(ctx context.Context, tbl *table.Table, hdr schema.Header, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := schema.Validate(hdr, tbl); err != nil {
		return err
	}

	prepared := widenMaskedInts(tbl)
	block, err := encodeTable(prepared)
	if err != nil {
		return fmt.Errorf("container: encoding table %q: %w", name, err)
	}

	var headerJSON []byte
	if hdr != nil {
		if headerJSON, err = schema.Encode(hdr); err != nil {
			return err
		}
	}

	return s.update(func(root *bolt.Bucket) error {
		if root.Bucket([]byte(name)) != nil {
			if !override {
				return fmt.Errorf("container: group %q in %s: %w", name, s.path, ErrExists)
			}
			slog.Warn("overriding container group: existing group is deleted before rewrite",
				"path", s.path, "name", name)
			if err := root.DeleteBucket([]byte(name)); err != nil {
				return err
			}
		}

		group, err := root.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		if headerJSON != nil {
			if err := group.Put([]byte(containerHeaderKey), headerJSON); err != nil {
				return err
			}
		}
		return group.Put([]byte(containerTableKey), block)
	})
}

// ReadTable loads a table group, reattaching stored header metadata.
func (s *ContainerStore) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tbl *table.Table
	err := s.view(func(root *bolt.Bucket) error {
		group := root.Bucket([]byte(name))
		if group == nil {
			return fmt.Errorf("container: table %q in %s: %w", name, s.path, ErrNotFound)
		}
		block := group.Get([]byte(containerTableKey))
		if block == nil {
			return fmt.Errorf("container: table %q in %s: %w", name, s.path, ErrNotFound)
		}

		var err error
		if tbl, err = decodeTable(block); err != nil {
			return fmt.Errorf("container: table %q: %w", name, err)
		}
		if headerJSON := group.Get([]byte(containerHeaderKey)); headerJSON != nil {
			hdr, err := schema.Decode(headerJSON)
			if err != nil {
				return err
			}
			// A widened integer column stays floating even when the
			// stored header names an integer dtype: NaN rows have no
			// integer representation, and Apply never narrows.
			hdr.Apply(tbl)
		}
		return nil
	})
	return tbl, err
}

// ReadTableHeader returns (nil, nil) when the group has no stored header.
func (s *ContainerStore) ReadTableHeader(ctx context.Context, name string) (schema.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hdr schema.Header
	err := s.view(func(root *bolt.Bucket) error {
		group := root.Bucket([]byte(name))
		if group == nil {
			return nil
		}
		headerJSON := group.Get([]byte(containerHeaderKey))
		if headerJSON == nil {
			return nil
		}
		var err error
		hdr, err = schema.Decode(headerJSON)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hdr, nil
}

// widenMaskedInts rewrites every nullable-integer column as float64 with
// NaN at masked rows, the one shape the container block can hold. Values
// beyond 2^53 lose exactness; that trade-off is inherent to the format.
func widenMaskedInts(t *table.Table) *table.Table {
	var widened []string
	out := table.New()
	for _, name := range t.Names() {
		col := t.Column(name)
		if col.DType != table.Int64 || !col.HasMask() {
			out.MustAddColumn(name, col.Clone())
			continue
		}

		floats := make([]float64, len(col.Ints))
		for i, v := range col.Ints {
			if col.Masked(i) {
				floats[i] = math.NaN()
			} else {
				floats[i] = float64(v)
			}
		}
		repl := table.NewFloat64(floats).WithUnit(col.Unit)
		repl.Description = col.Description
		out.MustAddColumn(name, repl)
		widened = append(widened, name)
	}

	if len(widened) > 0 {
		slog.Warn("nullable integer columns widened to float64 for container storage",
			"columns", widened)
	}
	return out
}
