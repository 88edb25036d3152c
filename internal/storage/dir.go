package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// dirStore carries everything the two directory-based backends share: the
// root layout (<name>.<ext> next to <name>_header.json), JSON document
// handling, sidecar persistence and existence/override policy. The variants
// plug in only the table body codec.
//
// A root that names a bare file (it has an extension) is treated as a
// single-table location: artifacts live in the file's directory and the
// default table name derives from the file stem.
type dirStore struct {
	root        string
	dir         string
	ext         string // table file extension, with dot
	backend     string // for diagnostics
	defaultName string // non-empty when root names a bare file

	saveTable func(t *table.Table, path string) error
	loadTable func(tablePath string, hdr schema.Header) (*table.Table, error)
}

func newDirStore(root, ext, backend string) dirStore {
	s := dirStore{root: root, dir: root, ext: ext, backend: backend}
	if fileExt := filepath.Ext(root); fileExt != "" {
		s.dir = filepath.Dir(root)
		s.defaultName = strings.TrimSuffix(filepath.Base(root), fileExt)
	}
	return s
}

// RootPath returns the configured root (directory or bare file path).
func (s *dirStore) RootPath() string { return s.root }

func (s *dirStore) resolveName(name string) string {
	if name == "" {
		if s.defaultName != "" {
			return s.defaultName
		}
		return "data"
	}
	return name
}

func (s *dirStore) jsonPath(name string) string {
	return filepath.Join(s.dir, s.resolveName(name)+".json")
}

func (s *dirStore) tablePath(name string) string {
	return filepath.Join(s.dir, s.resolveName(name)+s.ext)
}

func (s *dirStore) headerPath(name string) string {
	return filepath.Join(s.dir, s.resolveName(name)+"_header.json")
}

// WriteJSON persists data as a plain UTF-8 JSON file, creating parent
// directories as needed.
func (s *dirStore) WriteJSON(ctx context.Context, data map[string]any, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.jsonPath(name)
	if fileExists(path) && !override {
		return fmt.Errorf("%s: document %q in %s: %w", s.backend, name, s.dir, ErrExists)
	}

	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: encoding document %q: %w", s.backend, name, err)
	}
	if err := writeFileAtomic(path, buf); err != nil {
		return fmt.Errorf("%s: writing document %q: %w", s.backend, name, err)
	}

	slog.Debug("document written", "backend", s.backend, "name", name, "bytes", len(buf))
	return nil
}

// ReadJSON loads a document written by WriteJSON.
func (s *dirStore) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(s.jsonPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: document %q in %s: %w", s.backend, name, s.dir, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading document %q: %w", s.backend, name, err)
	}

	var data map[string]any
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, fmt.Errorf("%s: decoding document %q: %w", s.backend, name, err)
	}
	return data, nil
}

// WriteTable persists the table body in the variant's format and its header
// as a sidecar. The sidecar goes first, mirroring the read path's tolerance
// for a header without a table after a crash between the two writes.
func (s *dirStore) WriteTable(ctx context.Context, tbl *table.Table, hdr schema.Header, name string, override bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := schema.Validate(hdr, tbl); err != nil {
		return err
	}

	tablePath := s.tablePath(name)
	if fileExists(tablePath) && !override {
		return fmt.Errorf("%s: table %q in %s: %w", s.backend, s.resolveName(name), s.dir, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(tablePath), 0o755); err != nil {
		return fmt.Errorf("%s: creating %s: %w", s.backend, filepath.Dir(tablePath), err)
	}

	if err := s.writeHeader(hdr, name); err != nil {
		return err
	}
	if err := s.saveTable(tbl, tablePath); err != nil {
		return fmt.Errorf("%s: writing table %q: %w", s.backend, s.resolveName(name), err)
	}

	slog.Debug("table written",
		"backend", s.backend, "name", s.resolveName(name),
		"rows", tbl.NumRows(), "cols", tbl.NumCols())
	return nil
}

// ReadTable loads the table body and reattaches sidecar metadata. Parent
// directories are never created on read.
func (s *dirStore) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tablePath := s.tablePath(name)
	if !fileExists(tablePath) {
		return nil, fmt.Errorf("%s: table %q in %s: %w", s.backend, s.resolveName(name), s.dir, ErrNotFound)
	}

	hdr, err := s.readHeader(name)
	if err != nil {
		return nil, err
	}
	tbl, err := s.loadTable(tablePath, hdr)
	if err != nil {
		return nil, fmt.Errorf("%s: reading table %q: %w", s.backend, s.resolveName(name), err)
	}
	return tbl, nil
}

// ReadTableHeader returns (nil, nil) when no sidecar exists.
func (s *dirStore) ReadTableHeader(ctx context.Context, name string) (schema.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readHeader(name)
}

func (s *dirStore) writeHeader(hdr schema.Header, name string) error {
	if hdr == nil {
		return nil
	}
	buf, err := schema.Encode(hdr)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.headerPath(name), buf); err != nil {
		return fmt.Errorf("%s: writing header for %q: %w", s.backend, s.resolveName(name), err)
	}
	return nil
}

func (s *dirStore) readHeader(name string) (schema.Header, error) {
	buf, err := os.ReadFile(s.headerPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header for %q: %w", s.backend, s.resolveName(name), err)
	}
	return schema.Decode(buf)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeFileAtomic writes through a uniquely named temp file in the target
// directory and renames it into place, so readers in the same process never
// observe a partially written artifact.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
