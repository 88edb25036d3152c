package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// PostgresStore conforms to the same contract over a shared database: one
// row per artifact, the table body carried as the binary columnar block and
// the header as jsonb in the same row, so a table and its metadata replace
// atomically. Useful when several processes need the same artifacts without
// sharing a filesystem.
type PostgresStore struct {
	pool *pgxpool.Pool
	root string // sanitized connection target, diagnostics only
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS stardb_artifacts (
    name       text NOT NULL,
    kind       text NOT NULL,
    payload    bytea NOT NULL,
    header     jsonb,
    updated_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (kind, name)
)`

// NewPostgres returns a Postgres-backed store over an existing pool and
// creates the artifacts table if missing. The pool's lifecycle belongs to
// the caller.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("postgres: ensuring artifacts table: %w", err)
	}
	return &PostgresStore{pool: pool, root: sanitizeConnString(pool.Config().ConnString())}, nil
}

// RootPath returns the connection target with credentials stripped.
func (s *PostgresStore) RootPath() string { return s.root }

func sanitizeConnString(conn string) string {
	u, err := url.Parse(conn)
	if err != nil {
		return "postgres://"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func (s *PostgresStore) writeRow(ctx context.Context, kind, name string, payload, header []byte, override bool) error {
	if override {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO stardb_artifacts (name, kind, payload, header)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (kind, name) DO UPDATE
			SET payload = EXCLUDED.payload, header = EXCLUDED.header, updated_at = now()`,
			name, kind, payload, header)
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO stardb_artifacts (name, kind, payload, header)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, name) DO NOTHING`,
		name, kind, payload, header)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %s %q in %s: %w", kind, name, s.root, ErrExists)
	}
	return nil
}

// WriteJSON persists a document row.
func (s *PostgresStore) WriteJSON(ctx context.Context, data map[string]any, name string, override bool) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("postgres: encoding document %q: %w", name, err)
	}
	return s.writeRow(ctx, "json", name, buf, nil, override)
}

// ReadJSON loads a document row.
func (s *PostgresStore) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	var buf []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM stardb_artifacts WHERE kind = 'json' AND name = $1`,
		name).Scan(&buf)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: document %q in %s: %w", name, s.root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: reading document %q: %w", name, err)
	}

	var data map[string]any
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, fmt.Errorf("postgres: decoding document %q: %w", name, err)
	}
	return data, nil
}

// WriteTable persists the table block and header in a single row.
func (s *PostgresStore) WriteTable(ctx context.Context, tbl *table.Table, hdr schema.Header, name string, override bool) error {
	if err := schema.Validate(hdr, tbl); err != nil {
		return err
	}

	block, err := encodeTable(tbl)
	if err != nil {
		return fmt.Errorf("postgres: encoding table %q: %w", name, err)
	}
	var headerJSON []byte
	if hdr != nil {
		if headerJSON, err = schema.Encode(hdr); err != nil {
			return err
		}
	}
	return s.writeRow(ctx, "table", name, block, headerJSON, override)
}

// ReadTable loads a table row, reattaching stored header metadata.
func (s *PostgresStore) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	var block, headerJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload, header FROM stardb_artifacts WHERE kind = 'table' AND name = $1`,
		name).Scan(&block, &headerJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: table %q in %s: %w", name, s.root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: reading table %q: %w", name, err)
	}

	tbl, err := decodeTable(block)
	if err != nil {
		return nil, fmt.Errorf("postgres: table %q: %w", name, err)
	}
	if headerJSON != nil {
		hdr, err := schema.Decode(headerJSON)
		if err != nil {
			return nil, err
		}
		hdr.Apply(tbl)
	}
	return tbl, nil
}

// ReadTableHeader returns (nil, nil) for a table stored without metadata.
func (s *PostgresStore) ReadTableHeader(ctx context.Context, name string) (schema.Header, error) {
	var headerJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT header FROM stardb_artifacts WHERE kind = 'table' AND name = $1`,
		name).Scan(&headerJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: reading header for %q: %w", name, err)
	}
	if headerJSON == nil {
		return nil, nil
	}
	return schema.Decode(headerJSON)
}
