package storage

import (
	"context"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// Store is the contract every backend implements. Tables and JSON documents
// share one name space per backend instance but occupy distinct physical
// locations, so a table and a document may carry the same name.
//
// Operations are synchronous and run to completion; the context is honored
// where the underlying medium supports cancellation (the Postgres backend),
// and checked between steps elsewhere.
type Store interface {
	// RootPath returns the backend's storage root (a directory, a file,
	// or a synthetic key for non-filesystem backends). Diagnostics only.
	RootPath() string

	// WriteJSON persists an arbitrary document under name. It fails with
	// ErrExists when the document is present and override is false.
	WriteJSON(ctx context.Context, data map[string]any, name string, override bool) error

	// ReadJSON fails with ErrNotFound when no document named name exists.
	ReadJSON(ctx context.Context, name string) (map[string]any, error)

	// WriteTable persists a table and its header under name. The override
	// flag gates the table artifact only; the companion header is always
	// written alongside, as metadata is not independently versioned.
	WriteTable(ctx context.Context, tbl *table.Table, hdr schema.Header, name string, override bool) error

	// ReadTable fails with ErrNotFound when the table artifact is absent.
	// When a header was stored it is used to reattach units, descriptions
	// and time representations; otherwise columns come back bare.
	ReadTable(ctx context.Context, name string) (*table.Table, error)

	// ReadTableHeader returns (nil, nil) when no header was stored, which
	// is a valid state for tables written without metadata.
	ReadTableHeader(ctx context.Context, name string) (schema.Header, error)
}
