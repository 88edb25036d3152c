package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names accepted by Open.
const (
	BackendColumnar  = "columnar"
	BackendText      = "text"
	BackendContainer = "container"
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
)

// Options selects and parameterizes a backend at construction time. After
// Open, callers hold only the Store interface.
type Options struct {
	Backend string

	// Root is the storage root for the on-disk backends: a directory (or
	// bare file path) for columnar/text, the container file for container.
	Root string

	// Namespace partitions the in-memory backend; also used as the
	// container's root group when set.
	Namespace string

	// Pool is required for the postgres backend; ignored elsewhere.
	Pool *pgxpool.Pool
}

// Open constructs the configured backend. It is the single place a backend
// name is inspected; everything downstream speaks Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendColumnar:
		return NewColumnar(opts.Root), nil
	case BackendText:
		return NewText(opts.Root), nil
	case BackendContainer:
		return NewContainer(opts.Root, opts.Namespace), nil
	case BackendMemory:
		return NewMemory(opts.Namespace), nil
	case BackendPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("postgres backend requires a connection pool")
		}
		return NewPostgres(ctx, opts.Pool)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
