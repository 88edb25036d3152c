package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrExists is returned by writes without override when an artifact of
	// the same name is already stored.
	ErrExists = errors.New("artifact already exists")

	// ErrNotFound is returned by reads of an absent artifact.
	ErrNotFound = errors.New("artifact not found")

	// ErrCorrupt is returned when a stored table block fails structural
	// checks (bad magic, truncation, checksum mismatch).
	ErrCorrupt = errors.New("corrupted table block")
)

// FormatError reports a limitation of a backend's physical format: a file
// that does not carry the expected structure, or a value shape the format
// cannot represent.
type FormatError struct {
	Backend string // "columnar", "text", "container", "memory", "postgres"
	Op      string
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Backend, e.Op, e.Reason)
}
