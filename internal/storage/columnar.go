package storage

import (
	"os"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// ColumnarStore keeps each table as one binary columnar file (.stcf) next
// to its JSON sidecar header. The file format carries names, dtypes, masks
// and values (integer columns with missing rows keep their mask natively)
// but no units, so reads always consult the sidecar to reattach them.
type ColumnarStore struct {
	dirStore
}

// NewColumnar returns a columnar backend rooted at root, which may be a
// directory or a bare file path (single-table layout).
func NewColumnar(root string) *ColumnarStore {
	s := &ColumnarStore{dirStore: newDirStore(root, ".stcf", "columnar")}
	s.saveTable = s.save
	s.loadTable = s.load
	return s
}

func (s *ColumnarStore) save(t *table.Table, path string) error {
	block, err := encodeTable(t)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, block)
}

func (s *ColumnarStore) load(path string, hdr schema.Header) (*table.Table, error) {
	block, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := decodeTable(block)
	if err != nil {
		return nil, err
	}
	if hdr != nil {
		hdr.Apply(t)
	}
	return t, nil
}
