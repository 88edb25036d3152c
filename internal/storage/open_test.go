package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		backend  string
		wantRoot string
	}{
		{BackendColumnar, dir},
		{BackendText, dir},
		{BackendContainer, filepath.Join(dir, "data.db")},
		{BackendMemory, "memory://ns"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			root := dir
			if tt.backend == BackendContainer {
				root = tt.wantRoot
			}
			store, err := Open(ctx, Options{Backend: tt.backend, Root: root, Namespace: "ns"})
			if err != nil {
				t.Fatalf("Open(%s) error = %v", tt.backend, err)
			}
			if got := store.RootPath(); got != tt.wantRoot {
				t.Errorf("RootPath() = %q, want %q", got, tt.wantRoot)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "feather"})
	if err == nil {
		t.Fatal("Open with unknown backend: expected error")
	}
	if !strings.Contains(err.Error(), "feather") {
		t.Errorf("error %q should name the unknown backend", err)
	}
}

func TestOpenPostgresRequiresPool(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendPostgres})
	if err == nil {
		t.Fatal("Open(postgres) without pool: expected error")
	}
}
