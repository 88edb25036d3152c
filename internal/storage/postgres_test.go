package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// newTestPostgres connects to the database named by TEST_DATABASE_URL and
// skips the test when the variable is unset, so the suite stays runnable
// without a live server.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	store, err := NewPostgres(ctx, pool)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	return store
}

// testArtifactName salts names per run so repeated test invocations do not
// trip over leftovers in a shared database.
func testArtifactName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgresRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	name := testArtifactName("survey")

	want := surveyTable(t)
	if err := store.WriteTable(ctx, want, surveyHeader(), name, false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	got, err := store.ReadTable(ctx, name)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round-tripped table differs from original")
	}
	if got.Column("ra").Unit != "deg" {
		t.Errorf("ra unit = %q, want %q", got.Column("ra").Unit, "deg")
	}
}

func TestPostgresOverrideSemantics(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	name := testArtifactName("dup")

	if err := store.WriteTable(ctx, surveyTable(t), nil, name, false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if err := store.WriteTable(ctx, surveyTable(t), nil, name, false); !errors.Is(err, ErrExists) {
		t.Errorf("second WriteTable() error = %v, want ErrExists", err)
	}
	if err := store.WriteTable(ctx, surveyTable(t), surveyHeader(), name, true); err != nil {
		t.Errorf("WriteTable(override) error = %v", err)
	}
}

func TestPostgresMissingArtifacts(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	if _, err := store.ReadTable(ctx, testArtifactName("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadTable(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.ReadJSON(ctx, testArtifactName("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadJSON(missing) error = %v, want ErrNotFound", err)
	}

	hdr, err := store.ReadTableHeader(ctx, testArtifactName("nope"))
	if err != nil {
		t.Fatalf("ReadTableHeader() error = %v", err)
	}
	if hdr != nil {
		t.Errorf("ReadTableHeader(missing) = %v, want nil", hdr)
	}
}

func TestPostgresJSONDocuments(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()
	name := testArtifactName("meta")

	doc := map[string]any{"source": "toi", "rows": float64(42)}
	if err := store.WriteJSON(ctx, doc, name, false); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	got, err := store.ReadJSON(ctx, name)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got["rows"] != float64(42) {
		t.Errorf("rows = %v, want 42", got["rows"])
	}
}
