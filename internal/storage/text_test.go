package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stardb/internal/table"
)

func TestTextFileIsSelfDescribing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewText(root)

	want := surveyTable(t)
	if err := store.WriteTable(ctx, want, nil, "survey", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	// Drop the sidecar: the embedded schema alone must rebuild the table,
	// units and time representation included.
	os.Remove(filepath.Join(root, "survey_header.json"))

	got, err := store.ReadTable(ctx, "survey")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("in-file schema alone did not rebuild the table")
	}
	if got.Column("ra").Unit != "deg" {
		t.Errorf("ra unit = %q, want %q from embedded schema", got.Column("ra").Unit, "deg")
	}
}

func TestTextSidecarOverridesInFileMetadata(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewText(root)

	if err := store.WriteTable(ctx, surveyTable(t), nil, "survey", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	// Simulate an independent sidecar edit disagreeing with the file.
	sidecar := `{"ra": {"description": null, "unit": "rad", "dtype": null, "time_info": null}}`
	if err := os.WriteFile(filepath.Join(root, "survey_header.json"), []byte(sidecar), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := store.ReadTable(ctx, "survey")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if unit := got.Column("ra").Unit; unit != "rad" {
		t.Errorf("ra unit = %q, want %q (sidecar wins over in-file)", unit, "rad")
	}
	if unit := got.Column("dec").Unit; unit != "deg" {
		t.Errorf("dec unit = %q, want %q (untouched by sidecar)", unit, "deg")
	}
}

func TestTextMasksAsCompanionColumns(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewText(root)

	want := table.New()
	want.MustAddColumn("period", table.NewFloat64([]float64{1.5, 0, 3.5}).
		WithMask([]bool{false, true, false}).WithUnit("day"))
	want.MustAddColumn("sector", table.NewInt64([]int64{14, 26, 0}).
		WithMask([]bool{false, false, true}))

	if err := store.WriteTable(ctx, want, nil, "masked", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	// Each masked column travels with an explicit boolean mask column; the
	// masked data cells are empty placeholders.
	raw, err := os.ReadFile(filepath.Join(root, "masked.stcsv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "period,period.mask,sector,sector.mask") {
		t.Errorf("file missing mask columns in name row: %q", raw)
	}
	if !strings.Contains(string(raw), "1.5,false,14,false") {
		t.Errorf("file missing plain row: %q", raw)
	}
	if !strings.Contains(string(raw), ",true,26,false") {
		t.Errorf("file should mark the masked period in its mask column: %q", raw)
	}

	got, err := store.ReadTable(ctx, "masked")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("masked table differs after round trip")
	}
	if got.Column("sector").DType != table.Int64 {
		t.Errorf("sector dtype = %s, want int64", got.Column("sector").DType)
	}
	if got.Column("period.mask") != nil {
		t.Errorf("mask column leaked into the table: %v", got.Names())
	}
}

func TestTextUnmaskedEmptyStringRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewText(t.TempDir())

	want := table.New()
	want.MustAddColumn("note", table.NewString([]string{"a", "", "c"}))

	if err := store.WriteTable(ctx, want, nil, "notes", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	got, err := store.ReadTable(ctx, "notes")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	if got.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3 (empty-string row must not vanish)", got.NumRows())
	}
	if !got.Equal(want) {
		t.Errorf("strings = %v, want %v", got.Column("note").Strings, want.Column("note").Strings)
	}
	if got.Column("note").HasMask() {
		t.Errorf("empty string came back masked")
	}
}

func TestTextMaskedStringDistinctFromEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewText(t.TempDir())

	want := table.New()
	want.MustAddColumn("note", table.NewString([]string{"a", "", "c"}).
		WithMask([]bool{false, false, true}))

	if err := store.WriteTable(ctx, want, nil, "notes", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	got, err := store.ReadTable(ctx, "notes")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	col := got.Column("note")
	if col.Masked(1) {
		t.Errorf("row 1 holds an empty string, not a missing value")
	}
	if !col.Masked(2) {
		t.Errorf("row 2 lost its mask")
	}
	if !got.Equal(want) {
		t.Errorf("masked string table differs after round trip")
	}
}

func TestTextQuotedFieldWithNewlineAndHash(t *testing.T) {
	ctx := context.Background()
	store := NewText(t.TempDir())

	want := table.New()
	want.MustAddColumn("note", table.NewString([]string{"line1\n#line2", "plain"}))
	want.MustAddColumn("n", table.NewInt64([]int64{1, 2}))

	if err := store.WriteTable(ctx, want, nil, "notes", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	got, err := store.ReadTable(ctx, "notes")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	if !got.Equal(want) {
		t.Errorf("note[0] = %q, want %q", got.Column("note").Strings[0], "line1\n#line2")
	}
}

func TestTextEmptyTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewText(t.TempDir())

	if err := store.WriteTable(ctx, table.New(), nil, "empty", false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	got, err := store.ReadTable(ctx, "empty")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got.NumCols() != 0 {
		t.Errorf("NumCols() = %d, want 0", got.NumCols())
	}
}

func TestTextRejectsForeignFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewText(root)

	if err := os.WriteFile(filepath.Join(root, "alien.stcsv"), []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.ReadTable(ctx, "alien")
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("ReadTable() error = %v, want *FormatError", err)
	}
	if !strings.Contains(formatErr.Reason, "signature") {
		t.Errorf("Reason = %q, want mention of missing signature", formatErr.Reason)
	}
}
