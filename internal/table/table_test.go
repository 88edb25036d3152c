package table

import (
	"math"
	"testing"
)

func TestAddColumnValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func(tbl *Table) error
		wantErr bool
	}{
		{
			name: "matching lengths",
			build: func(tbl *Table) error {
				if err := tbl.AddColumn("a", NewInt64([]int64{1, 2})); err != nil {
					return err
				}
				return tbl.AddColumn("b", NewString([]string{"x", "y"}))
			},
		},
		{
			name: "length mismatch",
			build: func(tbl *Table) error {
				if err := tbl.AddColumn("a", NewInt64([]int64{1, 2})); err != nil {
					return err
				}
				return tbl.AddColumn("b", NewString([]string{"only one"}))
			},
			wantErr: true,
		},
		{
			name: "duplicate name",
			build: func(tbl *Table) error {
				if err := tbl.AddColumn("a", NewInt64([]int64{1})); err != nil {
					return err
				}
				return tbl.AddColumn("a", NewInt64([]int64{2}))
			},
			wantErr: true,
		},
		{
			name: "empty name",
			build: func(tbl *Table) error {
				return tbl.AddColumn("", NewBool([]bool{true}))
			},
			wantErr: true,
		},
		{
			name: "mask length mismatch",
			build: func(tbl *Table) error {
				return tbl.AddColumn("a", NewFloat64([]float64{1, 2, 3}).WithMask([]bool{true}))
			},
			wantErr: true,
		},
		{
			name: "time column without scale",
			build: func(tbl *Table) error {
				return tbl.AddColumn("t", NewTime([]float64{2459000.5}, "jd", ""))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(New())
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestColumnOrderPreserved(t *testing.T) {
	tbl := New().
		MustAddColumn("z", NewInt64([]int64{1})).
		MustAddColumn("a", NewInt64([]int64{2})).
		MustAddColumn("m", NewInt64([]int64{3}))

	names := tbl.Names()
	want := []string{"z", "a", "m"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := New().MustAddColumn("v", NewFloat64([]float64{1.5, 2.5}).WithUnit("mag"))

	cp := orig.Clone()
	cp.Column("v").Floats[0] = -1
	cp.Column("v").Unit = "jy"

	if orig.Column("v").Floats[0] != 1.5 {
		t.Errorf("mutating the clone changed the original values")
	}
	if orig.Column("v").Unit != "mag" {
		t.Errorf("mutating the clone changed the original unit")
	}
}

func TestEqualTreatsNaNAsEqual(t *testing.T) {
	a := New().MustAddColumn("x", NewFloat64([]float64{1, math.NaN()}))
	b := New().MustAddColumn("x", NewFloat64([]float64{1, math.NaN()}))

	if !a.Equal(b) {
		t.Errorf("tables with matching NaN positions should compare equal")
	}
}

func TestEqualIgnoresMaskedPlaceholders(t *testing.T) {
	a := New().MustAddColumn("x", NewInt64([]int64{1, 999}).WithMask([]bool{false, true}))
	b := New().MustAddColumn("x", NewInt64([]int64{1, -1}).WithMask([]bool{false, true}))

	if !a.Equal(b) {
		t.Errorf("masked placeholder values should not affect equality")
	}
}

func TestHasMask(t *testing.T) {
	col := NewInt64([]int64{1, 2}).WithMask([]bool{false, false})
	if col.HasMask() {
		t.Errorf("HasMask() = true for an all-false mask")
	}
	col.Mask[1] = true
	if !col.HasMask() {
		t.Errorf("HasMask() = false with a masked row")
	}
}

func TestNumRowsEmptyTable(t *testing.T) {
	if got := New().NumRows(); got != 0 {
		t.Errorf("NumRows() = %d, want 0", got)
	}
}
