package storage

import (
	"errors"
	"math"
	"testing"

	"stardb/internal/table"
)

func TestCodecRoundTripMaskedInts(t *testing.T) {
	want := table.New()
	want.MustAddColumn("tic_id", table.NewInt64([]int64{100, 0, 300, 0, 500}).
		WithMask([]bool{false, true, false, true, false}))
	want.MustAddColumn("mag", table.NewFloat64([]float64{9.1, 10.2, math.NaN(), 11.3, 12.4}).
		WithMask([]bool{false, false, true, false, false}))

	block, err := encodeTable(want)
	if err != nil {
		t.Fatalf("encodeTable() error = %v", err)
	}

	got, err := decodeTable(block)
	if err != nil {
		t.Fatalf("decodeTable() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("decoded table differs from original")
	}

	// The mask channel must survive for integer columns: this is the
	// capability the container backend lacks.
	col := got.Column("tic_id")
	if col.DType != table.Int64 {
		t.Errorf("tic_id dtype = %s, want int64", col.DType)
	}
	if !col.Masked(1) || !col.Masked(3) || col.Masked(0) {
		t.Errorf("tic_id mask = %v, want rows 1 and 3 masked", col.Mask)
	}
}

func TestCodecRoundTripEmptyTable(t *testing.T) {
	block, err := encodeTable(table.New())
	if err != nil {
		t.Fatalf("encodeTable() error = %v", err)
	}
	got, err := decodeTable(block)
	if err != nil {
		t.Fatalf("decodeTable() error = %v", err)
	}
	if got.NumCols() != 0 {
		t.Errorf("NumCols() = %d, want 0", got.NumCols())
	}
}

func TestCodecRejectsCorruption(t *testing.T) {
	tbl := table.New()
	tbl.MustAddColumn("x", table.NewInt64([]int64{1, 2, 3}))

	block, err := encodeTable(tbl)
	if err != nil {
		t.Fatalf("encodeTable() error = %v", err)
	}

	tests := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{"flipped payload byte", func(b []byte) []byte {
			out := append([]byte(nil), b...)
			out[len(out)/2] ^= 0xff
			return out
		}},
		{"truncated block", func(b []byte) []byte {
			return b[:len(b)-6]
		}},
		{"bad magic", func(b []byte) []byte {
			out := append([]byte(nil), b...)
			out[0] ^= 0xff
			return out
		}},
		{"too short", func(b []byte) []byte {
			return b[:4]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeTable(tt.mangle(block))
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("decodeTable() error = %v, want ErrCorrupt", err)
			}
		})
	}
}
