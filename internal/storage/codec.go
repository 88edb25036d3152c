package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"stardb/internal/table"
)

// Binary table block, the columnar image used by the columnar files, the
// container groups and the Postgres payload column.
//
// Block layout (little endian):
//
//	magic (4 bytes) | version (1 byte)
//	ncols (4 bytes) | nrows (8 bytes)
//	per column:
//	    name        length-prefixed (2 bytes + bytes)
//	    dtype       1 byte
//	    format/scale (time columns only) two length-prefixed strings
//	    hasMask     1 byte
//	    mask        ceil(nrows/8) bytes, present when hasMask=1
//	    values      dtype-specific (fixed width, bool bitmap, or
//	                4-byte-length-prefixed strings)
//	crc32 of everything above (4 bytes)
//
// Units and descriptions are deliberately absent: they travel in the
// sidecar header so every physical format shares one source of truth.

const (
	blockMagic   = 0x53544342 // "STCB"
	blockVersion = 1
)

const (
	dtInt64 byte = iota + 1
	dtFloat64
	dtString
	dtBool
	dtTime
)

var dtypeCodes = map[table.DType]byte{
	table.Int64:   dtInt64,
	table.Float64: dtFloat64,
	table.String:  dtString,
	table.Bool:    dtBool,
	table.Time:    dtTime,
}

var dtypeNames = map[byte]table.DType{
	dtInt64:   table.Int64,
	dtFloat64: table.Float64,
	dtString:  table.String,
	dtBool:    table.Bool,
	dtTime:    table.Time,
}

// encodeTable serializes t into a self-checking binary block.
func encodeTable(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, uint32(blockMagic))
	buf.WriteByte(blockVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(t.NumCols()))
	binary.Write(&buf, binary.LittleEndian, uint64(t.NumRows()))

	for _, name := range t.Names() {
		col := t.Column(name)
		code, ok := dtypeCodes[col.DType]
		if !ok {
			return nil, fmt.Errorf("column %q: unsupported dtype %q", name, col.DType)
		}

		writeShortString(&buf, name)
		buf.WriteByte(code)
		if col.DType == table.Time {
			writeShortString(&buf, col.TimeFormat)
			writeShortString(&buf, col.TimeScale)
		}

		if col.HasMask() {
			buf.WriteByte(1)
			buf.Write(packBits(col.Mask))
		} else {
			buf.WriteByte(0)
		}

		switch col.DType {
		case table.Int64:
			for _, v := range col.Ints {
				binary.Write(&buf, binary.LittleEndian, v)
			}
		case table.Float64, table.Time:
			for _, v := range col.Floats {
				binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
			}
		case table.Bool:
			buf.Write(packBits(col.Bools))
		case table.String:
			for _, s := range col.Strings {
				binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
				buf.WriteString(s)
			}
		}
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes(), nil
}

// decodeTable parses a block produced by encodeTable, verifying magic,
// version and checksum before trusting any length field.
func decodeTable(data []byte) (*table.Table, error) {
	if len(data) < 21 {
		return nil, fmt.Errorf("block of %d bytes: %w", len(data), ErrCorrupt)
	}

	body, tail := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(tail) {
		return nil, fmt.Errorf("checksum mismatch: %w", ErrCorrupt)
	}

	r := &blockReader{buf: body}
	if r.uint32() != blockMagic {
		return nil, fmt.Errorf("bad magic: %w", ErrCorrupt)
	}
	if v := r.byte(); v != blockVersion {
		return nil, fmt.Errorf("unsupported block version %d: %w", v, ErrCorrupt)
	}

	ncols := int(r.uint32())
	nrows := int(r.uint64())

	t := table.New()
	for i := 0; i < ncols && r.err == nil; i++ {
		name := r.shortString()
		dtype, ok := dtypeNames[r.byte()]
		if !ok {
			return nil, fmt.Errorf("column %q: unknown dtype code: %w", name, ErrCorrupt)
		}

		col := &table.Column{DType: dtype}
		if dtype == table.Time {
			col.TimeFormat = r.shortString()
			col.TimeScale = r.shortString()
		}
		if r.byte() == 1 {
			col.Mask = unpackBits(r.bytes((nrows+7)/8), nrows)
		}

		switch dtype {
		case table.Int64:
			col.Ints = make([]int64, nrows)
			for j := range col.Ints {
				col.Ints[j] = int64(r.uint64())
			}
		case table.Float64, table.Time:
			col.Floats = make([]float64, nrows)
			for j := range col.Floats {
				col.Floats[j] = math.Float64frombits(r.uint64())
			}
		case table.Bool:
			col.Bools = unpackBits(r.bytes((nrows+7)/8), nrows)
		case table.String:
			col.Strings = make([]string, nrows)
			for j := range col.Strings {
				col.Strings[j] = r.longString()
			}
		}

		if r.err != nil {
			break
		}
		if err := t.AddColumn(name, col); err != nil {
			return nil, fmt.Errorf("decoding block: %w", err)
		}
	}

	if r.err != nil {
		return nil, fmt.Errorf("truncated block: %w", ErrCorrupt)
	}
	return t, nil
}

// blockReader is a cursor over a block body that records the first
// out-of-bounds access instead of panicking.
type blockReader struct {
	buf []byte
	off int
	err error
}

func (r *blockReader) bytes(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		if r.err == nil {
			r.err = ErrCorrupt
		}
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *blockReader) byte() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *blockReader) uint32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *blockReader) uint64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *blockReader) shortString() string {
	b := r.bytes(2)
	if b == nil {
		return ""
	}
	return string(r.bytes(int(binary.LittleEndian.Uint16(b))))
}

func (r *blockReader) longString() string {
	b := r.bytes(4)
	if b == nil {
		return ""
	}
	return string(r.bytes(int(binary.LittleEndian.Uint32(b))))
}

func writeShortString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// packBits folds a bool slice into a bitmap, LSB first.
func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackBits(packed []byte, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		if i/8 < len(packed) && packed[i/8]&(1<<(i%8)) != 0 {
			out[i] = true
		}
	}
	return out
}
