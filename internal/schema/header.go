// Package schema defines the per-column metadata stored alongside every
// table: unit, dtype, free-text description and, for time columns, the
// temporal representation. A header is pure data with a portable JSON form;
// it never touches storage itself.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"stardb/internal/table"
)

// TimeInfo records the representation of a time column.
type TimeInfo struct {
	Format string `json:"format"` // e.g. "jd", "mjd", "isot"
	Scale  string `json:"scale"`  // e.g. "tdb", "utc"
}

// ColumnInfo is the header entry for a single column. Every field is
// optional; a nil pointer serializes as JSON null.
type ColumnInfo struct {
	Description *string   `json:"description"`
	Unit        *string   `json:"unit"`
	DType       *string   `json:"dtype"`
	TimeInfo    *TimeInfo `json:"time_info"`
}

// Header maps column names to their metadata. Keys are unique; insertion
// order carries no meaning. A header may describe only a subset of a
// table's columns.
type Header map[string]ColumnInfo

// SchemaError reports malformed header input or a header that does not fit
// the table it claims to describe.
type SchemaError struct {
	Reason string
	Err    error // underlying decode error, if any
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("schema: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Encode serializes the header to its portable JSON form: an object keyed
// by column name.
func Encode(h Header) ([]byte, error) {
	buf, err := json.MarshalIndent(h, "", "    ")
	if err != nil {
		return nil, &SchemaError{Reason: "encoding header", Err: err}
	}
	return buf, nil
}

// Decode parses the JSON form produced by Encode. Malformed input fails
// with a *SchemaError.
func Decode(data []byte) (Header, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, &SchemaError{Reason: "malformed header JSON", Err: err}
	}
	return h, nil
}

// Validate checks that the header's keys describe a subset of the table's
// columns. Columns without a header entry are fine ("no metadata").
func Validate(h Header, t *table.Table) error {
	for name := range h {
		if t.Column(name) == nil {
			return &SchemaError{Reason: fmt.Sprintf("header describes unknown column %q", name)}
		}
	}
	return nil
}

// FromTable builds a header describing every column of t, capturing its
// current unit, dtype, description and time representation.
func FromTable(t *table.Table) Header {
	h := make(Header, t.NumCols())
	for _, name := range t.Names() {
		col := t.Column(name)
		info := ColumnInfo{DType: strPtr(string(col.DType))}
		if col.Unit != "" {
			info.Unit = strPtr(col.Unit)
		}
		if col.Description != "" {
			info.Description = strPtr(col.Description)
		}
		if col.DType == table.Time {
			info.TimeInfo = &TimeInfo{Format: col.TimeFormat, Scale: col.TimeScale}
		}
		h[name] = info
	}
	return h
}

// Clone returns a deep copy of the header.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for name, info := range h {
		c := ColumnInfo{
			Description: clonePtr(info.Description),
			Unit:        clonePtr(info.Unit),
			DType:       clonePtr(info.DType),
		}
		if info.TimeInfo != nil {
			ti := *info.TimeInfo
			c.TimeInfo = &ti
		}
		out[name] = c
	}
	return out
}

// Apply reattaches the header's metadata to matching columns of t: units,
// descriptions and, when the header declares a time dtype over a plain
// float column, the time representation. Unknown header keys are ignored;
// it is the reader's job to call Validate first when strictness matters.
func (h Header) Apply(t *table.Table) {
	for name, info := range h {
		col := t.Column(name)
		if col == nil {
			continue
		}
		if info.Unit != nil {
			col.Unit = *info.Unit
		}
		if info.Description != nil {
			col.Description = *info.Description
		}
		if info.TimeInfo != nil && col.DType == table.Float64 {
			col.DType = table.Time
			col.TimeFormat = info.TimeInfo.Format
			col.TimeScale = info.TimeInfo.Scale
		}
	}
}

func strPtr(s string) *string { return &s }

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
