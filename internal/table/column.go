package table

import "fmt"

// DType identifies the element type of a column.
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	String  DType = "string"
	Bool    DType = "bool"
	Time    DType = "time"
)

// Valid reports whether d is one of the supported element types.
func (d DType) Valid() bool {
	switch d {
	case Int64, Float64, String, Bool, Time:
		return true
	}
	return false
}

// Column holds N values of a single element type.
//
// Exactly one of the value slices is populated, matching DType. Time columns
// store numeric epochs in Floats and carry the temporal representation in
// TimeFormat/TimeScale (e.g. "jd"/"tdb").
//
// Mask, when non-nil, has one entry per row; true marks the row's value as
// missing. The value slice still holds a placeholder at masked positions so
// that lengths stay uniform.
type Column struct {
	DType       DType
	Unit        string // physical unit, e.g. "deg", "day"; empty if none
	Description string
	TimeFormat  string // time columns only
	TimeScale   string // time columns only

	Ints    []int64
	Floats  []float64
	Strings []string
	Bools   []bool

	Mask []bool // nil when no values are missing
}

// NewInt64 returns an integer column over vals.
func NewInt64(vals []int64) *Column {
	return &Column{DType: Int64, Ints: vals}
}

// NewFloat64 returns a floating-point column over vals.
func NewFloat64(vals []float64) *Column {
	return &Column{DType: Float64, Floats: vals}
}

// NewString returns a text column over vals.
func NewString(vals []string) *Column {
	return &Column{DType: String, Strings: vals}
}

// NewBool returns a boolean column over vals.
func NewBool(vals []bool) *Column {
	return &Column{DType: Bool, Bools: vals}
}

// NewTime returns a time column over numeric epochs with the given
// representation format and scale.
func NewTime(vals []float64, format, scale string) *Column {
	return &Column{DType: Time, Floats: vals, TimeFormat: format, TimeScale: scale}
}

// WithUnit sets the column's physical unit and returns the column,
// allowing construction chains like NewFloat64(vals).WithUnit("deg").
func (c *Column) WithUnit(unit string) *Column {
	c.Unit = unit
	return c
}

// WithMask sets the per-row missing mask. The mask length must match the
// column length; a nil mask clears all missing markers.
func (c *Column) WithMask(mask []bool) *Column {
	c.Mask = mask
	return c
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.DType {
	case Int64:
		return len(c.Ints)
	case Float64, Time:
		return len(c.Floats)
	case String:
		return len(c.Strings)
	case Bool:
		return len(c.Bools)
	}
	return 0
}

// Masked reports whether row i is marked missing.
func (c *Column) Masked(i int) bool {
	return c.Mask != nil && c.Mask[i]
}

// HasMask reports whether any row is marked missing.
func (c *Column) HasMask() bool {
	for _, m := range c.Mask {
		if m {
			return true
		}
	}
	return false
}

// Validate checks internal consistency: a known dtype, exactly the matching
// value slice populated, and a mask length equal to the column length.
func (c *Column) Validate() error {
	if !c.DType.Valid() {
		return fmt.Errorf("unknown dtype %q", c.DType)
	}
	if c.Mask != nil && len(c.Mask) != c.Len() {
		return fmt.Errorf("mask length %d does not match column length %d", len(c.Mask), c.Len())
	}
	if c.DType == Time && (c.TimeFormat == "" || c.TimeScale == "") {
		return fmt.Errorf("time column requires format and scale")
	}
	return nil
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{
		DType:       c.DType,
		Unit:        c.Unit,
		Description: c.Description,
		TimeFormat:  c.TimeFormat,
		TimeScale:   c.TimeScale,
	}
	if c.Ints != nil {
		out.Ints = append([]int64(nil), c.Ints...)
	}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Strings != nil {
		out.Strings = append([]string(nil), c.Strings...)
	}
	if c.Bools != nil {
		out.Bools = append([]bool(nil), c.Bools...)
	}
	if c.Mask != nil {
		out.Mask = append([]bool(nil), c.Mask...)
	}
	return out
}
