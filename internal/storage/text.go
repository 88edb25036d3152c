package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"stardb/internal/schema"
	"stardb/internal/table"
)

// TextStore keeps each table as a self-describing row-oriented text file
// (.stcsv): a commented YAML schema naming every column's dtype, unit,
// description and time representation, followed by CSV rows. Unlike the
// columnar format the file alone is enough to rebuild the table; the JSON
// sidecar is still written for consistency with the other backends and, when
// present, its metadata overrides the in-file schema (the one documented
// precedence order, applied everywhere).
//
// Missing values are carried out of band: a column with masked rows gets a
// companion boolean column (<name>.mask, marked mask_of in the embedded
// schema) and its data cells hold empty placeholders. An unmasked empty
// string is therefore just an empty string, and it is written quoted so no
// record ever serializes as a blank line.
type TextStore struct {
	dirStore
}

const textSignature = "%STCSV 1.0"

// NewText returns a row-oriented text backend rooted at root, which may be
// a directory or a bare file path (single-table layout).
func NewText(root string) *TextStore {
	s := &TextStore{dirStore: newDirStore(root, ".stcsv", "text")}
	s.saveTable = s.save
	s.loadTable = s.load
	return s
}

// textColumn is one entry of the embedded YAML schema.
type textColumn struct {
	Name        string        `yaml:"name"`
	DType       string        `yaml:"dtype"`
	Unit        string        `yaml:"unit,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Time        *textTimeInfo `yaml:"time,omitempty"`

	// MaskOf names the data column this boolean column is the missing
	// mask for. Mask columns carry no metadata of their own.
	MaskOf string `yaml:"mask_of,omitempty"`
}

type textTimeInfo struct {
	Format string `yaml:"format"`
	Scale  string `yaml:"scale"`
}

type textSchema struct {
	Columns []textColumn `yaml:"columns"`
}

func (s *TextStore) save(t *table.Table, path string) error {
	doc := textSchema{}
	type outCol struct {
		name   string
		col    *table.Column
		isMask bool
	}
	var cols []outCol
	for _, name := range t.Names() {
		col := t.Column(name)
		tc := textColumn{
			Name:        name,
			DType:       string(col.DType),
			Unit:        col.Unit,
			Description: col.Description,
		}
		if col.DType == table.Time {
			tc.Time = &textTimeInfo{Format: col.TimeFormat, Scale: col.TimeScale}
		}
		doc.Columns = append(doc.Columns, tc)
		cols = append(cols, outCol{name, col, false})

		if col.HasMask() {
			maskName := name + ".mask"
			doc.Columns = append(doc.Columns, textColumn{
				Name: maskName, DType: string(table.Bool), MaskOf: name,
			})
			cols = append(cols, outCol{maskName, col, true})
		}
	}

	schemaYAML, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding embedded schema: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", textSignature)
	for _, line := range strings.Split(strings.TrimRight(string(schemaYAML), "\n"), "\n") {
		fmt.Fprintf(&buf, "# %s\n", line)
	}

	if len(cols) > 0 {
		fields := make([]string, len(cols))
		quoted := make([]bool, len(cols))
		for j, c := range cols {
			fields[j] = c.name
		}
		writeRecord(&buf, fields, quoted)

		for i := 0; i < t.NumRows(); i++ {
			for j, c := range cols {
				if c.isMask {
					fields[j] = strconv.FormatBool(c.col.Masked(i))
					quoted[j] = false
					continue
				}
				fields[j], quoted[j] = formatCell(c.col, i)
			}
			writeRecord(&buf, fields, quoted)
		}
	}

	return writeFileAtomic(path, buf.Bytes())
}

func (s *TextStore) load(path string, hdr schema.Header) (*table.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Only the leading comment block is schema. A '#' inside a quoted CSV
	// field further down is data and must reach the CSV parser untouched.
	schemaLines, rest := splitCommentBlock(raw)
	if len(schemaLines) == 0 || schemaLines[0] != textSignature {
		return nil, &FormatError{Backend: "text", Op: "read", Reason: "missing " + textSignature + " signature"}
	}

	var doc textSchema
	if err := yaml.Unmarshal([]byte(strings.Join(schemaLines[1:], "\n")), &doc); err != nil {
		return nil, &FormatError{Backend: "text", Op: "read", Reason: "malformed embedded schema: " + err.Error()}
	}

	t := table.New()
	if len(doc.Columns) == 0 {
		if hdr != nil {
			hdr.Apply(t)
		}
		return t, nil
	}

	records, err := csv.NewReader(bytes.NewReader(rest)).ReadAll()
	if err != nil {
		return nil, &FormatError{Backend: "text", Op: "read", Reason: "malformed CSV rows: " + err.Error()}
	}
	if len(records) == 0 {
		return nil, &FormatError{Backend: "text", Op: "read", Reason: "missing column name row"}
	}

	names := records[0]
	rows := records[1:]
	byName := make(map[string]textColumn, len(doc.Columns))
	for _, tc := range doc.Columns {
		byName[tc.Name] = tc
	}

	maskIdx := make(map[string]int)
	for j, name := range names {
		if tc, ok := byName[name]; ok && tc.MaskOf != "" {
			maskIdx[tc.MaskOf] = j
		}
	}

	for j, name := range names {
		tc, ok := byName[name]
		if !ok {
			return nil, &FormatError{Backend: "text", Op: "read",
				Reason: fmt.Sprintf("column %q missing from embedded schema", name)}
		}
		if tc.MaskOf != "" {
			continue
		}

		var mask []bool
		if mj, ok := maskIdx[name]; ok {
			if mask, err = parseMaskColumn(name, rows, mj); err != nil {
				return nil, err
			}
		}
		col, err := parseColumn(tc, rows, j, mask)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	if hdr != nil {
		hdr.Apply(t) // sidecar wins over in-file metadata
	}
	return t, nil
}

// splitCommentBlock peels the leading '#' lines off raw and returns them
// uncommented, together with the untouched remainder.
func splitCommentBlock(raw []byte) ([]string, []byte) {
	var lines []string
	for len(raw) > 0 && raw[0] == '#' {
		line := raw
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line, raw = raw[:i], raw[i+1:]
		} else {
			raw = nil
		}
		text := strings.TrimSuffix(string(line), "\r")
		lines = append(lines, strings.TrimPrefix(strings.TrimPrefix(text, "#"), " "))
	}
	return lines, raw
}

// writeRecord renders one CSV record. Beyond the usual escaping, fields
// flagged quoted are quoted even when empty, so a record never collapses to
// a blank line the CSV reader would skip.
func writeRecord(buf *bytes.Buffer, fields []string, quoted []bool) {
	for j, f := range fields {
		if j > 0 {
			buf.WriteByte(',')
		}
		if quoted[j] || strings.ContainsAny(f, ",\"\n\r") {
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
			buf.WriteByte('"')
		} else {
			buf.WriteString(f)
		}
	}
	buf.WriteByte('\n')
}

func formatCell(col *table.Column, i int) (text string, quoted bool) {
	if col.Masked(i) {
		return "", false
	}
	switch col.DType {
	case table.Int64:
		return strconv.FormatInt(col.Ints[i], 10), false
	case table.Float64, table.Time:
		return strconv.FormatFloat(col.Floats[i], 'g', -1, 64), false
	case table.Bool:
		return strconv.FormatBool(col.Bools[i]), false
	default:
		return col.Strings[i], col.Strings[i] == ""
	}
}

func parseMaskColumn(name string, rows [][]string, j int) ([]bool, error) {
	mask := make([]bool, len(rows))
	for i, row := range rows {
		if j >= len(row) {
			return nil, &FormatError{Backend: "text", Op: "read",
				Reason: fmt.Sprintf("row %d has %d fields, want %d or more", i, len(row), j+1)}
		}
		v, err := strconv.ParseBool(row[j])
		if err != nil {
			return nil, &FormatError{Backend: "text", Op: "read",
				Reason: fmt.Sprintf("mask column for %q row %d: %q is not a bool", name, i, row[j])}
		}
		mask[i] = v
	}
	return mask, nil
}

// parseColumn rebuilds one data column. When the file carries an explicit
// mask column its values win; otherwise an empty cell in a non-string
// column means missing, the legacy encoding for hand-authored files.
func parseColumn(tc textColumn, rows [][]string, j int, mask []bool) (*table.Column, error) {
	n := len(rows)
	col := &table.Column{
		DType:       table.DType(tc.DType),
		Unit:        tc.Unit,
		Description: tc.Description,
	}
	if tc.Time != nil {
		col.TimeFormat = tc.Time.Format
		col.TimeScale = tc.Time.Scale
	}

	explicit := mask != nil
	if mask == nil {
		mask = make([]bool, n)
	}
	masked := false
	for _, m := range mask {
		if m {
			masked = true
			break
		}
	}

	switch col.DType {
	case table.Int64:
		col.Ints = make([]int64, n)
	case table.Float64, table.Time:
		col.Floats = make([]float64, n)
	case table.Bool:
		col.Bools = make([]bool, n)
	case table.String:
		col.Strings = make([]string, n)
	default:
		return nil, &FormatError{Backend: "text", Op: "read",
			Reason: fmt.Sprintf("column %q: unknown dtype %q", tc.Name, tc.DType)}
	}

	for i, row := range rows {
		if j >= len(row) {
			return nil, &FormatError{Backend: "text", Op: "read",
				Reason: fmt.Sprintf("row %d has %d fields, want %d or more", i, len(row), j+1)}
		}
		if mask[i] {
			continue
		}
		cell := row[j]
		if cell == "" && !explicit && col.DType != table.String {
			mask[i] = true
			masked = true
			continue
		}

		var err error
		switch col.DType {
		case table.Int64:
			col.Ints[i], err = strconv.ParseInt(cell, 10, 64)
		case table.Float64, table.Time:
			col.Floats[i], err = strconv.ParseFloat(cell, 64)
		case table.Bool:
			col.Bools[i], err = strconv.ParseBool(cell)
		case table.String:
			col.Strings[i] = cell
		}
		if err != nil {
			return nil, &FormatError{Backend: "text", Op: "read",
				Reason: fmt.Sprintf("column %q row %d: %q is not a %s", tc.Name, i, cell, tc.DType)}
		}
	}

	if masked {
		col.Mask = mask
	}
	return col, nil
}
