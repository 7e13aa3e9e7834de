package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// File is an uploaded file handle: a name used for format dispatch and its raw bytes.
type File struct {
	Name    string
	Content []byte
}

// Identity returns a stable key for caching loads of the same file.
func (f File) Identity() string {
	h := sha256.New()
	h.Write([]byte(f.Name))
	h.Write([]byte{0})
	h.Write(f.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// Column is a named sequence of cells. A cell is either missing or holds raw text.
// Numeric columns additionally carry parsed values, with NaN where the cell is missing.
type Column struct {
	Name    string
	raw     []string
	missing []bool
	values  []float64 // nil unless every non-missing cell parsed as a number
}

// NewColumn builds a column from raw cell text, treating missing tokens as missing.
func NewColumn(name string, cells []string) *Column {
	c := &Column{Name: name, raw: make([]string, len(cells)), missing: make([]bool, len(cells))}
	vals := make([]float64, len(cells))
	numeric := true
	// ParseFloat accepts NaN in any case; such cells are missing once the column is numeric.
	var nanCells []int
	for i, cell := range cells {
		v := strings.TrimSpace(cell)
		if IsMissingToken(v) {
			c.missing[i] = true
			vals[i] = math.NaN()
			continue
		}
		c.raw[i] = cell
		if !numeric {
			continue
		}
		f, ok := parseNumber(v)
		if !ok {
			numeric = false
			continue
		}
		if math.IsNaN(f) {
			nanCells = append(nanCells, i)
		}
		vals[i] = f
	}
	if numeric {
		for _, i := range nanCells {
			c.missing[i] = true
			c.raw[i] = ""
		}
		c.values = vals
	}
	return c
}

// NewNumericColumn builds a numeric column from values; NaN marks a missing cell.
func NewNumericColumn(name string, values []float64) *Column {
	c := &Column{Name: name, raw: make([]string, len(values)), missing: make([]bool, len(values)), values: make([]float64, len(values))}
	for i, v := range values {
		c.values[i] = v
		if math.IsNaN(v) {
			c.missing[i] = true
			continue
		}
		c.raw[i] = FormatNumber(v)
	}
	return c
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.raw) }

// IsNumeric reports whether every non-missing cell is a number.
func (c *Column) IsNumeric() bool { return c.values != nil }

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool { return c.missing[i] }

// Raw returns the text of cell i, or "" when missing.
func (c *Column) Raw(i int) string { return c.raw[i] }

// Float returns the numeric value of cell i. ok is false for missing cells
// and for non-numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	if c.values == nil || c.missing[i] {
		return math.NaN(), false
	}
	return c.values[i], true
}

// Floats returns a copy of the numeric values with NaN for missing cells.
// It returns nil for non-numeric columns.
func (c *Column) Floats() []float64 {
	if c.values == nil {
		return nil
	}
	out := make([]float64, len(c.values))
	copy(out, c.values)
	return out
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.missing {
		if m {
			n++
		}
	}
	return n
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, raw: make([]string, len(rows)), missing: make([]bool, len(rows))}
	if c.values != nil {
		out.values = make([]float64, len(rows))
	}
	for i, r := range rows {
		out.raw[i] = c.raw[r]
		out.missing[i] = c.missing[r]
		if c.values != nil {
			out.values[i] = c.values[r]
		}
	}
	return out
}

// Dataset is an ordered set of equal-length named columns.
// A Dataset is never mutated after construction; derivations return copies.
type Dataset struct {
	Name  string
	cols  []*Column
	index map[string]int
	rows  int
}

// FromColumns assembles a Dataset and checks that every column has the same length
// and a unique name.
func FromColumns(name string, cols []*Column) (*Dataset, error) {
	d := &Dataset{Name: name, cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		d.index[c.Name] = i
		if i == 0 {
			d.rows = c.Len()
			continue
		}
		if c.Len() != d.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), d.rows)
		}
	}
	return d, nil
}

// FromRecords builds a Dataset from a header row and data records. Short records are
// padded with missing cells; duplicate or empty header names are de-duplicated.
func FromRecords(name string, header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("no columns")
	}
	names := uniqueHeader(header)
	cells := make([][]string, len(names))
	for j := range cells {
		cells[j] = make([]string, len(records))
	}
	for i, rec := range records {
		if len(rec) > len(names) {
			return nil, fmt.Errorf("expected %d fields in line %d, saw %d", len(names), i+2, len(rec))
		}
		for j := range names {
			if j < len(rec) {
				cells[j][i] = rec[j]
			}
		}
	}
	cols := make([]*Column, len(names))
	for j, n := range names {
		cols[j] = NewColumn(n, cells[j])
	}
	return FromColumns(name, cols)
}

// Rows returns the row count.
func (d *Dataset) Rows() int { return d.rows }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order.
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.cols))
	copy(out, d.cols)
	return out
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Has reports whether the dataset has a column with the given name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Record returns row i as text, with "" for missing cells.
func (d *Dataset) Record(i int) []string {
	out := make([]string, len(d.cols))
	for j, c := range d.cols {
		out[j] = c.raw[i]
	}
	return out
}

// Head returns up to n leading records.
func (d *Dataset) Head(n int) [][]string {
	if n > d.rows || n < 0 {
		n = d.rows
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = d.Record(i)
	}
	return out
}

// SelectRows returns a copy holding only the given rows, in the given order.
func (d *Dataset) SelectRows(rows []int) *Dataset {
	cols := make([]*Column, len(d.cols))
	for j, c := range d.cols {
		cols[j] = c.subset(rows)
	}
	out, _ := FromColumns(d.Name, cols)
	return out
}

// WithColumn returns a copy in which the same-named column is replaced by c.
func (d *Dataset) WithColumn(c *Column) (*Dataset, error) {
	i, ok := d.index[c.Name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", c.Name)
	}
	if c.Len() != d.rows {
		return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), d.rows)
	}
	cols := make([]*Column, len(d.cols))
	copy(cols, d.cols)
	cols[i] = c
	return FromColumns(d.Name, cols)
}

// WriteCSV serializes the dataset as comma-delimited text with a header row and
// no index column. Missing cells are written empty.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < d.rows; i++ {
		if err := cw.Write(d.Record(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatNumber renders a float the way a filled cell appears in exported CSV.
func FormatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {}, "#N/A N/A": {}, "<NA>": {},
	"-1.#IND": {}, "1.#IND": {}, "-1.#QNAN": {}, "1.#QNAN": {},
}

// IsMissingToken reports whether trimmed cell text denotes a missing value.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for {
			if _, dup := seen[name]; !dup {
				break
			}
			seen[base]++
			name = fmt.Sprintf("%s.%d", base, seen[base])
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
