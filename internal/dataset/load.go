package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Options tunes spreadsheet loading. Text formats ignore it.
type Options struct {
	// SheetName selects a worksheet by name (case-insensitive).
	SheetName string
	// SheetIndex is 1-based and used when SheetName is empty; <= 0 means the first sheet.
	SheetIndex int
}

// spreadsheetReader parses one binary spreadsheet format selected by file extension.
type spreadsheetReader interface {
	Strategy() string
	CanRead(name string) bool
	Read(content []byte, opt Options) (header []string, records [][]string, err error)
}

var registry []spreadsheetReader

func register(r spreadsheetReader) {
	registry = append(registry, r)
}

func init() {
	register(xlsxReader{})
	register(xlsReader{})
}

var utf8BOM = []byte("\xef\xbb\xbf")

// errAmbiguousDelimiter marks a comma parse that produced a single column whose
// header still contains semicolons.
var errAmbiguousDelimiter = errors.New("single column with ';' in header")

// Load parses a file into a Dataset. Spreadsheet extensions are parsed as
// spreadsheets; everything else is parsed as comma-delimited text, then retried
// with ';' on failure. When every attempt fails the result is a *LoadError.
func Load(f File, opt Options) (*Dataset, error) {
	for _, r := range registry {
		if !r.CanRead(f.Name) {
			continue
		}
		header, records, err := r.Read(f.Content, opt)
		if err == nil {
			var ds *Dataset
			ds, err = FromRecords(f.Name, header, records)
			if err == nil {
				return ds, nil
			}
		}
		return nil, &LoadError{Name: f.Name, Attempts: []Attempt{{Strategy: r.Strategy(), Err: err}}}
	}

	ds, commaErr := parseDelimited(f, ',')
	if commaErr == nil {
		return ds, nil
	}
	ds, semiErr := parseDelimited(f, ';')
	if semiErr == nil {
		return ds, nil
	}
	return nil, &LoadError{Name: f.Name, Attempts: []Attempt{
		{Strategy: "comma", Err: commaErr},
		{Strategy: "semicolon", Err: semiErr},
	}}
}

func parseDelimited(f File, delim rune) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(f.Content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if delim == ',' && len(header) == 1 && strings.Contains(header[0], ";") {
		return nil, errAmbiguousDelimiter
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return FromRecords(f.Name, header, records)
}

func hasSuffixFold(name string, exts ...string) bool {
	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}
