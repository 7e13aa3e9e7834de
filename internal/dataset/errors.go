package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoNumericData is the sentinel matched by NoNumericDataError.
var ErrNoNumericData = errors.New("no numeric columns")

// Attempt names one parse strategy tried by the loader.
type Attempt struct {
	Strategy string // xlsx|xls|comma|semicolon
	Err      error
}

// LoadError indicates the file could not be parsed by any attempted strategy.
type LoadError struct {
	Name     string
	Attempts []Attempt
}

func (e *LoadError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("failed to read %s (%s)", e.Name, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt's cause to errors.Is / errors.As.
func (e *LoadError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.Err)
	}
	return out
}

// NoNumericDataError indicates a dataset without any numeric column.
type NoNumericDataError struct {
	Name    string
	Columns []string
}

func (e *NoNumericDataError) Error() string {
	return fmt.Sprintf("no numeric columns detected in %s (columns: %s)", e.Name, strings.Join(e.Columns, ", "))
}

func (e *NoNumericDataError) Unwrap() error { return ErrNoNumericData }
