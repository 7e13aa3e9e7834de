// Package selection validates the columns a user picks for each chart.
package selection

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
)

// Selection names the columns used by the box plot and the heatmap.
// A nil slice means "use the default"; an empty non-nil slice means "none".
type Selection struct {
	BoxColumns  []string `json:"box_columns"`
	GroupBy     string   `json:"group_by,omitempty"`
	HeatColumns []string `json:"heat_columns"`
}

// Defaults returns the initial selection: the first two numeric columns for the
// box plot, no grouping, every numeric column for the heatmap.
func Defaults(cls dataset.Classification) Selection {
	n := len(cls.Numeric)
	if n > 2 {
		n = 2
	}
	return Selection{
		BoxColumns:  append([]string{}, cls.Numeric[:n]...),
		HeatColumns: append([]string{}, cls.Numeric...),
	}
}

// Resolve fills nil fields of s from Defaults.
func Resolve(s Selection, cls dataset.Classification) Selection {
	def := Defaults(cls)
	if s.BoxColumns == nil {
		s.BoxColumns = def.BoxColumns
	}
	if s.HeatColumns == nil {
		s.HeatColumns = def.HeatColumns
	}
	s.GroupBy = strings.TrimSpace(s.GroupBy)
	return s
}

// ValidationError lists the offending names for one field of a selection.
type ValidationError struct {
	Field     string
	Unknown   []string
	WrongKind []string
	Duplicate []string
	Available []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown columns: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.WrongKind) > 0 {
		parts = append(parts, "wrong column type: "+strings.Join(e.WrongKind, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	return fmt.Sprintf("invalid %s selection (%s); available: %s",
		e.Field, strings.Join(parts, "; "), strings.Join(e.Available, ", "))
}

// Validate checks s against cls. Box and heat columns must be numeric and the
// grouping column, when set, must be categorical. The first failing field is reported.
func Validate(s Selection, cls dataset.Classification) error {
	if err := checkColumns("box", s.BoxColumns, dataset.KindNumeric, cls); err != nil {
		return err
	}
	if s.GroupBy != "" {
		if err := checkColumns("group_by", []string{s.GroupBy}, dataset.KindCategorical, cls); err != nil {
			return err
		}
	}
	if err := checkColumns("heat", s.HeatColumns, dataset.KindNumeric, cls); err != nil {
		return err
	}
	return nil
}

func checkColumns(field string, names []string, want dataset.Kind, cls dataset.Classification) error {
	ve := &ValidationError{Field: field}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			ve.Duplicate = append(ve.Duplicate, name)
			continue
		}
		seen[name] = true
		kind, ok := cls.KindOf(name)
		switch {
		case !ok:
			ve.Unknown = append(ve.Unknown, name)
		case kind != want:
			ve.WrongKind = append(ve.WrongKind, name)
		}
	}
	if len(ve.Unknown) == 0 && len(ve.WrongKind) == 0 && len(ve.Duplicate) == 0 {
		return nil
	}
	if want == dataset.KindNumeric {
		ve.Available = append([]string{}, cls.Numeric...)
	} else {
		ve.Available = append([]string{}, cls.Categorical...)
	}
	return ve
}

// ParseList splits a comma separated flag value. An empty string yields an empty,
// non-nil slice.
func ParseList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
