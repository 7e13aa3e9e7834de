package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/stats"
)

// LongRow is one (row, variable) observation of a melted dataset.
type LongRow struct {
	Group        string
	GroupMissing bool
	Variable     string
	Value        float64 // NaN when missing
}

// LongForm is the long ("tidy") reshape of selected numeric columns.
type LongForm struct {
	GroupBy string
	Rows    []LongRow
}

// Melt reshapes cols from wide to long form, one row per (source row, variable),
// variables varying fastest within each variable block. groupBy may be empty.
func Melt(d *dataset.Dataset, cols []string, groupBy string) (*LongForm, error) {
	var group *dataset.Column
	if groupBy != "" {
		g, ok := d.Column(groupBy)
		if !ok {
			return nil, fmt.Errorf("column %q not found", groupBy)
		}
		group = g
	}
	lf := &LongForm{GroupBy: groupBy, Rows: make([]LongRow, 0, d.Rows()*len(cols))}
	for _, name := range cols {
		c, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if !c.IsNumeric() {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		for i := 0; i < c.Len(); i++ {
			v, _ := c.Float(i)
			row := LongRow{Variable: name, Value: v}
			if group != nil {
				row.GroupMissing = group.IsMissing(i)
				row.Group = group.Raw(i)
			}
			lf.Rows = append(lf.Rows, row)
		}
	}
	return lf, nil
}

// Box is one box of a box plot with its five-number summary.
type Box struct {
	Variable string
	Group    string
	Values   []float64
	Summary  FiveNumber
}

// FiveNumber is the box plot summary of a sample.
type FiveNumber struct {
	N      int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

func summarize(values []float64) FiveNumber {
	if len(values) == 0 {
		nan := math.NaN()
		return FiveNumber{Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan}
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	sort.Float64s(cp)
	return FiveNumber{
		N:      len(cp),
		Min:    cp[0],
		Q1:     stats.Quantile(cp, 0.25),
		Median: stats.Quantile(cp, 0.5),
		Q3:     stats.Quantile(cp, 0.75),
		Max:    cp[len(cp)-1],
	}
}

// BoxData is everything needed to draw a box plot.
type BoxData struct {
	Variables []string
	GroupBy   string
	Groups    []string // first-seen order; empty when ungrouped
	Boxes     []Box    // variable-major, then group order
}

// BuildBoxes produces one box per column, or one per (column, group) when groupBy is
// set. Missing values, and long rows with a missing group, are skipped.
func BuildBoxes(d *dataset.Dataset, cols []string, groupBy string) (*BoxData, *LongForm, error) {
	lf, err := Melt(d, cols, groupBy)
	if err != nil {
		return nil, nil, err
	}
	bd := &BoxData{Variables: append([]string{}, cols...), GroupBy: groupBy}
	if groupBy == "" {
		byVar := make(map[string][]float64, len(cols))
		for _, r := range lf.Rows {
			if math.IsNaN(r.Value) {
				continue
			}
			byVar[r.Variable] = append(byVar[r.Variable], r.Value)
		}
		for _, name := range cols {
			bd.Boxes = append(bd.Boxes, Box{Variable: name, Values: byVar[name], Summary: summarize(byVar[name])})
		}
		return bd, lf, nil
	}

	type key struct{ variable, group string }
	buckets := map[key][]float64{}
	seen := map[string]bool{}
	for _, r := range lf.Rows {
		if r.GroupMissing {
			continue
		}
		if !seen[r.Group] {
			seen[r.Group] = true
			bd.Groups = append(bd.Groups, r.Group)
		}
		if math.IsNaN(r.Value) {
			continue
		}
		k := key{r.Variable, r.Group}
		buckets[k] = append(buckets[k], r.Value)
	}
	for _, name := range cols {
		for _, g := range bd.Groups {
			vals := buckets[key{name, g}]
			bd.Boxes = append(bd.Boxes, Box{Variable: name, Group: g, Values: vals, Summary: summarize(vals)})
		}
	}
	return bd, lf, nil
}
