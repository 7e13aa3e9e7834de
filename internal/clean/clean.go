// Package clean resolves missing values in numeric columns.
package clean

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/stats"
)

// Strategy selects how missing numeric values are resolved.
type Strategy string

const (
	DropRows   Strategy = "drop-rows-with-any-missing"
	FillMean   Strategy = "fill-with-column-mean"
	FillMedian Strategy = "fill-with-column-median"
)

// Strategies lists every strategy in presentation order.
var Strategies = []Strategy{DropRows, FillMean, FillMedian}

// ParseStrategy accepts the full names and the short forms drop, mean and median.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop", string(DropRows):
		return DropRows, nil
	case "mean", string(FillMean):
		return FillMean, nil
	case "median", string(FillMedian):
		return FillMedian, nil
	}
	return "", fmt.Errorf("unknown missing-value strategy %q (use drop|mean|median)", s)
}

// Short returns the one-word form of the strategy.
func (s Strategy) Short() string {
	switch s {
	case DropRows:
		return "drop"
	case FillMean:
		return "mean"
	case FillMedian:
		return "median"
	}
	return string(s)
}

// Result is the cleaned dataset plus what the strategy did to it.
type Result struct {
	Data     *dataset.Dataset
	Strategy Strategy
	// Dropped is the number of removed rows (drop strategy only).
	Dropped int
	// Filled maps column name to the number of cells filled.
	Filled map[string]int
	// Warnings describes columns whose fill value was undefined.
	Warnings []string
}

// Apply returns a cleaned copy of d; d itself is left untouched. numeric names the
// columns the strategy applies to, normally the classification's numeric set.
func Apply(d *dataset.Dataset, numeric []string, s Strategy) (*Result, error) {
	cols := make([]*dataset.Column, 0, len(numeric))
	for _, name := range numeric {
		c, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if !c.IsNumeric() {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		cols = append(cols, c)
	}
	switch s {
	case DropRows:
		return dropRows(d, cols), nil
	case FillMean:
		return fill(d, cols, s, "mean", stats.Mean)
	case FillMedian:
		return fill(d, cols, s, "median", stats.Median)
	}
	return nil, fmt.Errorf("unknown missing-value strategy %q", s)
}

func dropRows(d *dataset.Dataset, cols []*dataset.Column) *Result {
	keep := make([]int, 0, d.Rows())
	for i := 0; i < d.Rows(); i++ {
		complete := true
		for _, c := range cols {
			if c.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return &Result{
		Data:     d.SelectRows(keep),
		Strategy: DropRows,
		Dropped:  d.Rows() - len(keep),
		Filled:   map[string]int{},
	}
}

func fill(d *dataset.Dataset, cols []*dataset.Column, s Strategy, label string, statistic func([]float64) float64) (*Result, error) {
	res := &Result{Data: d, Strategy: s, Filled: map[string]int{}}
	for _, c := range cols {
		missing := c.MissingCount()
		if missing == 0 {
			continue
		}
		values := c.Floats()
		present := make([]float64, 0, len(values)-missing)
		for _, v := range values {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		fillValue := statistic(present)
		if math.IsNaN(fillValue) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %q has no non-missing values; %s is undefined", c.Name, label))
			continue
		}
		cells := make([]string, c.Len())
		for i := range cells {
			if c.IsMissing(i) {
				cells[i] = dataset.FormatNumber(fillValue)
				continue
			}
			cells[i] = c.Raw(i)
		}
		next, err := res.Data.WithColumn(dataset.NewColumn(c.Name, cells))
		if err != nil {
			return nil, err
		}
		res.Data = next
		res.Filled[c.Name] = missing
	}
	return res, nil
}
