package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/boxheat-cli/internal/dataset"
	"github.com/KaramelBytes/boxheat-cli/internal/stats"
)

// Method is a correlation method.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
	Kendall  Method = "kendall"
)

// Methods lists the supported correlation methods.
var Methods = []Method{Pearson, Spearman, Kendall}

// ParseMethod accepts a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Pearson, Spearman, Kendall:
		return m, nil
	}
	return "", fmt.Errorf("unknown correlation method %q (use pearson|spearman|kendall)", s)
}

func (m Method) fn() func(x, y []float64) float64 {
	switch m {
	case Spearman:
		return stats.Spearman
	case Kendall:
		return stats.Kendall
	}
	return stats.Pearson
}

// CorrMatrix holds a symmetric correlation matrix across numeric columns.
type CorrMatrix struct {
	Method  Method
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]; NaN where undefined
}

// At returns the coefficient for the named pair.
func (m *CorrMatrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, name := range m.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

// Correlate computes the matrix over cols in the given order. Each pair uses only rows
// where both values are present. The diagonal is always 1.
func Correlate(d *dataset.Dataset, cols []string, method Method) (*CorrMatrix, error) {
	series := make([][]float64, len(cols))
	for i, name := range cols {
		c, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if !c.IsNumeric() {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		series[i] = c.Floats()
	}
	corr := method.fn()
	n := len(cols)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
		mat[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			x, y := pairwiseComplete(series[a], series[b])
			r := corr(x, y)
			mat[a][b] = r
			mat[b][a] = r
		}
	}
	return &CorrMatrix{Method: method, Columns: append([]string{}, cols...), Values: mat}, nil
}

func pairwiseComplete(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
