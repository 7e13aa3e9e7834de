package dataset

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Classification partitions column names by kind, both in dataset column order.
type Classification struct {
	Numeric     []string
	Categorical []string
	kinds       map[string]Kind
}

// Classify splits the dataset's columns into numeric and categorical sets. A column is
// numeric iff every value is a number or missing; an all-missing column counts as numeric.
// It returns a *NoNumericDataError when no column is numeric.
func Classify(d *Dataset) (Classification, error) {
	cls := Classification{kinds: make(map[string]Kind, len(d.cols))}
	for _, c := range d.cols {
		if c.IsNumeric() {
			cls.Numeric = append(cls.Numeric, c.Name)
			cls.kinds[c.Name] = KindNumeric
			continue
		}
		cls.Categorical = append(cls.Categorical, c.Name)
		cls.kinds[c.Name] = KindCategorical
	}
	if len(cls.Numeric) == 0 {
		return cls, &NoNumericDataError{Name: d.Name, Columns: d.Names()}
	}
	return cls, nil
}

// KindOf returns the kind of the named column; ok is false for unknown names.
func (c Classification) KindOf(name string) (Kind, bool) {
	k, ok := c.kinds[name]
	return k, ok
}

// All returns every classified column name, numeric first.
func (c Classification) All() []string {
	out := make([]string, 0, len(c.Numeric)+len(c.Categorical))
	out = append(out, c.Numeric...)
	return append(out, c.Categorical...)
}
