// Package datasets reads the Kaggle Forest Cover Type CSV files into
// column frames and gonum matrices, and writes submission files.
package datasets

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// Kind is the storage type a column would have in a dataframe library.
type Kind string

// Column kinds.
const (
	Int64   Kind = "int64"
	Float64 Kind = "float64"
)

// Dtype pairs a column name with its kind.
type Dtype struct {
	Name string
	Kind Kind
}

// GroupCount is the number of rows holding Value in a column.
type GroupCount struct {
	Value float64
	Count int
}

// Frame is a table of named numeric columns stored column by column.
type Frame struct {
	names   []string
	columns [][]float64
	index   map[string]int
}

// NewFrame builds a frame from equally long columns.
func NewFrame(names []string, columns [][]float64) (*Frame, error) {
	if len(names) != len(columns) {
		return nil, errors.NewDimensionError("NewFrame", len(names), len(columns), 1)
	}
	f := &Frame{
		names:   append([]string(nil), names...),
		columns: columns,
		index:   make(map[string]int, len(names)),
	}
	for j, name := range names {
		if _, dup := f.index[name]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column name", name)
		}
		f.index[name] = j
		if len(columns[j]) != len(columns[0]) {
			return nil, errors.NewDimensionError("NewFrame", len(columns[0]), len(columns[j]), 0)
		}
	}
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return len(f.columns[0])
}

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.names) }

// Names returns the column names in file order.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the values of a column. The slice is shared with the frame.
func (f *Frame) Column(name string) ([]float64, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueError("Frame.Column", "no column named "+name)
	}
	return f.columns[j], nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Frame{index: make(map[string]int)}
	for j, n := range f.names {
		if skip[n] {
			continue
		}
		out.index[n] = len(out.names)
		out.names = append(out.names, n)
		out.columns = append(out.columns, f.columns[j])
	}
	return out
}

// Matrix copies the named columns, or all columns when none are given,
// into a row-major matrix.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = f.names
	}
	n := f.NRows()
	if n == 0 || len(names) == 0 {
		return nil, errors.ErrEmptyData
	}
	out := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, col)
	}
	return out, nil
}

// Dtypes reports int64 for columns whose values are all integral and
// float64 otherwise.
func (f *Frame) Dtypes() []Dtype {
	out := make([]Dtype, len(f.names))
	for j, name := range f.names {
		out[j] = Dtype{Name: name, Kind: kindOf(f.columns[j])}
	}
	return out
}

func kindOf(col []float64) Kind {
	for _, v := range col {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return Float64
		}
	}
	return Int64
}

// GroupCounts counts the rows per distinct value of a column, sorted by
// value.
func (f *Frame) GroupCounts(name string) ([]GroupCount, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	counts := make(map[float64]int)
	for _, v := range col {
		counts[v]++
	}
	out := make([]GroupCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, GroupCount{Value: v, Count: c})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value < out[b].Value })
	return out, nil
}
