// Package summary prints and plots descriptive statistics of the
// training frame.
package summary

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/forestcover/datasets"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// CorrelationMatrix returns the Pearson correlation between every pair of
// columns of frame, Id excluded, together with the column names. Columns
// with zero variance correlate as NaN with everything, themselves included.
func CorrelationMatrix(frame *datasets.Frame) (*mat.SymDense, []string, error) {
	frame = frame.Drop(datasets.IDColumn)
	names := frame.Names()
	if frame.NRows() < 2 {
		return nil, nil, errors.NewValueError("CorrelationMatrix", "at least two rows are required")
	}
	X, err := frame.Matrix(names...)
	if err != nil {
		return nil, nil, err
	}
	corr := mat.NewSymDense(len(names), nil)
	stat.CorrelationMatrix(corr, X, nil)
	// stat は対角を常に 1 にするので、分散ゼロの列は NaN に戻す
	for j := range names {
		if stat.Variance(mat.Col(nil, j, X), nil) == 0 {
			corr.SetSym(j, j, math.NaN())
		}
	}
	return corr, names, nil
}
