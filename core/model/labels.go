package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// UniqueClasses returns the sorted distinct integer labels of a column vector.
func UniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// ClassIndex maps each label to its position in classes.
func ClassIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// EncodeLabels converts the labels of y to indices into classes.
// Labels absent from classes map to -1.
func EncodeLabels(y mat.Matrix, classes []int) []int {
	rows, _ := y.Dims()
	idx := ClassIndex(classes)
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		k, ok := idx[int(y.At(i, 0))]
		if !ok {
			k = -1
		}
		out[i] = k
	}
	return out
}

// LabelsToMatrix builds an n × 1 prediction matrix from class indices.
func LabelsToMatrix(indices []int, classes []int) *mat.Dense {
	out := mat.NewDense(len(indices), 1, nil)
	for i, k := range indices {
		out.Set(i, 0, float64(classes[k]))
	}
	return out
}

// ArgmaxRows returns, for every row of m, the column holding the largest value.
// Ties resolve to the lowest column.
func ArgmaxRows(m mat.Matrix) []int {
	rows, cols := m.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		best := 0
		bestVal := m.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := m.At(i, j); v > bestVal {
				best, bestVal = j, v
			}
		}
		out[i] = best
	}
	return out
}

// LabelsFromMatrix reads the first column of y as integer labels.
func LabelsFromMatrix(y mat.Matrix) []int {
	rows, _ := y.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = int(y.At(i, 0))
	}
	return out
}
