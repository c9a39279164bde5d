package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func TestKFoldSplitContiguous(t *testing.T) {
	X := mat.NewDense(11, 1, nil)
	folds, err := NewKFold(3, false, 0).Split(X, nil)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6, 7}, folds[1].TestIndices)
	assert.Equal(t, []int{8, 9, 10}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 8, 9, 10}, folds[1].TrainIndices)
}

func TestKFoldCoversEveryRowOnce(t *testing.T) {
	X := mat.NewDense(23, 2, nil)
	folds, err := NewKFold(10, true, 7).Split(X, nil)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, 23, len(f.TrainIndices)+len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	assert.Len(t, seen, 23)
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d", i)
	}

	again, err := NewKFold(10, true, 7).Split(X, nil)
	require.NoError(t, err)
	assert.Equal(t, folds, again)
}

func TestKFoldTooManySplits(t *testing.T) {
	_, err := NewKFold(5, false, 0).Split(mat.NewDense(3, 1, nil), nil)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTrainTestSplit(t *testing.T) {
	n := 10
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*10))
		y.Set(i, 0, float64(i))
	}

	xTr, xTe, yTr, yTe, err := TrainTestSplit(X, y, 0.2, 11)
	require.NoError(t, err)
	r, _ := xTr.Dims()
	assert.Equal(t, 8, r)
	r, _ = xTe.Dims()
	assert.Equal(t, 2, r)

	// 行と対応するラベルがずれない
	for i := 0; i < 8; i++ {
		assert.Equal(t, xTr.At(i, 0), yTr.At(i, 0))
		assert.Equal(t, xTr.At(i, 0)*10, xTr.At(i, 1))
	}
	for i := 0; i < 2; i++ {
		assert.Equal(t, xTe.At(i, 0), yTe.At(i, 0))
	}

	xTr2, _, _, _, err := TrainTestSplit(X, y, 0.2, 11)
	require.NoError(t, err)
	assert.True(t, mat.Equal(xTr, xTr2))

	_, _, _, _, err = TrainTestSplit(X, y, 1.5, 11)
	assert.Error(t, err)
}
