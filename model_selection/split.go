// Package model_selection provides data splitters and cross-validation
// helpers for estimators operating on gonum matrices.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// Splitter yields train/test index pairs over a dataset.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold is one train/test partition of row indices.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits consecutive folds. When Shuffle is set the
// rows are permuted with RandomSeed first.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a k-fold splitter. nSplits below 2 falls back to 3, the
// historic scikit-learn default.
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 3
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split returns NSplits folds. The first n % NSplits folds hold one extra
// test sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > nSamples {
		return nil, errors.NewValidationError("n_splits",
			"cannot be greater than the number of samples", kf.NSplits)
	}

	indices := permutation(nSamples, kf.Shuffle, kf.RandomSeed)

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	start := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		stop := start + size

		test := make([]int, size)
		copy(test, indices[start:stop])
		train := make([]int, 0, nSamples-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[stop:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		start = stop
	}
	return folds, nil
}

// TrainTestSplit shuffles the rows of X and y with seed and holds out
// ceil(testSize * n) of them. Row order inside each part follows the
// permutation.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (xTrain, xTest, yTrain, yTest *mat.Dense, err error) {
	n, _ := X.Dims()
	if ny, _ := y.Dims(); ny != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, ny, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit",
			"split leaves the train or test part empty")
	}

	perm := permutation(n, true, seed)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]
	return Rows(X, trainIdx), Rows(X, testIdx), Rows(y, trainIdx), Rows(y, testIdx), nil
}

// Rows copies the given rows of m, in order, into a new matrix.
func Rows(m mat.Matrix, indices []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	if d, ok := m.(mat.RawRowViewer); ok {
		for i, idx := range indices {
			out.SetRow(i, d.RawRowView(idx))
		}
		return out
	}
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(idx, j))
		}
	}
	return out
}

func permutation(n int, shuffle bool, seed int64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	return indices
}
