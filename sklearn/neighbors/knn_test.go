package neighbors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func TestKNeighborsClassifierPredict(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		10, 10,
		10, 11,
		11, 10,
	})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 2, 2, 2})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(2, 2, []float64{0.2, 0.2, 9, 9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, mat.Col(nil, 0, pred))

	idx, dist, err := knn.Kneighbors(mat.NewDense(1, 2, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, 0, idx[0][0])
	assert.ElementsMatch(t, []int{0, 1, 2}, idx[0])
	assert.InDelta(t, 0.0, dist[0][0], 1e-12)
	assert.InDelta(t, 1.0, dist[0][2], 1e-12)
}

func TestKNeighborsClassifierVoteTie(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, 1, -2, 2})
	y := mat.NewDense(4, 1, []float64{5, 3, 5, 3})

	knn := NewKNeighborsClassifier(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))

	// 2票ずつに割れたら小さいラベル
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(0, 0))

	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, proba.At(0, 0))
	assert.Equal(t, 0.5, proba.At(0, 1))
}

func TestKNeighborsClassifierDistanceWeights(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 3, 4})
	y := mat.NewDense(3, 1, []float64{0, 1, 1})

	uniform := NewKNeighborsClassifier(WithNNeighbors(3))
	weighted := NewKNeighborsClassifier(WithNNeighbors(3), WithWeights("distance"))
	require.NoError(t, uniform.Fit(X, y))
	require.NoError(t, weighted.Fit(X, y))

	q := mat.NewDense(1, 1, []float64{1})
	p1, err := uniform.Predict(q)
	require.NoError(t, err)
	p2, err := weighted.Predict(q)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p1.At(0, 0))
	assert.Equal(t, 0.0, p2.At(0, 0))

	proba, err := weighted.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba.At(0, 0))
}

func TestKNeighborsClassifierManhattan(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 3, 3})
	y := mat.NewDense(2, 1, []float64{0, 1})
	knn := NewKNeighborsClassifier(WithNNeighbors(1), WithP(1))
	require.NoError(t, knn.Fit(X, y))

	_, dist, err := knn.Kneighbors(mat.NewDense(1, 2, []float64{1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, dist[0][0], 1e-12)
}

func TestKNeighborsClassifierParallelMatchesSequential(t *testing.T) {
	// blockRows を超える件数で並列経路を通す
	n := 3*blockRows + 17
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i) * 0.37
		X.Set(i, 0, math.Cos(a)*float64(i%7))
		X.Set(i, 1, math.Sin(a)*float64(i%5))
		y.Set(i, 0, float64(i%3))
	}
	knn := NewKNeighborsClassifier()
	require.NoError(t, knn.Fit(X, y))

	all, err := knn.Predict(X)
	require.NoError(t, err)
	for _, i := range []int{0, blockRows, n - 1} {
		one, err := knn.Predict(X.Slice(i, i+1, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, one.At(0, 0), all.At(i, 0), "row %d", i)
	}
}

func TestKNeighborsClassifierErrors(t *testing.T) {
	knn := NewKNeighborsClassifier()
	_, err := knn.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = knn.Fit(mat.NewDense(3, 1, nil), mat.NewDense(3, 1, nil))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	clone := NewKNeighborsClassifier(WithNNeighbors(2)).Clone().(*KNeighborsClassifier)
	assert.Equal(t, 2, clone.GetParams()["n_neighbors"])
}

func TestKNeighborsClassifierSetParams(t *testing.T) {
	c := NewKNeighborsClassifier()
	require.NoError(t, c.SetParams(map[string]interface{}{"n_neighbors": 3, "weights": "distance", "algorithm": "auto"}))
	params := c.GetParams()
	assert.Equal(t, 3, params["n_neighbors"])
	assert.Equal(t, "distance", params["weights"])
	assert.Error(t, c.SetParams(map[string]interface{}{"leaf_size": 30}))
}
