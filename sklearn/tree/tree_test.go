package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// elevationBands は標高帯ごとに被覆タイプが決まる小さなデータ。
// 列は Elevation, Slope, Soil_Type7 (常に 0), Soil_Type15 (常に 0)。
func elevationBands() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(9, 4, []float64{
		2100, 3, 0, 0,
		2150, 12, 0, 0,
		2180, 7, 0, 0,
		2600, 4, 0, 0,
		2650, 15, 0, 0,
		2700, 9, 0, 0,
		3200, 2, 0, 0,
		3250, 11, 0, 0,
		3300, 6, 0, 0,
	})
	y := mat.NewDense(9, 1, []float64{2, 2, 2, 5, 5, 5, 7, 7, 7})
	return X, y
}

func TestDecisionTreeClassifierKeepsCoverTypeLabels(t *testing.T) {
	X, y := elevationBands()

	for _, crit := range []string{"gini", "entropy"} {
		t.Run(crit, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(crit), WithRandomState(0))
			require.NoError(t, dt.Fit(X, y))
			assert.Equal(t, []int{2, 5, 7}, dt.Classes())
			assert.Equal(t, 1.0, dt.Score(X, y))

			// 未知の点でも元のラベルで返る
			pred, err := dt.Predict(mat.NewDense(2, 4, []float64{2000, 5, 0, 0, 3400, 5, 0, 0}))
			require.NoError(t, err)
			assert.Equal(t, 2.0, pred.At(0, 0))
			assert.Equal(t, 7.0, pred.At(1, 0))

			proba, err := dt.PredictProba(X)
			require.NoError(t, err)
			_, cols := proba.Dims()
			require.Equal(t, 3, cols)
			for i := 0; i < 9; i++ {
				assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, i, proba)), 1e-12)
			}
			// 列は Classes() の順
			assert.Equal(t, 1.0, proba.At(4, 1))
		})
	}
}

func TestConstantSoilColumnsHaveNoImportance(t *testing.T) {
	X, y := elevationBands()
	dt := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 4)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-12)
	assert.Equal(t, 0.0, imp[2])
	assert.Equal(t, 0.0, imp[3])
	assert.Greater(t, imp[0], imp[1])

	for i, nd := range dt.Tree().Nodes {
		if !dt.Tree().IsLeaf(i) {
			assert.NotContains(t, []int{2, 3}, nd.Feature)
		}
	}
}

func TestMaxFeaturesSkipsConstantColumns(t *testing.T) {
	// 定数列は max_features の枠を消費しない
	n := 10
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		if i >= 5 {
			y.Set(i, 0, 1)
		}
	}

	for seed := int64(0); seed < 5; seed++ {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeaturesN(1)), WithRandomState(seed))
		require.NoError(t, dt.Fit(X, y))
		root := dt.Tree().Nodes[0]
		assert.Equal(t, 0, root.Feature, "seed %d", seed)
		assert.Equal(t, 4.5, root.Threshold, "seed %d", seed)
		assert.Equal(t, 1, dt.GetDepth())
	}
}

func TestMaxFeaturesDrawIsSeeded(t *testing.T) {
	n := 40
	X := mat.NewDense(n, 6, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 6; j++ {
			X.Set(i, j, float64((i*(j+3))%17))
		}
		y.Set(i, 0, float64(i%3+1))
	}

	fit := func(seed int64) *Tree {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(MaxFeaturesLog2), WithRandomState(seed))
		require.NoError(t, dt.Fit(X, y))
		return dt.Tree()
	}
	assert.Equal(t, fit(7).Nodes, fit(7).Nodes)
}

func TestRandomSplitterThresholds(t *testing.T) {
	X, y := elevationBands()
	elev, slope := mat.Col(nil, 0, X), mat.Col(nil, 1, X)
	ranges := [][2]float64{{floats.Min(elev), floats.Max(elev)}, {floats.Min(slope), floats.Max(slope)}}

	fit := func(seed int64) *DecisionTreeClassifier {
		et := NewExtraTreeClassifier(WithMaxFeatures(MaxFeaturesAll), WithRandomState(seed))
		require.NoError(t, et.Fit(X, y))
		return et
	}
	a := fit(1)
	assert.Equal(t, 1.0, a.Score(X, y))
	for i, nd := range a.Tree().Nodes {
		if a.Tree().IsLeaf(i) {
			continue
		}
		// 一様乱数の閾値は [min, max) に収まる
		r := ranges[nd.Feature]
		assert.GreaterOrEqual(t, nd.Threshold, r[0])
		assert.Less(t, nd.Threshold, r[1])
	}
	assert.NotEqual(t, a.Tree().Nodes[0].Threshold, fit(2).Tree().Nodes[0].Threshold)
}

func TestFriedmanMSEMatchesMSESplits(t *testing.T) {
	// 固定されたノードでは両者の改善量は定数倍の関係なので同じ木になる
	X := mat.NewDense(8, 2, []float64{
		0, 3, 1, 1, 2, 4, 3, 1,
		4, 5, 5, 9, 6, 2, 7, 6,
	})
	y := mat.NewDense(8, 1, []float64{1, 2, 4, 8, 16, 32, 64, 128})

	mse := NewDecisionTreeRegressor(WithCriterion("mse"), WithMaxDepth(2), WithRandomState(0))
	fri := NewDecisionTreeRegressor(WithCriterion("friedman_mse"), WithMaxDepth(2), WithRandomState(0))
	require.NoError(t, mse.Fit(X, y))
	require.NoError(t, fri.Fit(X, y))

	require.Len(t, fri.Tree().Nodes, len(mse.Tree().Nodes))
	for i := range mse.Tree().Nodes {
		assert.Equal(t, mse.Tree().Nodes[i].Feature, fri.Tree().Nodes[i].Feature)
		assert.Equal(t, mse.Tree().Nodes[i].Threshold, fri.Tree().Nodes[i].Threshold)
	}
	assert.Equal(t, 0, mse.Tree().Nodes[0].Feature)
	assert.Equal(t, 5.5, mse.Tree().Nodes[0].Threshold)
}

func TestGrowthLimits(t *testing.T) {
	n := 16
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2+1))
	}

	tests := []struct {
		name  string
		opts  []Option
		check func(t *testing.T, dt *DecisionTreeClassifier)
	}{
		{"max_depth", []Option{WithMaxDepth(2)}, func(t *testing.T, dt *DecisionTreeClassifier) {
			assert.LessOrEqual(t, dt.GetDepth(), 2)
		}},
		{"min_samples_leaf", []Option{WithMinSamplesLeaf(3)}, func(t *testing.T, dt *DecisionTreeClassifier) {
			for i, nd := range dt.Tree().Nodes {
				if dt.Tree().IsLeaf(i) {
					assert.GreaterOrEqual(t, nd.NSamples, 3)
				}
			}
		}},
		{"min_samples_split", []Option{WithMinSamplesSplit(9)}, func(t *testing.T, dt *DecisionTreeClassifier) {
			for i, nd := range dt.Tree().Nodes {
				if !dt.Tree().IsLeaf(i) {
					assert.GreaterOrEqual(t, nd.NSamples, 9)
				}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(append(tt.opts, WithRandomState(0))...)
			require.NoError(t, dt.Fit(X, y))
			tt.check(t, dt)
		})
	}
}

func TestDecisionTreeClassifierParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	p := dt.GetParams()
	assert.Equal(t, "gini", p["criterion"])
	assert.Equal(t, "best", p["splitter"])
	assert.Equal(t, 2, p["min_samples_split"])
	assert.Equal(t, "all", p["max_features"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":        "entropy",
		"max_depth":        5,
		"min_samples_leaf": 2,
		"max_features":     "log2",
	}))
	clone := dt.Clone().(*DecisionTreeClassifier).GetParams()
	assert.Equal(t, "entropy", clone["criterion"])
	assert.Equal(t, 5, clone["max_depth"])
	assert.Equal(t, 2, clone["min_samples_leaf"])
	assert.Equal(t, "log2", clone["max_features"])

	// YAML からは整数も小数も nil も来る
	for in, want := range map[interface{}]string{3: "3", 0.5: "0.5", nil: "all", "sqrt": "sqrt"} {
		require.NoError(t, dt.SetParams(map[string]interface{}{"max_features": in}))
		assert.Equal(t, want, dt.GetParams()["max_features"])
	}
	require.NoError(t, dt.SetParams(map[string]interface{}{"max_depth": nil}))
	assert.Equal(t, -1, dt.GetParams()["max_depth"])

	assert.Error(t, dt.SetParams(map[string]interface{}{"max_features": 2.5}))
}

func TestDecisionTreeClassifierPredictErrors(t *testing.T) {
	X, y := elevationBands()
	dt := NewDecisionTreeClassifier()

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}
