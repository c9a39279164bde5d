package svm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0.3, 0.1, 0.1, 0.4,
		4, 4, 4.2, 3.9, 3.8, 4.3,
		0, 4, 0.2, 4.1, -0.1, 3.8,
	})
	y := mat.NewDense(9, 1, []float64{1, 1, 1, 2, 2, 2, 3, 3, 3})
	return X, y
}

func TestSVCMulticlass(t *testing.T) {
	X, y := blobs()
	for _, kernel := range []string{"rbf", "linear"} {
		t.Run(kernel, func(t *testing.T) {
			svc := NewSVC(WithKernel(kernel), WithC(10))
			require.NoError(t, svc.Fit(X, y))

			pred, err := svc.Predict(X)
			require.NoError(t, err)
			assert.Equal(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred))

			dec, err := svc.DecisionFunction(X)
			require.NoError(t, err)
			_, c := dec.Dims()
			assert.Equal(t, 3, c)
			// 1 対 2 の機械はクラス 1 の点で正
			assert.Greater(t, dec.At(0, 0), 0.0)
			assert.Less(t, dec.At(3, 0), 0.0)

			proba, err := svc.PredictProba(X)
			require.NoError(t, err)
			for i := 0; i < 9; i++ {
				assert.InDelta(t, 1.0, mat.Sum(proba.(*mat.Dense).RowView(i)), 1e-12)
			}

			n := 0
			for _, c := range svc.NSupport() {
				n += c
			}
			assert.Equal(t, len(svc.Support()), n)
			assert.NotEmpty(t, svc.Support())
		})
	}
}

func TestSolveSMOLinearSeparable(t *testing.T) {
	// 1 次元で -1 と +1 に分かれる単純な問題、解析解は w=1, b=0
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := []float64{-1, -1, 1, 1}
	kfn, err := kernelParams{kernel: "linear"}.function()
	require.NoError(t, err)
	kr, err := newKernelRows(X, kfn, 1)
	require.NoError(t, err)

	res := solveSMO(kr, y, 100, 1e-6, 1000)
	assert.False(t, res.hit)
	assert.InDelta(t, 0.0, res.alpha[0], 1e-4)
	assert.InDelta(t, 0.5, res.alpha[1], 1e-4)
	assert.InDelta(t, 0.5, res.alpha[2], 1e-4)
	assert.InDelta(t, 0.0, res.alpha[3], 1e-4)
	assert.InDelta(t, 0.0, res.rho, 1e-4)

	// 双対制約 y'a = 0
	sum := 0.0
	for i, a := range res.alpha {
		sum += a * y[i]
	}
	assert.InDelta(t, 0.0, sum, 1e-12)
}

func TestKernelRowsCache(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	kfn, err := kernelParams{kernel: "rbf", gamma: 1}.function()
	require.NoError(t, err)
	kr, err := newKernelRows(X, kfn, 1)
	require.NoError(t, err)

	r := kr.row(0)
	assert.InDelta(t, 1.0, r[0], 1e-12)
	assert.Equal(t, 1, kr.cache.Len())
	again := kr.row(0)
	assert.Same(t, &r[0], &again[0])
}

func TestPairBudgetSharesCache(t *testing.T) {
	tests := []struct {
		pairs, cpus int
		workers     int
		mb          float64
	}{
		{21, 8, 8, 25},
		{21, 32, 21, 200.0 / 21},
		{1, 8, 1, 200},
		{3, 0, 1, 200},
	}
	for _, tt := range tests {
		w, mb := pairBudget(200, tt.pairs, tt.cpus)
		assert.Equal(t, tt.workers, w)
		assert.InDelta(t, tt.mb, mb, 1e-12)
		// 同時に動く全ペアのキャッシュ合計は cache_size を超えない
		assert.LessOrEqual(t, float64(w)*mb, 200.0+1e-9)
	}
}

func TestResolveGamma(t *testing.T) {
	X := mat.NewDense(2, 4, []float64{0, 0, 0, 0, 2, 2, 2, 2})
	g, err := resolveGamma("auto", 0, X)
	require.NoError(t, err)
	assert.Equal(t, 0.25, g)

	g, err = resolveGamma("scale", 0, X)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, g, 1e-12)

	_, err = resolveGamma("value", -1, X)
	assert.Error(t, err)
}

func TestSVCConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := blobs()
	svc := NewSVC(WithMaxIter(1))
	require.NoError(t, svc.Fit(X, y))
	require.NotEmpty(t, warnings)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
}

func TestSVCParams(t *testing.T) {
	svc := NewSVC()
	require.NoError(t, svc.SetParams(map[string]interface{}{"gamma": 0.5, "C": 2}))
	params := svc.GetParams()
	assert.Equal(t, "0.5", params["gamma"])
	assert.Equal(t, 2.0, params["C"])
	assert.Equal(t, params, svc.Clone().(*SVC).GetParams())

	assert.Error(t, svc.SetParams(map[string]interface{}{"nu": 0.1}))

	_, err := NewSVC().Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewSVC(WithKernel("cosine")).Fit(blobs())
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
