package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/preprocessing"
)

// thresholdClassifier predicts 1 when the first feature is positive.
// It records the input it was fitted on.
type thresholdClassifier struct {
	seen   *mat.Dense
	fitted bool
}

func (c *thresholdClassifier) Fit(X, y mat.Matrix) error {
	c.seen = mat.DenseCopyOf(X)
	c.fitted = true
	return nil
}

func (c *thresholdClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.fitted {
		return nil, errors.NewNotFittedError("thresholdClassifier", "Predict")
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if X.At(i, 0) > 0 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (c *thresholdClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return nil, err
	}
	r, _ := pred.Dims()
	out := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		out.Set(i, int(pred.At(i, 0)), 1)
	}
	return out, nil
}

func (c *thresholdClassifier) Classes() []int { return []int{0, 1} }

func (c *thresholdClassifier) Clone() model.Estimator { return &thresholdClassifier{} }

func TestNewPipelineValidation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"empty name", []Step{{"", &thresholdClassifier{}}}},
		{"double underscore", []Step{{"a__b", &thresholdClassifier{}}}},
		{"duplicate", []Step{
			{"s", preprocessing.NewStandardScalerDefault()},
			{"s", &thresholdClassifier{}},
		}},
		{"last not estimator", []Step{{"Scaler", preprocessing.NewStandardScalerDefault()}}},
		{"middle not transformer", []Step{
			{"a", &thresholdClassifier{}},
			{"b", &thresholdClassifier{}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.steps...)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestPipelineFitPredict(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{10, 20, 30, 40})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	clf := &thresholdClassifier{}
	p, err := NewPipeline(
		Step{"Scaler", preprocessing.NewStandardScalerDefault()},
		Step{"Threshold", clf},
	)
	require.NoError(t, err)

	_, err = p.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, p.Fit(X, y))
	// 最終ステップには標準化済みの特徴量が渡る
	assert.InDelta(t, 0.0, mat.Sum(clf.seen), 1e-12)

	pred, err := p.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, mat.Col(nil, 0, pred))

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	proba, err := p.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba.At(3, 1))
	assert.Equal(t, []int{0, 1}, p.Classes())
	assert.Equal(t, []string{"Scaler", "Threshold"}, p.Steps())
}

func TestPipelineCloneAndParams(t *testing.T) {
	p := MustPipeline(
		Step{"Scaler", preprocessing.NewStandardScalerDefault()},
		Step{"Threshold", &thresholdClassifier{}},
	)
	require.NoError(t, p.Fit(mat.NewDense(2, 1, []float64{-1, 1}), mat.NewDense(2, 1, []float64{0, 1})))

	c := p.Clone().(*Pipeline)
	_, err := c.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
	assert.NotSame(t, p.Final(), c.Final())

	params := p.GetParams()
	assert.Equal(t, true, params["Scaler__with_mean"])
	assert.Contains(t, p.String(), "Scaler, Threshold")
}

// failOnce は二回目以降の Fit で失敗する
type failOnce struct {
	thresholdClassifier
	calls int
}

func (c *failOnce) Fit(X, y mat.Matrix) error {
	c.calls++
	if c.calls > 1 {
		return errors.New("refit failed")
	}
	return c.thresholdClassifier.Fit(X, y)
}

func TestPipelineFitState(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{10, 20, 30, 40})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	p := MustPipeline(
		Step{"Scaler", preprocessing.NewStandardScalerDefault()},
		Step{"Threshold", &failOnce{}},
	)
	require.NoError(t, p.Fit(X, y))

	_, err := p.Predict(mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Pipeline.Predict", de.Op)
	assert.Equal(t, 1, de.Expected)

	// 再学習に失敗したパイプラインは未学習に戻る
	require.Error(t, p.Fit(X, y))
	_, err = p.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
