// Package naive_bayes implements the Gaussian naive Bayes classifier.
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// GaussianNB models every feature as an independent normal distribution
// per class.
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64
	priors       []float64

	classes    []int
	classPrior []float64
	theta      *mat.Dense // class means, n_classes x n_features
	sigma      *mat.Dense // class variances, n_classes x n_features
	epsilon    float64
}

// GaussianNBOption configures a GaussianNB.
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing sets the fraction of the largest feature variance added
// to every variance.
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithClassPriors fixes the class priors.
func WithClassPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.priors = append([]float64(nil), priors...) }
}

// NewGaussianNB creates a GaussianNB with var_smoothing 1e-9.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{state: model.NewStateManager(), varSmoothing: 1e-9}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit estimates per-class means and variances.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("GaussianNB.Fit", n, ny, 0)
	}
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.varSmoothing)
	}
	nb.state.Reset()

	nb.classes = model.UniqueClasses(y)
	K := len(nb.classes)
	labels := model.EncodeLabels(y, nb.classes)

	// 全特徴量の分散の最大値に比例した平滑化項
	col := make([]float64, n)
	maxVar := 0.0
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.epsilon = nb.varSmoothing * maxVar

	nb.theta = mat.NewDense(K, d, nil)
	nb.sigma = mat.NewDense(K, d, nil)
	counts := make([]float64, K)
	byClass := make([][]int, K)
	for i, k := range labels {
		counts[k]++
		byClass[k] = append(byClass[k], i)
	}
	for k, rows := range byClass {
		vals := make([]float64, len(rows))
		for j := 0; j < d; j++ {
			for r, i := range rows {
				vals[r] = X.At(i, j)
			}
			mean, v := stat.PopMeanVariance(vals, nil)
			nb.theta.Set(k, j, mean)
			nb.sigma.Set(k, j, v+nb.epsilon)
		}
	}

	if nb.priors != nil {
		if len(nb.priors) != K {
			return errors.NewDimensionError("GaussianNB.Fit", K, len(nb.priors), 1)
		}
		if math.Abs(floats.Sum(nb.priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", nb.priors)
		}
		nb.classPrior = append([]float64(nil), nb.priors...)
	} else {
		nb.classPrior = make([]float64, K)
		floats.ScaleTo(nb.classPrior, 1/float64(n), counts)
	}

	nb.state.SetDimensions(d, n)
	nb.state.SetFitted()
	return nil
}

// jointLogLikelihood returns log P(c) + log P(x|c) for every row and class.
func (nb *GaussianNB) jointLogLikelihood(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.CheckPredictInput("GaussianNB", method, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	K := len(nb.classes)
	out := mat.NewDense(n, K, nil)
	for k := 0; k < K; k++ {
		mean := nb.theta.RawRowView(k)
		variance := nb.sigma.RawRowView(k)
		norm := math.Log(nb.classPrior[k])
		for j := 0; j < d; j++ {
			norm -= 0.5 * math.Log(2*math.Pi*variance[j])
		}
		for i := 0; i < n; i++ {
			ll := norm
			for j := 0; j < d; j++ {
				diff := X.At(i, j) - mean[j]
				ll -= 0.5 * diff * diff / variance[j]
			}
			out.Set(i, k, ll)
		}
	}
	return out, nil
}

// Predict returns the class maximising the joint log likelihood.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(jll), nb.classes), nil
}

// PredictLogProba returns normalised log posteriors.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (*mat.Dense, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	n, _ := jll.Dims()
	for i := 0; i < n; i++ {
		row := jll.RawRowView(i)
		floats.AddConst(-errors.LogSumExp(row), row)
	}
	return jll, nil
}

// PredictProba returns posterior class probabilities.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictProba", X)
	if err != nil {
		return nil, err
	}
	n, _ := jll.Dims()
	for i := 0; i < n; i++ {
		errors.Softmax(jll.RawRowView(i))
	}
	return jll, nil
}

// Classes returns the sorted class labels.
func (nb *GaussianNB) Classes() []int { return nb.classes }

// Theta returns the per-class feature means.
func (nb *GaussianNB) Theta() *mat.Dense { return nb.theta }

// Sigma returns the per-class feature variances, smoothing included.
func (nb *GaussianNB) Sigma() *mat.Dense { return nb.sigma }

// ClassPrior returns the class priors used by the fitted model.
func (nb *GaussianNB) ClassPrior() []float64 { return nb.classPrior }

// Clone returns an unfitted copy.
func (nb *GaussianNB) Clone() model.Estimator {
	opts := []GaussianNBOption{WithVarSmoothing(nb.varSmoothing)}
	if nb.priors != nil {
		opts = append(opts, WithClassPriors(nb.priors))
	}
	return NewGaussianNB(opts...)
}

// GetParams returns the hyperparameters.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// SetParams updates hyperparameters by name.
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		switch key {
		case "var_smoothing":
			f, err := model.FloatParam(key, v)
			if err != nil {
				return err
			}
			nb.varSmoothing = f
		default:
			return model.UnknownParam("GaussianNB", key)
		}
	}
	return nil
}
