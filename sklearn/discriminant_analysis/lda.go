// Package discriminant_analysis implements linear discriminant analysis.
package discriminant_analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// LinearDiscriminantAnalysis is a linear classifier from class-conditional
// Gaussians sharing one covariance matrix. The shared covariance is the
// prior-weighted average of the per-class covariances and is inverted with
// an SVD pseudo-inverse, so constant features are tolerated.
type LinearDiscriminantAnalysis struct {
	state *model.StateManager

	priors []float64 // user supplied priors, nil means class frequencies
	tol    float64   // relative threshold for singular values

	classes   []int
	means     *mat.Dense // n_classes x n_features
	covar     *mat.Dense
	coef      *mat.Dense // n_classes x n_features
	intercept []float64
	priorsFit []float64
}

// LDAOption configures a LinearDiscriminantAnalysis.
type LDAOption func(*LinearDiscriminantAnalysis)

// WithPriors fixes the class priors instead of estimating them.
func WithPriors(priors []float64) LDAOption {
	return func(l *LinearDiscriminantAnalysis) {
		l.priors = append([]float64(nil), priors...)
	}
}

// WithTol sets the relative singular value cut-off of the pseudo-inverse.
func WithTol(tol float64) LDAOption {
	return func(l *LinearDiscriminantAnalysis) {
		l.tol = tol
	}
}

// NewLinearDiscriminantAnalysis creates an LDA classifier.
func NewLinearDiscriminantAnalysis(opts ...LDAOption) *LinearDiscriminantAnalysis {
	l := &LinearDiscriminantAnalysis{
		state: model.NewStateManager(),
		tol:   1e-4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fit estimates class means, priors and the shared covariance.
func (l *LinearDiscriminantAnalysis) Fit(X, y mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("LinearDiscriminantAnalysis.Fit", n, ny, 0)
	}
	if err := errors.CheckMatrix("LinearDiscriminantAnalysis.Fit", X); err != nil {
		return err
	}
	l.state.Reset()

	l.classes = model.UniqueClasses(y)
	K := len(l.classes)
	if K < 2 {
		return errors.Wrap(errors.ErrSingleClass, "LinearDiscriminantAnalysis.Fit")
	}
	labels := model.EncodeLabels(y, l.classes)

	counts := make([]float64, K)
	l.means = mat.NewDense(K, d, nil)
	for i, k := range labels {
		counts[k]++
		for j := 0; j < d; j++ {
			l.means.Set(k, j, l.means.At(k, j)+X.At(i, j))
		}
	}
	for k := 0; k < K; k++ {
		row := l.means.RawRowView(k)
		floats.Scale(1/counts[k], row)
	}

	if l.priors != nil {
		if len(l.priors) != K {
			return errors.NewDimensionError("LinearDiscriminantAnalysis.Fit", K, len(l.priors), 1)
		}
		l.priorsFit = append([]float64(nil), l.priors...)
		floats.Scale(1/floats.Sum(l.priorsFit), l.priorsFit)
	} else {
		l.priorsFit = make([]float64, K)
		floats.ScaleTo(l.priorsFit, 1/float64(n), counts)
	}

	// Σ = Σ_k prior_k * cov_k, cov_k がクラス内の（バイアス付き）共分散
	l.covar = mat.NewDense(d, d, nil)
	centered := make([]float64, d)
	for i, k := range labels {
		for j := 0; j < d; j++ {
			centered[j] = X.At(i, j) - l.means.At(k, j)
		}
		w := l.priorsFit[k] / counts[k]
		c := mat.NewVecDense(d, centered)
		l.covar.RankOne(l.covar, w, c, c)
	}

	pinv, err := pseudoInverse(l.covar, l.tol)
	if err != nil {
		return err
	}

	l.coef = mat.NewDense(K, d, nil)
	l.coef.Mul(l.means, pinv)
	l.intercept = make([]float64, K)
	for k := 0; k < K; k++ {
		quad := floats.Dot(l.coef.RawRowView(k), l.means.RawRowView(k))
		l.intercept[k] = -0.5*quad + math.Log(l.priorsFit[k])
	}

	l.state.SetDimensions(d, n)
	l.state.SetFitted()
	return nil
}

// pseudoInverse returns the Moore-Penrose inverse of a symmetric matrix,
// dropping singular values below tol * max singular value.
func pseudoInverse(a *mat.Dense, tol float64) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.NewModelError("LinearDiscriminantAnalysis.Fit", "svd", errors.New("SVD factorization failed"))
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cut := tol * floats.Max(s)
	for i := range s {
		if s[i] > cut {
			s[i] = 1 / s[i]
		} else {
			s[i] = 0
		}
	}
	// V diag(1/s) Uᵀ
	r, _ := v.Dims()
	scaled := mat.NewDense(r, len(s), nil)
	scaled.Apply(func(i, j int, val float64) float64 {
		return val * s[j]
	}, &v)
	out := mat.NewDense(r, r, nil)
	out.Mul(scaled, u.T())
	return out, nil
}

// DecisionFunction returns the linear discriminant of every class.
func (l *LinearDiscriminantAnalysis) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := l.state.CheckPredictInput("LinearDiscriminantAnalysis", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	K := len(l.classes)
	scores := mat.NewDense(n, K, nil)
	scores.Mul(X, l.coef.T())
	for i := 0; i < n; i++ {
		floats.Add(scores.RawRowView(i), l.intercept)
	}
	return scores, nil
}

// Predict returns the class with the highest discriminant.
func (l *LinearDiscriminantAnalysis) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := l.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(scores), l.classes), nil
}

// PredictProba returns the softmax of the discriminants.
func (l *LinearDiscriminantAnalysis) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := l.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	for i := 0; i < n; i++ {
		errors.Softmax(scores.RawRowView(i))
	}
	return scores, nil
}

// Classes returns the sorted class labels.
func (l *LinearDiscriminantAnalysis) Classes() []int { return l.classes }

// Means returns the per-class feature means.
func (l *LinearDiscriminantAnalysis) Means() *mat.Dense { return l.means }

// Priors returns the class priors used by the fitted model.
func (l *LinearDiscriminantAnalysis) Priors() []float64 { return l.priorsFit }

// Covariance returns the shared within-class covariance.
func (l *LinearDiscriminantAnalysis) Covariance() *mat.Dense { return l.covar }

// Clone returns an unfitted copy.
func (l *LinearDiscriminantAnalysis) Clone() model.Estimator {
	opts := []LDAOption{WithTol(l.tol)}
	if l.priors != nil {
		opts = append(opts, WithPriors(l.priors))
	}
	return NewLinearDiscriminantAnalysis(opts...)
}

// GetParams returns the hyperparameters.
func (l *LinearDiscriminantAnalysis) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"solver": "svd",
		"priors": l.priors,
		"tol":    l.tol,
	}
}

// SetParams updates hyperparameters by name. priors accepts a list of
// numbers or null.
func (l *LinearDiscriminantAnalysis) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		switch key {
		case "tol":
			f, err := model.FloatParam(key, v)
			if err != nil {
				return err
			}
			l.tol = f
		case "priors":
			priors, err := priorsParam(v)
			if err != nil {
				return err
			}
			l.priors = priors
		default:
			return model.UnknownParam("LinearDiscriminantAnalysis", key)
		}
	}
	return nil
}

func priorsParam(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		return append([]float64(nil), x...), nil
	case []interface{}:
		out := make([]float64, len(x))
		for i, e := range x {
			f, err := model.FloatParam("priors", e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, errors.NewValidationError("priors", "must be a list of numbers", v)
}
