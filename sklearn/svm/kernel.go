package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// kernelFunc evaluates K(a, b) given the squared norms of a and b.
type kernelFunc func(a, b []float64, normA, normB float64) float64

type kernelParams struct {
	kernel string
	gamma  float64
	degree int
	coef0  float64
}

func (p kernelParams) function() (kernelFunc, error) {
	switch p.kernel {
	case "rbf":
		return func(a, b []float64, na, nb float64) float64 {
			d := na + nb - 2*floats.Dot(a, b)
			if d < 0 {
				d = 0
			}
			return math.Exp(-p.gamma * d)
		}, nil
	case "linear":
		return func(a, b []float64, _, _ float64) float64 {
			return floats.Dot(a, b)
		}, nil
	case "poly":
		return func(a, b []float64, _, _ float64) float64 {
			return math.Pow(p.gamma*floats.Dot(a, b)+p.coef0, float64(p.degree))
		}, nil
	case "sigmoid":
		return func(a, b []float64, _, _ float64) float64 {
			return math.Tanh(p.gamma*floats.Dot(a, b) + p.coef0)
		}, nil
	}
	return nil, errors.NewValidationError("kernel", "must be rbf, linear, poly or sigmoid", p.kernel)
}

// resolveGamma turns the gamma setting into a number. "auto" is
// 1/n_features, "scale" is 1/(n_features * Var(X)).
func resolveGamma(gamma string, value float64, X *mat.Dense) (float64, error) {
	_, d := X.Dims()
	switch gamma {
	case "auto":
		return 1 / float64(d), nil
	case "scale":
		raw := X.RawMatrix()
		var sum, sq float64
		count := 0
		for i := 0; i < raw.Rows; i++ {
			for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
				sum += v
				sq += v * v
				count++
			}
		}
		mean := sum / float64(count)
		v := sq/float64(count) - mean*mean
		if v <= 0 {
			return 1, nil
		}
		return 1 / (float64(d) * v), nil
	case "", "value":
		if value <= 0 {
			return 0, errors.NewValidationError("gamma", "must be positive", value)
		}
		return value, nil
	}
	return 0, errors.NewValidationError("gamma", "must be auto, scale or a positive number", gamma)
}

func rowNorms(X *mat.Dense) []float64 {
	n, _ := X.Dims()
	out := make([]float64, n)
	for i := range out {
		r := X.RawRowView(i)
		out[i] = floats.Dot(r, r)
	}
	return out
}
