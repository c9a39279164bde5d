package svm

import (
	"math"

	lru "github.com/hashicorp/golang-lru"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// tau replaces non-positive curvature in the two-variable subproblem.
const tau = 1e-12

// kernelRows serves rows of the kernel matrix of one training subset,
// keeping recently used rows in an LRU cache.
type kernelRows struct {
	X      *mat.Dense
	norms  []float64
	kernel kernelFunc
	cache  *lru.Cache
	diag   []float64
}

func newKernelRows(X *mat.Dense, kernel kernelFunc, cacheMB float64) (*kernelRows, error) {
	n, _ := X.Dims()
	rows := int(cacheMB * (1 << 20) / float64(8*n))
	if rows < 2 {
		rows = 2
	}
	cache, err := lru.New(rows)
	if err != nil {
		return nil, errors.Wrap(err, "svm: kernel cache")
	}
	k := &kernelRows{X: X, norms: rowNorms(X), kernel: kernel, cache: cache, diag: make([]float64, n)}
	for i := range k.diag {
		r := X.RawRowView(i)
		k.diag[i] = kernel(r, r, k.norms[i], k.norms[i])
	}
	return k, nil
}

func (k *kernelRows) row(i int) []float64 {
	if v, ok := k.cache.Get(i); ok {
		return v.([]float64)
	}
	n := len(k.norms)
	out := make([]float64, n)
	xi := k.X.RawRowView(i)
	for j := 0; j < n; j++ {
		out[j] = k.kernel(xi, k.X.RawRowView(j), k.norms[i], k.norms[j])
	}
	k.cache.Add(i, out)
	return out
}

// smoResult is the dual solution of one binary problem.
type smoResult struct {
	alpha []float64
	rho   float64
	iter  int
	hit   bool // stopped on the iteration limit
}

// solveSMO solves the C-SVC dual
//
//	min 1/2 a'Qa - e'a  s.t. 0 <= a_i <= C, y'a = 0,  Q_ij = y_i y_j K_ij
//
// by sequential minimal optimisation with second order working set
// selection. y holds +1/-1.
func solveSMO(k *kernelRows, y []float64, C, eps float64, maxIter int) smoResult {
	n := len(y)
	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}
	upper := func(t int) bool { return alpha[t] >= C }
	lower := func(t int) bool { return alpha[t] <= 0 }

	iter := 0
	for ; iter < maxIter; iter++ {
		// i: 違反が最大の上側候補
		gmax, i := math.Inf(-1), -1
		for t := 0; t < n; t++ {
			if y[t] > 0 {
				if !upper(t) && -grad[t] >= gmax {
					gmax, i = -grad[t], t
				}
			} else if !lower(t) && grad[t] >= gmax {
				gmax, i = grad[t], t
			}
		}
		if i < 0 {
			break
		}
		Ki := k.row(i)

		// j: 目的関数の減少量を二次近似で最大化
		gmax2, j, objMin := math.Inf(-1), -1, math.Inf(1)
		for t := 0; t < n; t++ {
			var gradDiff float64
			if y[t] > 0 {
				if lower(t) {
					continue
				}
				gradDiff = gmax + grad[t]
				if grad[t] >= gmax2 {
					gmax2 = grad[t]
				}
			} else {
				if upper(t) {
					continue
				}
				gradDiff = gmax - grad[t]
				if -grad[t] >= gmax2 {
					gmax2 = -grad[t]
				}
			}
			if gradDiff > 0 {
				quad := k.diag[i] + k.diag[t] - 2*Ki[t]
				if quad <= 0 {
					quad = tau
				}
				if obj := -gradDiff * gradDiff / quad; obj <= objMin {
					j, objMin = t, obj
				}
			}
		}
		if gmax+gmax2 < eps || j < 0 {
			break
		}
		Kj := k.row(j)

		oldI, oldJ := alpha[i], alpha[j]
		Qij := y[i] * y[j] * Ki[j]
		if y[i] != y[j] {
			quad := k.diag[i] + k.diag[j] + 2*Qij
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j], alpha[i] = 0, diff
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, C-diff
				}
			} else if alpha[j] > C {
				alpha[j], alpha[i] = C, C+diff
			}
		} else {
			quad := k.diag[i] + k.diag[j] - 2*Qij
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i], alpha[j] = C, sum-C
				}
			} else if alpha[j] < 0 {
				alpha[j], alpha[i] = 0, sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j], alpha[i] = C, sum-C
				}
			} else if alpha[i] < 0 {
				alpha[i], alpha[j] = 0, sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < n; t++ {
			grad[t] += y[t] * (y[i]*Ki[t]*dI + y[j]*Kj[t]*dJ)
		}
	}

	return smoResult{alpha: alpha, rho: computeRho(alpha, grad, y, C), iter: iter, hit: iter >= maxIter}
}

// computeRho averages y_i G_i over free support vectors, falling back to the
// midpoint of the feasible interval.
func computeRho(alpha, grad, y []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree, nFree := 0.0, 0
	for i := range alpha {
		yg := y[i] * grad[i]
		switch {
		case alpha[i] >= C:
			if y[i] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[i] <= 0:
			if y[i] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
