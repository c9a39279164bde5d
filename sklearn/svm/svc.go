// Package svm implements C-support vector classification.
package svm

import (
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/core/parallel"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
)

// SVC is a kernel support vector classifier trained one-vs-one. Each pair
// of classes gets its own binary machine; prediction takes the class with
// the most pairwise votes, ties going to the smaller label.
type SVC struct {
	state *model.StateManager

	C         float64
	kernel    string
	gamma     string
	gammaVal  float64
	degree    int
	coef0     float64
	tol       float64
	maxIter   int // <= 0 means max(10_000_000, 100 * n)
	cacheSize float64

	classes []int
	kp      kernelParams
	kfn     kernelFunc
	sv      *mat.Dense
	svNorms []float64
	svIndex []int // rows of the training set kept as support vectors
	pairs   []pairModel
}

// pairModel is the binary machine separating classes[a] (+1) from
// classes[b] (-1).
type pairModel struct {
	a, b int
	sv   []int     // indices into SVC.sv
	coef []float64 // alpha_i * y_i
	rho  float64
	iter int
}

// SVCOption configures an SVC.
type SVCOption func(*SVC)

// WithC sets the penalty parameter.
func WithC(c float64) SVCOption {
	return func(s *SVC) { s.C = c }
}

// WithKernel selects "rbf", "linear", "poly" or "sigmoid".
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) { s.kernel = kernel }
}

// WithGamma sets the kernel coefficient to "auto" or "scale".
func WithGamma(gamma string) SVCOption {
	return func(s *SVC) { s.gamma = gamma }
}

// WithGammaValue sets a numeric kernel coefficient.
func WithGammaValue(gamma float64) SVCOption {
	return func(s *SVC) {
		s.gamma = "value"
		s.gammaVal = gamma
	}
}

// WithDegree sets the polynomial degree.
func WithDegree(d int) SVCOption {
	return func(s *SVC) { s.degree = d }
}

// WithCoef0 sets the independent term of poly and sigmoid kernels.
func WithCoef0(c float64) SVCOption {
	return func(s *SVC) { s.coef0 = c }
}

// WithTol sets the stopping tolerance on the maximal KKT violation.
func WithTol(tol float64) SVCOption {
	return func(s *SVC) { s.tol = tol }
}

// WithMaxIter bounds SMO iterations per binary problem.
func WithMaxIter(n int) SVCOption {
	return func(s *SVC) { s.maxIter = n }
}

// WithCacheSize sets the total kernel cache size in megabytes. Binary
// problems trained at the same time share it.
func WithCacheSize(mb float64) SVCOption {
	return func(s *SVC) { s.cacheSize = mb }
}

// NewSVC creates an RBF SVC with C=1, gamma "auto" and tol 1e-3.
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:     model.NewStateManager(),
		C:         1.0,
		kernel:    "rbf",
		gamma:     "auto",
		degree:    3,
		tol:       1e-3,
		maxIter:   -1,
		cacheSize: 200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit trains one binary machine per pair of classes concurrently.
func (s *SVC) Fit(X, y mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("SVC.Fit", n, ny, 0)
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	s.state.Reset()

	Xd := mat.DenseCopyOf(X)
	gamma, err := resolveGamma(s.gamma, s.gammaVal, Xd)
	if err != nil {
		return err
	}
	s.kp = kernelParams{kernel: s.kernel, gamma: gamma, degree: s.degree, coef0: s.coef0}
	if s.kfn, err = s.kp.function(); err != nil {
		return err
	}

	s.classes = model.UniqueClasses(y)
	if len(s.classes) < 2 {
		return errors.Wrap(errors.ErrSingleClass, "SVC.Fit")
	}
	labels := model.EncodeLabels(y, s.classes)
	byClass := make([][]int, len(s.classes))
	for i, k := range labels {
		byClass[k] = append(byClass[k], i)
	}

	type pairFit struct {
		rows []int
		res  smoResult
	}
	var specs [][2]int
	for a := 0; a < len(s.classes); a++ {
		for b := a + 1; b < len(s.classes); b++ {
			specs = append(specs, [2]int{a, b})
		}
	}
	fits := make([]pairFit, len(specs))

	workers, pairMB := pairBudget(s.cacheSize, len(specs), runtime.NumCPU())
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for p, pr := range specs {
		p, pr := p, pr
		g.Go(func() error {
			return errors.SafeExecute("SVC.Fit", func() error {
				rows := append(append([]int(nil), byClass[pr[0]]...), byClass[pr[1]]...)
				yy := make([]float64, len(rows))
				for r := range rows {
					yy[r] = -1
					if r < len(byClass[pr[0]]) {
						yy[r] = 1
					}
				}
				kr, err := newKernelRows(rowsOf(Xd, rows), s.kfn, pairMB)
				if err != nil {
					return err
				}
				limit := s.maxIter
				if limit <= 0 {
					limit = 100 * len(rows)
					if limit < 10_000_000 {
						limit = 10_000_000
					}
				}
				fits[p] = pairFit{rows: rows, res: solveSMO(kr, yy, s.C, s.tol, limit)}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 全ペアのサポートベクターを一つの集合にまとめる
	svOf := make(map[int]int)
	s.svIndex = s.svIndex[:0]
	s.pairs = make([]pairModel, len(specs))
	for p, f := range fits {
		pm := pairModel{a: specs[p][0], b: specs[p][1], rho: f.res.rho, iter: f.res.iter}
		for r, a := range f.res.alpha {
			if a <= 0 {
				continue
			}
			row := f.rows[r]
			idx, ok := svOf[row]
			if !ok {
				idx = len(s.svIndex)
				svOf[row] = idx
				s.svIndex = append(s.svIndex, row)
			}
			yy := -1.0
			if r < len(byClass[pm.a]) {
				yy = 1
			}
			pm.sv = append(pm.sv, idx)
			pm.coef = append(pm.coef, a*yy)
		}
		if f.res.hit {
			errors.Warn(errors.NewConvergenceWarning("smo", f.res.iter,
				fmt.Sprintf("classes %d/%d: iteration limit reached", s.classes[pm.a], s.classes[pm.b])))
		}
		s.pairs[p] = pm
	}
	s.sv = rowsOf(Xd, s.svIndex)
	s.svNorms = rowNorms(s.sv)

	log.GetLoggerWithName("svm").Debug("svc fitted",
		log.ModelNameKey, "SVC",
		log.SamplesKey, n,
		"svm.n_support", len(s.svIndex),
	)

	s.state.SetDimensions(d, n)
	s.state.SetFitted()
	return nil
}

// pairBudget splits the kernel cache between the binary problems that run
// concurrently so the whole fit stays within cache_size.
func pairBudget(totalMB float64, pairs, cpus int) (int, float64) {
	workers := min(cpus, pairs)
	if workers < 1 {
		workers = 1
	}
	return workers, totalMB / float64(workers)
}

func rowsOf(X *mat.Dense, rows []int) *mat.Dense {
	_, d := X.Dims()
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(rows), d, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

// DecisionFunction returns one column per class pair, in the order
// (0,1), (0,2), ..., (1,2), .... Positive values favour the first class.
func (s *SVC) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.CheckPredictInput("SVC", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	Xd := mat.DenseCopyOf(X)
	out := mat.NewDense(n, len(s.pairs), nil)
	nSV := len(s.svIndex)
	parallel.ParallelizeWithThreshold(n, 64, func(start, end int) {
		k := make([]float64, nSV)
		for i := start; i < end; i++ {
			x := Xd.RawRowView(i)
			nx := floats.Dot(x, x)
			for j := 0; j < nSV; j++ {
				k[j] = s.kfn(x, s.sv.RawRowView(j), nx, s.svNorms[j])
			}
			for p, pm := range s.pairs {
				v := -pm.rho
				for t, idx := range pm.sv {
					v += pm.coef[t] * k[idx]
				}
				out.Set(i, p, v)
			}
		}
	})
	return out, nil
}

func (s *SVC) votes(method string, X mat.Matrix) (*mat.Dense, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, errors.Wrap(err, method)
	}
	n, _ := dec.Dims()
	out := mat.NewDense(n, len(s.classes), nil)
	for i := 0; i < n; i++ {
		for p, pm := range s.pairs {
			if dec.At(i, p) > 0 {
				out.Set(i, pm.a, out.At(i, pm.a)+1)
			} else {
				out.Set(i, pm.b, out.At(i, pm.b)+1)
			}
		}
	}
	return out, nil
}

// Predict returns the class with the most one-vs-one votes.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	votes, err := s.votes("SVC.Predict", X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(votes), s.classes), nil
}

// PredictProba returns one-vs-one vote shares. They are not calibrated
// probabilities.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	votes, err := s.votes("SVC.PredictProba", X)
	if err != nil {
		return nil, err
	}
	votes.Scale(1/float64(len(s.pairs)), votes)
	return votes, nil
}

// Classes returns the sorted class labels.
func (s *SVC) Classes() []int { return s.classes }

// Support returns the training row indices of the support vectors.
func (s *SVC) Support() []int { return s.svIndex }

// NSupport returns the number of support vectors per class.
func (s *SVC) NSupport() []int {
	counts := make([]int, len(s.classes))
	if len(s.svIndex) == 0 {
		return counts
	}
	seen := make([]bool, len(s.svIndex))
	for _, pm := range s.pairs {
		for t, idx := range pm.sv {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			if pm.coef[t] > 0 {
				counts[pm.a]++
			} else {
				counts[pm.b]++
			}
		}
	}
	return counts
}

// Clone returns an unfitted copy.
func (s *SVC) Clone() model.Estimator {
	c := NewSVC(WithC(s.C), WithKernel(s.kernel), WithDegree(s.degree), WithCoef0(s.coef0),
		WithTol(s.tol), WithMaxIter(s.maxIter), WithCacheSize(s.cacheSize))
	c.gamma, c.gammaVal = s.gamma, s.gammaVal
	return c
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	gamma := s.gamma
	if gamma == "value" {
		gamma = strconv.FormatFloat(s.gammaVal, 'g', -1, 64)
	}
	return map[string]interface{}{
		"C":                       s.C,
		"kernel":                  s.kernel,
		"gamma":                   gamma,
		"degree":                  s.degree,
		"coef0":                   s.coef0,
		"tol":                     s.tol,
		"max_iter":                s.maxIter,
		"cache_size":              s.cacheSize,
		"decision_function_shape": "ovo",
	}
}

// SetParams updates hyperparameters by name.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "C":
			s.C, err = model.FloatParam(key, v)
		case "kernel":
			s.kernel, err = model.StringParam(key, v)
		case "gamma":
			if str, ok := v.(string); ok {
				s.gamma = str
				break
			}
			s.gammaVal, err = model.FloatParam(key, v)
			s.gamma = "value"
		case "degree":
			s.degree, err = model.IntParam(key, v)
		case "coef0":
			s.coef0, err = model.FloatParam(key, v)
		case "tol":
			s.tol, err = model.FloatParam(key, v)
		case "max_iter":
			s.maxIter, err = model.IntParam(key, v)
		case "cache_size":
			s.cacheSize, err = model.FloatParam(key, v)
		default:
			err = model.UnknownParam("SVC", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
