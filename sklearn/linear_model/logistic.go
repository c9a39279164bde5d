package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
)

// LogisticRegression implements L2-regularised logistic regression.
// Compatible with scikit-learn's LogisticRegression: the default is the
// one-vs-rest scheme, "multinomial" fits a single softmax model.
// Both are optimised with L-BFGS.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum L-BFGS iterations per problem
	tol          float64 // Gradient threshold for stopping
	multiClass   string  // Multi-class: "ovr" or "multinomial"

	// Model parameters
	coef      *mat.Dense // n_models x n_features, n_models is 1 for binary problems
	intercept []float64
	classes   []int
	nIter     []int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		multiClass:   "ovr",
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRMultiClass selects "ovr" or "multinomial".
func WithLRMultiClass(multiClass string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = multiClass
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.multiClass != "ovr" && lr.multiClass != "multinomial":
		return errors.NewValidationError("multi_class", "must be 'ovr' or 'multinomial'", lr.multiClass)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.ErrEmptyData
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	// L-BFGS は NaN を含む入力で黙って発散する
	if err := errors.CheckMatrix("LogisticRegression.Fit", X); err != nil {
		return err
	}

	lr.state.Reset()
	lr.classes = model.UniqueClasses(y)
	if len(lr.classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LogisticRegression.Fit: got class %v", lr.classes)
	}
	labels := model.EncodeLabels(y, lr.classes)
	Xa := lr.augment(X)

	var err error
	switch {
	case len(lr.classes) == 2:
		err = lr.fitOVR(Xa, labels, []int{1})
	case lr.multiClass == "multinomial":
		err = lr.fitMultinomial(Xa, labels)
	default:
		all := make([]int, len(lr.classes))
		for k := range all {
			all[k] = k
		}
		err = lr.fitOVR(Xa, labels, all)
	}
	if err != nil {
		return err
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// augment appends a column of ones when an intercept is fitted.
func (lr *LogisticRegression) augment(X mat.Matrix) *mat.Dense {
	n, d := X.Dims()
	if !lr.fitIntercept {
		return mat.DenseCopyOf(X)
	}
	out := mat.NewDense(n, d+1, nil)
	out.Slice(0, n, 0, d).(*mat.Dense).Copy(X)
	for i := 0; i < n; i++ {
		out.Set(i, d, 1)
	}
	return out
}

func (lr *LogisticRegression) alpha() float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1 / lr.C
}

// fitOVR fits one binary problem per entry of positives. For a two-class
// problem positives is {1} and the single model scores classes[1].
func (lr *LogisticRegression) fitOVR(Xa *mat.Dense, labels []int, positives []int) error {
	n, p := Xa.Dims()
	d := lr.nFeatures(p)
	lr.coef = mat.NewDense(len(positives), d, nil)
	lr.intercept = make([]float64, len(positives))
	lr.nIter = make([]int, len(positives))

	target := make([]float64, n)
	for m, k := range positives {
		for i, l := range labels {
			target[i] = 0
			if l == k {
				target[i] = 1
			}
		}
		obj := &binaryObjective{X: Xa, y: target, alpha: lr.alpha(), penalised: d}
		w, iters, err := lr.minimize(obj.evaluate, p, fmt.Sprintf("class %d", lr.classes[k]))
		if err != nil {
			return err
		}
		lr.coef.SetRow(m, w[:d])
		if lr.fitIntercept {
			lr.intercept[m] = w[d]
		}
		lr.nIter[m] = iters
	}
	return nil
}

func (lr *LogisticRegression) fitMultinomial(Xa *mat.Dense, labels []int) error {
	_, p := Xa.Dims()
	d := lr.nFeatures(p)
	K := len(lr.classes)
	obj := &softmaxObjective{X: Xa, labels: labels, classes: K, alpha: lr.alpha(), penalised: d}
	w, iters, err := lr.minimize(obj.evaluate, K*p, "multinomial")
	if err != nil {
		return err
	}
	W := mat.NewDense(K, p, w)
	lr.coef = mat.DenseCopyOf(W.Slice(0, K, 0, d))
	lr.intercept = make([]float64, K)
	if lr.fitIntercept {
		for k := 0; k < K; k++ {
			lr.intercept[k] = W.At(k, d)
		}
	}
	lr.nIter = []int{iters}
	return nil
}

func (lr *LogisticRegression) nFeatures(p int) int {
	if lr.fitIntercept {
		return p - 1
	}
	return p
}

// minimize runs L-BFGS from the origin. evaluate returns the loss and
// fills grad when it is non-nil.
func (lr *LogisticRegression) minimize(evaluate func(x, grad []float64) float64, dim int, problem string) ([]float64, int, error) {
	cache := &evalCache{evaluate: evaluate}
	prob := optimize.Problem{
		Func: cache.fn,
		Grad: cache.grad,
	}
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	res, err := optimize.Minimize(prob, make([]float64, dim), settings, &optimize.LBFGS{})
	if res == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "optimization", err)
	}
	if cerr := errors.CheckNumericalStability("LogisticRegression.Fit", res.X, res.MajorIterations); cerr != nil {
		return nil, 0, cerr
	}
	if err != nil || res.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", res.MajorIterations,
			fmt.Sprintf("%s: stopped with status %v", problem, res.Status)))
	}
	log.GetLoggerWithName("linear_model").Debug("lbfgs finished",
		log.ModelNameKey, "LogisticRegression",
		log.IterationKey, res.MajorIterations,
		log.LossKey, res.F,
	)
	return res.X, res.MajorIterations, nil
}

// evalCache memoises the last evaluation so Func and Grad on the same point
// share one pass over the data.
type evalCache struct {
	evaluate func(x, grad []float64) float64
	x        []float64
	f        float64
	g        []float64
}

func (c *evalCache) update(x []float64) {
	if c.x != nil && floats.Equal(c.x, x) {
		return
	}
	if c.g == nil {
		c.g = make([]float64, len(x))
		c.x = make([]float64, len(x))
	}
	copy(c.x, x)
	c.f = c.evaluate(x, c.g)
}

func (c *evalCache) fn(x []float64) float64 {
	c.update(x)
	return c.f
}

func (c *evalCache) grad(grad, x []float64) {
	c.update(x)
	copy(grad, c.g)
}

// binaryObjective is sum_i log(1 + exp(z_i)) - y_i z_i + alpha/2 |w|^2 with
// the penalty applied to the first `penalised` weights only.
type binaryObjective struct {
	X         *mat.Dense
	y         []float64
	alpha     float64
	penalised int
}

func (o *binaryObjective) evaluate(w, grad []float64) float64 {
	n, _ := o.X.Dims()
	z := mat.NewVecDense(n, nil)
	z.MulVec(o.X, mat.NewVecDense(len(w), w))

	loss := 0.0
	resid := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		zi := z.AtVec(i)
		loss += softplus(zi) - o.y[i]*zi
		resid.SetVec(i, sigmoid(zi)-o.y[i])
	}
	g := mat.NewVecDense(len(w), grad)
	g.MulVec(o.X.T(), resid)
	for j := 0; j < o.penalised; j++ {
		loss += 0.5 * o.alpha * w[j] * w[j]
		grad[j] += o.alpha * w[j]
	}
	return loss
}

// softmaxObjective is the multinomial cross-entropy over K classes with
// weights laid out as a K x p row-major matrix.
type softmaxObjective struct {
	X         *mat.Dense
	labels    []int
	classes   int
	alpha     float64
	penalised int
}

func (o *softmaxObjective) evaluate(w, grad []float64) float64 {
	n, p := o.X.Dims()
	K := o.classes
	W := mat.NewDense(K, p, w)

	var Z mat.Dense
	Z.Mul(o.X, W.T())

	loss := 0.0
	row := make([]float64, K)
	for i := 0; i < n; i++ {
		mat.Row(row, i, &Z)
		lse := errors.LogSumExp(row)
		loss += lse - row[o.labels[i]]
		for k := range row {
			row[k] = math.Exp(row[k] - lse)
		}
		row[o.labels[i]]--
		Z.SetRow(i, row)
	}

	G := mat.NewDense(K, p, grad)
	G.Mul(Z.T(), o.X)
	for k := 0; k < K; k++ {
		for j := 0; j < o.penalised; j++ {
			v := W.At(k, j)
			loss += 0.5 * o.alpha * v * v
			G.Set(k, j, G.At(k, j)+o.alpha*v)
		}
	}
	return loss
}

// DecisionFunction returns the linear scores, one column per model.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.CheckPredictInput("LogisticRegression", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	m, _ := lr.coef.Dims()
	scores := mat.NewDense(n, m, nil)
	scores.Mul(X, lr.coef.T())
	for i := 0; i < n; i++ {
		for k := 0; k < m; k++ {
			scores.Set(i, k, scores.At(i, k)+lr.intercept[k])
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, m := scores.Dims()
	if m == 1 {
		out := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			label := lr.classes[0]
			if scores.At(i, 0) > 0 {
				label = lr.classes[1]
			}
			out.Set(i, 0, float64(label))
		}
		return out, nil
	}
	return model.LabelsToMatrix(model.ArgmaxRows(scores), lr.classes), nil
}

// PredictProba returns probability estimates for each class. One-vs-rest
// models normalise the per-class sigmoids, multinomial models use softmax.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, m := scores.Dims()
	K := len(lr.classes)
	probas := mat.NewDense(n, K, nil)
	row := make([]float64, m)
	for i := 0; i < n; i++ {
		mat.Row(row, i, scores)
		switch {
		case m == 1:
			p := sigmoid(row[0])
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		case lr.multiClass == "multinomial":
			errors.Softmax(row)
			probas.SetRow(i, row)
		default:
			for k := range row {
				row[k] = sigmoid(row[k])
			}
			floats.Scale(1/floats.Sum(row), row)
			probas.SetRow(i, row)
		}
	}
	return probas, nil
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return lr.classes
}

// Coef returns the fitted coefficients.
func (lr *LogisticRegression) Coef() *mat.Dense {
	return lr.coef
}

// Intercept returns the fitted intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return lr.intercept
}

// NIter returns the L-BFGS iterations used per fitted problem.
func (lr *LogisticRegression) NIter() []int {
	return lr.nIter
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Estimator {
	return NewLogisticRegression(
		WithLRPenalty(lr.penalty),
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
		WithLRMultiClass(lr.multiClass),
	)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"solver":        "lbfgs",
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"tol":           lr.tol,
	}
}

// SetParams updates hyperparameters by name
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.StringParam(key, v)
		case "C":
			lr.C, err = model.FloatParam(key, v)
		case "fit_intercept":
			lr.fitIntercept, err = model.BoolParam(key, v)
		case "max_iter":
			lr.maxIter, err = model.IntParam(key, v)
		case "tol":
			lr.tol, err = model.FloatParam(key, v)
		case "multi_class":
			lr.multiClass, err = model.StringParam(key, v)
		case "solver":
			// lbfgs のみ
			var solver string
			solver, err = model.StringParam(key, v)
			if err == nil && solver != "lbfgs" {
				err = errors.NewValidationError(key, "only lbfgs is supported", solver)
			}
		default:
			err = model.UnknownParam("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// softplus computes log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
