// Package tree implements CART decision trees for classification and
// regression, with the exhaustive ("best") and extremely randomised
// ("random") splitters.
package tree

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/metrics"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// params holds the hyperparameters shared by classifiers and regressors.
type params struct {
	criterion       string
	splitter        string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     MaxFeatures
	randomState     int64 // < 0 draws a random seed per Fit
}

// Option is a functional option for tree estimators.
type Option func(*params)

// WithCriterion sets the split criterion: "gini" or "entropy" for
// classifiers, "mse" or "friedman_mse" for regressors.
func WithCriterion(criterion string) Option {
	return func(p *params) { p.criterion = criterion }
}

// WithSplitter selects "best" or "random".
func WithSplitter(splitter string) Option {
	return func(p *params) { p.splitter = splitter }
}

// WithMaxDepth limits the depth of the tree. Zero or less means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *params) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are examined per split.
func WithMaxFeatures(m MaxFeatures) Option {
	return func(p *params) { p.maxFeatures = m }
}

// WithRandomState seeds feature sampling and random thresholds.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

func defaultParams(criterion string) params {
	return params{
		criterion:       criterion,
		splitter:        "best",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
		randomState:     -1,
	}
}

func (p *params) options() []Option {
	return []Option{
		WithCriterion(p.criterion),
		WithSplitter(p.splitter),
		WithMaxDepth(p.maxDepth),
		WithMinSamplesSplit(p.minSamplesSplit),
		WithMinSamplesLeaf(p.minSamplesLeaf),
		WithMaxFeatures(p.maxFeatures),
		WithRandomState(p.randomState),
	}
}

func (p *params) validate(criteria ...string) error {
	valid := false
	for _, c := range criteria {
		valid = valid || c == p.criterion
	}
	switch {
	case !valid:
		return errors.NewValidationError("criterion", "unsupported criterion", p.criterion)
	case p.splitter != "best" && p.splitter != "random":
		return errors.NewValidationError("splitter", "must be 'best' or 'random'", p.splitter)
	case p.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.minSamplesSplit)
	case p.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.minSamplesLeaf)
	}
	return nil
}

func (p *params) builderParams(nFeatures int) builderParams {
	return builderParams{
		splitter:        p.splitter,
		maxDepth:        p.maxDepth,
		minSamplesSplit: p.minSamplesSplit,
		minSamplesLeaf:  p.minSamplesLeaf,
		maxFeatures:     p.maxFeatures.Resolve(nFeatures),
	}
}

func (p *params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"splitter":          p.splitter,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures.String(),
		"random_state":      p.randomState,
	}
}

func (p *params) setParams(modelName string, values map[string]interface{}) error {
	for key, v := range values {
		var err error
		switch key {
		case "criterion":
			p.criterion, err = model.StringParam(key, v)
		case "splitter":
			p.splitter, err = model.StringParam(key, v)
		case "max_depth":
			if v == nil {
				p.maxDepth = -1
				break
			}
			p.maxDepth, err = model.IntParam(key, v)
		case "min_samples_split":
			p.minSamplesSplit, err = model.IntParam(key, v)
		case "min_samples_leaf":
			p.minSamplesLeaf, err = model.IntParam(key, v)
		case "max_features":
			p.maxFeatures, err = maxFeaturesParam(v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, v)
			p.randomState = int64(seed)
		default:
			err = model.UnknownParam(modelName, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func maxFeaturesParam(v interface{}) (MaxFeatures, error) {
	switch x := v.(type) {
	case nil:
		return MaxFeaturesAll, nil
	case string:
		return ParseMaxFeatures(x)
	case int:
		return MaxFeaturesN(x), nil
	case float64:
		if x > 0 && x <= 1 {
			return MaxFeaturesFraction(x), nil
		}
	}
	return MaxFeatures{}, errors.NewValidationError("max_features", "unsupported value", v)
}

func checkFitInput(op string, X, y mat.Matrix, sampleWeight []float64) (int, int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return 0, 0, errors.NewDimensionError(op, n, ny, 0)
	}
	if sampleWeight != nil && len(sampleWeight) != n {
		return 0, 0, errors.NewDimensionError(op, n, len(sampleWeight), 0)
	}
	return n, d, nil
}

func unitWeights(n int, sampleWeight []float64) []float64 {
	if sampleWeight != nil {
		return sampleWeight
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// DecisionTreeClassifier is a CART classification tree.
type DecisionTreeClassifier struct {
	state *model.StateManager
	params

	classes []int
	tree    *Tree
}

// NewDecisionTreeClassifier creates a classifier with gini criterion, the
// best splitter and unlimited depth.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{state: model.NewStateManager(), params: defaultParams("gini")}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// NewExtraTreeClassifier creates an extremely randomised tree: random
// thresholds and sqrt(n_features) candidate features per split.
func NewExtraTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	base := []Option{WithSplitter("random"), WithMaxFeatures(MaxFeaturesSqrt)}
	return NewDecisionTreeClassifier(append(base, opts...)...)
}

// Fit builds the tree with unit sample weights.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree. Samples with zero weight are ignored.
// Classes are taken from every row of y, weighted or not.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	n, d, err := checkFitInput("DecisionTreeClassifier.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	if err := dt.validate("gini", "entropy"); err != nil {
		return err
	}
	dt.state.Reset()

	dt.classes = model.UniqueClasses(y)
	labels := model.EncodeLabels(y, dt.classes)
	weight := unitWeights(n, sampleWeight)
	if floats.Sum(weight) <= 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "sample weights sum to zero")
	}

	acc := newClassAccumulator(labels, weight, len(dt.classes), dt.criterion)
	dt.tree = buildTree(mat.DenseCopyOf(X), weight, acc, dt.builderParams(d), newRNG(dt.randomState))

	dt.state.SetDimensions(d, n)
	dt.state.SetFitted()
	return nil
}

// PredictProba returns the normalised class histogram of the leaf every
// row falls into.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, len(dt.classes), nil)
	for i := 0; i < n; i++ {
		v := dt.tree.Nodes[dt.tree.applyRow(X, i)].Value
		row := out.RawRowView(i)
		copy(row, v)
		if s := floats.Sum(row); s > 0 {
			floats.Scale(1/s, row)
		}
	}
	return out, nil
}

// Predict returns the most probable class of every row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(proba), dt.classes), nil
}

// Score returns the mean accuracy on X, y, or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyScore(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the sorted class labels.
func (dt *DecisionTreeClassifier) Classes() []int { return dt.classes }

// Tree returns the fitted tree structure.
func (dt *DecisionTreeClassifier) Tree() *Tree { return dt.tree }

// GetFeatureImportances returns impurity-based importances summing to one.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return dt.tree.FeatureImportances()
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.NLeaves()
}

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	return NewDecisionTreeClassifier(dt.options()...)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	return dt.setParams("DecisionTreeClassifier", values)
}
