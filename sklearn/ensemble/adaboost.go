package ensemble

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/sklearn/tree"
)

// probaFloor keeps log(p) finite in SAMME.R.
const probaFloor = 2.220446049250313e-16

// AdaBoostClassifier boosts depth-1 decision trees with the multi-class
// SAMME or SAMME.R algorithm.
type AdaBoostClassifier struct {
	state *model.StateManager
	params

	classes          []int
	estimators       []*tree.DecisionTreeClassifier
	estimatorWeights []float64
	estimatorErrors  []float64
}

// NewAdaBoostClassifier creates a classifier with 50 stumps, learning rate
// 1.0 and the SAMME.R algorithm.
func NewAdaBoostClassifier(opts ...Option) *AdaBoostClassifier {
	ab := &AdaBoostClassifier{
		state: model.NewStateManager(),
		params: params{
			nEstimators:     50,
			learningRate:    1.0,
			maxDepth:        1,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			maxFeatures:     tree.MaxFeaturesAll,
			criterion:       "gini",
			algorithm:       "SAMME.R",
			randomState:     -1,
		},
	}
	ab.apply(opts)
	return ab
}

func (ab *AdaBoostClassifier) validate() error {
	if ab.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", ab.nEstimators)
	}
	if ab.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", ab.learningRate)
	}
	if ab.algorithm != "SAMME" && ab.algorithm != "SAMME.R" {
		return errors.NewValidationError("algorithm", "must be SAMME or SAMME.R", ab.algorithm)
	}
	return nil
}

// Fit boosts stumps on reweighted samples. Boosting stops early once a
// stump fits the weighted data perfectly, or, for SAMME, when a stump is
// no better than chance.
func (ab *AdaBoostClassifier) Fit(X, y mat.Matrix) error {
	if err := ab.validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("AdaBoostClassifier.Fit", n, ny, 0)
	}
	ab.state.Reset()
	ab.estimators = nil
	ab.estimatorWeights = nil
	ab.estimatorErrors = nil

	Xd := mat.DenseCopyOf(X)
	ab.classes = model.UniqueClasses(y)
	if len(ab.classes) < 2 {
		return errors.ErrSingleClass
	}
	labels := model.EncodeLabels(y, ab.classes)

	weight := make([]float64, n)
	for i := range weight {
		weight[i] = 1 / float64(n)
	}
	treeSeeds := seeds(ab.rng(), ab.nEstimators)
	logger := log.GetLoggerWithName("ensemble")

	for m := 0; m < ab.nEstimators; m++ {
		stump := tree.NewDecisionTreeClassifier(ab.treeOptions(treeSeeds[m])...)
		if err := stump.FitWeighted(Xd, y, weight); err != nil {
			return errors.Wrapf(err, "AdaBoostClassifier: stage %d", m)
		}
		var stop bool
		var err error
		if ab.algorithm == "SAMME.R" {
			stop, err = ab.boostReal(stump, Xd, labels, weight)
		} else {
			stop, err = ab.boostDiscrete(stump, Xd, labels, weight)
		}
		if err != nil {
			return err
		}
		logger.Debug("boosting stage",
			log.ModelNameKey, "AdaBoostClassifier",
			log.IterationKey, m,
			log.LossKey, ab.lastError(),
		)
		if stop {
			break
		}
		total := floats.Sum(weight)
		if total <= 0 {
			break
		}
		floats.Scale(1/total, weight)
	}
	if len(ab.estimators) == 0 {
		return errors.NewModelError("AdaBoostClassifier.Fit", "boosting",
			errors.New("base estimator is worse than random, ensemble cannot be fit"))
	}

	ab.state.SetDimensions(d, n)
	ab.state.SetFitted()
	return nil
}

func (ab *AdaBoostClassifier) lastError() float64 {
	if len(ab.estimatorErrors) == 0 {
		return math.NaN()
	}
	return ab.estimatorErrors[len(ab.estimatorErrors)-1]
}

// boostDiscrete is one SAMME step. It updates weight in place and reports
// whether boosting should stop.
func (ab *AdaBoostClassifier) boostDiscrete(stump *tree.DecisionTreeClassifier, X *mat.Dense, labels []int, weight []float64) (bool, error) {
	pred, err := stump.Predict(X)
	if err != nil {
		return true, err
	}
	predIdx := model.EncodeLabels(pred, ab.classes)
	k := float64(len(ab.classes))

	var errSum float64
	for i, w := range weight {
		if predIdx[i] != labels[i] {
			errSum += w
		}
	}
	estErr := errSum / floats.Sum(weight)

	if estErr <= 0 {
		ab.push(stump, 1, 0)
		return true, nil
	}
	// 偶然より悪い分類器は捨てる
	if estErr >= 1-1/k {
		return true, nil
	}

	alpha := ab.learningRate * (math.Log((1-estErr)/estErr) + math.Log(k-1))
	ab.push(stump, alpha, estErr)
	if len(ab.estimators) == ab.nEstimators {
		return true, nil
	}
	for i, w := range weight {
		if w > 0 && predIdx[i] != labels[i] {
			weight[i] = w * math.Exp(alpha)
		}
	}
	return false, nil
}

// boostReal is one SAMME.R step using the stump's class probabilities.
func (ab *AdaBoostClassifier) boostReal(stump *tree.DecisionTreeClassifier, X *mat.Dense, labels []int, weight []float64) (bool, error) {
	proba, err := stump.PredictProba(X)
	if err != nil {
		return true, err
	}
	predIdx := model.ArgmaxRows(proba)
	nClasses := len(ab.classes)
	k := float64(nClasses)

	var errSum float64
	for i, w := range weight {
		if predIdx[i] != labels[i] {
			errSum += w
		}
	}
	estErr := errSum / floats.Sum(weight)
	ab.push(stump, 1, estErr)
	if estErr <= 0 || len(ab.estimators) == ab.nEstimators {
		return true, nil
	}

	// y の符号化は正解クラスで 1、それ以外で -1/(K-1)
	factor := -ab.learningRate * (k - 1) / k
	off := -1 / (k - 1)
	for i, w := range weight {
		var s float64
		for c := 0; c < nClasses; c++ {
			lp := math.Log(math.Max(proba.At(i, c), probaFloor))
			if c == labels[i] {
				s += lp
			} else {
				s += off * lp
			}
		}
		if w > 0 {
			weight[i] = w * math.Exp(factor*s)
		}
	}
	return false, nil
}

func (ab *AdaBoostClassifier) push(stump *tree.DecisionTreeClassifier, w, e float64) {
	ab.estimators = append(ab.estimators, stump)
	ab.estimatorWeights = append(ab.estimatorWeights, w)
	ab.estimatorErrors = append(ab.estimatorErrors, e)
}

// samme returns the SAMME.R contribution (K-1)(log p - mean log p) of one
// stump.
func samme(proba mat.Matrix, row []float64, i int) {
	k := float64(len(row))
	var mean float64
	for c := range row {
		row[c] = math.Log(math.Max(proba.At(i, c), probaFloor))
		mean += row[c]
	}
	mean /= k
	for c := range row {
		row[c] = (k - 1) * (row[c] - mean)
	}
}

// DecisionFunction returns the weighted class scores, normalised by the
// sum of estimator weights.
func (ab *AdaBoostClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := ab.state.CheckPredictInput("AdaBoostClassifier", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	nClasses := len(ab.classes)
	out := mat.NewDense(n, nClasses, nil)
	buf := make([]float64, nClasses)

	for m, est := range ab.estimators {
		if ab.algorithm == "SAMME.R" {
			proba, err := est.PredictProba(X)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				samme(proba, buf, i)
				floats.Add(out.RawRowView(i), buf)
			}
			continue
		}
		pred, err := est.Predict(X)
		if err != nil {
			return nil, err
		}
		idx := model.EncodeLabels(pred, ab.classes)
		for i, c := range idx {
			out.Set(i, c, out.At(i, c)+ab.estimatorWeights[m])
		}
	}
	out.Scale(1/floats.Sum(ab.estimatorWeights), out)
	return out, nil
}

// Predict returns the class with the highest decision score.
func (ab *AdaBoostClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := ab.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(dec), ab.classes), nil
}

// PredictProba applies a softmax to the decision scores divided by K-1.
func (ab *AdaBoostClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := ab.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, k := dec.Dims()
	dec.Scale(1/float64(k-1), dec)
	for i := 0; i < n; i++ {
		errors.Softmax(dec.RawRowView(i))
	}
	return dec, nil
}

// Classes returns the sorted class labels.
func (ab *AdaBoostClassifier) Classes() []int { return ab.classes }

// Estimators returns the fitted stumps.
func (ab *AdaBoostClassifier) Estimators() []*tree.DecisionTreeClassifier { return ab.estimators }

// EstimatorWeights returns the weight of every fitted stump.
func (ab *AdaBoostClassifier) EstimatorWeights() []float64 { return ab.estimatorWeights }

// EstimatorErrors returns the weighted training error of every fitted stump.
func (ab *AdaBoostClassifier) EstimatorErrors() []float64 { return ab.estimatorErrors }

// FeatureImportances is the estimator-weighted mean of stump importances.
func (ab *AdaBoostClassifier) FeatureImportances() []float64 {
	if len(ab.estimators) == 0 {
		return nil
	}
	nFeatures, _ := ab.state.GetDimensions()
	out := make([]float64, nFeatures)
	for m, est := range ab.estimators {
		floats.AddScaled(out, ab.estimatorWeights[m], est.GetFeatureImportances())
	}
	floats.Scale(1/floats.Sum(ab.estimatorWeights), out)
	return out
}

// Clone returns an unfitted copy.
func (ab *AdaBoostClassifier) Clone() model.Estimator {
	return NewAdaBoostClassifier(ab.options()...)
}

// GetParams returns the hyperparameters.
func (ab *AdaBoostClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  ab.nEstimators,
		"learning_rate": ab.learningRate,
		"algorithm":     ab.algorithm,
		"max_depth":     ab.maxDepth,
		"random_state":  ab.randomState,
	}
}

// SetParams updates hyperparameters by name.
func (ab *AdaBoostClassifier) SetParams(values map[string]interface{}) error {
	return ab.setParams("AdaBoostClassifier", values,
		"n_estimators", "learning_rate", "algorithm", "max_depth", "random_state")
}
