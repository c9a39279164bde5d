package ensemble

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/sklearn/tree"
)

// GradientBoostingClassifier fits an additive model of regression trees
// to the gradient of the deviance. Two classes use the binomial deviance
// with a single tree per stage; more classes use the multinomial deviance
// with one tree per class per stage.
type GradientBoostingClassifier struct {
	state *model.StateManager
	params

	classes    []int
	init       []float64
	stages     [][]*tree.DecisionTreeRegressor
	trainScore []float64
}

// NewGradientBoostingClassifier creates a classifier with 100 stages,
// learning rate 0.1 and depth-3 friedman_mse trees.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		state: model.NewStateManager(),
		params: params{
			nEstimators:     100,
			learningRate:    0.1,
			maxDepth:        3,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			maxFeatures:     tree.MaxFeaturesAll,
			criterion:       "friedman_mse",
			subsample:       1.0,
			randomState:     -1,
		},
	}
	gb.apply(opts)
	return gb
}

func (gb *GradientBoostingClassifier) validate() error {
	if gb.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", gb.nEstimators)
	}
	if gb.learningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", gb.learningRate)
	}
	if gb.subsample <= 0 || gb.subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.subsample)
	}
	return nil
}

// nTrees is the number of trees per stage.
func (gb *GradientBoostingClassifier) nTrees() int {
	if len(gb.classes) == 2 {
		return 1
	}
	return len(gb.classes)
}

// Fit runs nEstimators boosting stages.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	if err := gb.validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", n, ny, 0)
	}
	gb.state.Reset()

	Xd := mat.DenseCopyOf(X)
	gb.classes = model.UniqueClasses(y)
	if len(gb.classes) < 2 {
		return errors.ErrSingleClass
	}
	labels := model.EncodeLabels(y, gb.classes)
	K := gb.nTrees()

	// 事前分布で初期化: 二値は対数オッズ、多クラスは対数事前確率
	prior := make([]float64, len(gb.classes))
	for _, c := range labels {
		prior[c]++
	}
	floats.Scale(1/float64(n), prior)
	if K == 1 {
		gb.init = []float64{math.Log(prior[1] / prior[0])}
	} else {
		gb.init = make([]float64, K)
		for k := range gb.init {
			gb.init[k] = math.Log(prior[k])
		}
	}

	// raw は n x K の現在のスコア
	raw := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		copy(raw.RawRowView(i), gb.init)
	}

	r := gb.rng()
	treeSeeds := seeds(r, gb.nEstimators*K)
	gb.stages = make([][]*tree.DecisionTreeRegressor, 0, gb.nEstimators)
	gb.trainScore = make([]float64, 0, gb.nEstimators)
	logger := log.GetLoggerWithName("ensemble")

	nInBag := n
	if gb.subsample < 1 {
		nInBag = int(gb.subsample * float64(n))
		if nInBag < 1 {
			nInBag = 1
		}
	}

	proba := mat.NewDense(n, K, nil)
	for m := 0; m < gb.nEstimators; m++ {
		gb.probabilities(raw, proba)

		weight := make([]float64, n)
		if nInBag == n {
			for i := range weight {
				weight[i] = 1
			}
		} else {
			for _, i := range r.Perm(n)[:nInBag] {
				weight[i] = 1
			}
		}

		stage := make([]*tree.DecisionTreeRegressor, K)
		g := new(errgroup.Group)
		g.SetLimit(gb.jobs())
		for k := 0; k < K; k++ {
			k := k
			g.Go(func() error {
				dt, err := gb.fitStageTree(Xd, labels, proba, weight, k, treeSeeds[m*K+k])
				if err != nil {
					return errors.Wrapf(err, "GradientBoostingClassifier: stage %d tree %d", m, k)
				}
				stage[k] = dt
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		gb.stages = append(gb.stages, stage)

		for k, dt := range stage {
			pred, err := dt.Predict(Xd)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				raw.Set(i, k, raw.At(i, k)+gb.learningRate*pred.At(i, 0))
			}
		}

		loss := gb.deviance(raw, labels, weight)
		gb.trainScore = append(gb.trainScore, loss)
		if (m+1)%10 == 0 {
			logger.Debug("boosting stage",
				log.ModelNameKey, "GradientBoostingClassifier",
				log.IterationKey, m+1,
				log.LossKey, loss,
			)
		}
	}
	if err := errors.CheckNumericalStability("GradientBoostingClassifier.Fit", gb.trainScore, gb.nEstimators); err != nil {
		return err
	}

	gb.state.SetDimensions(d, n)
	gb.state.SetFitted()
	return nil
}

// fitStageTree fits one regression tree to the residual of column k and
// replaces its leaf values with a single Newton step.
func (gb *GradientBoostingClassifier) fitStageTree(X *mat.Dense, labels []int, proba *mat.Dense, weight []float64, k int, seed int64) (*tree.DecisionTreeRegressor, error) {
	n := len(labels)
	target := k
	if gb.nTrees() == 1 {
		target = 1
	}
	residual := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		var yk float64
		if labels[i] == target {
			yk = 1
		}
		residual.Set(i, 0, yk-proba.At(i, k))
	}

	dt := tree.NewDecisionTreeRegressor(gb.treeOptions(seed)...)
	if err := dt.FitWeighted(X, residual, weight); err != nil {
		return nil, err
	}

	leaves, err := dt.Apply(X)
	if err != nil {
		return nil, err
	}
	num := make(map[int]float64)
	den := make(map[int]float64)
	for i, leaf := range leaves {
		if weight[i] == 0 {
			continue
		}
		res := residual.At(i, 0)
		p := math.Abs(res)
		num[leaf] += weight[i] * res
		den[leaf] += weight[i] * p * (1 - p)
	}
	scale := 1.0
	if K := gb.nTrees(); K > 1 {
		scale = float64(K-1) / float64(K)
	}
	t := dt.Tree()
	for i := range t.Nodes {
		if !t.IsLeaf(i) {
			continue
		}
		v := 0.0
		if math.Abs(den[i]) >= 1e-150 {
			v = scale * num[i] / den[i]
		}
		t.SetLeafValue(i, []float64{v})
	}
	return dt, nil
}

// probabilities converts raw scores to the positive-class probability
// (binomial) or class probabilities (multinomial), written into dst.
func (gb *GradientBoostingClassifier) probabilities(raw, dst *mat.Dense) {
	n, K := raw.Dims()
	for i := 0; i < n; i++ {
		row := dst.RawRowView(i)
		copy(row, raw.RawRowView(i))
		if K == 1 {
			row[0] = sigmoid(row[0])
			continue
		}
		errors.Softmax(row)
	}
}

// deviance is the weighted mean negative log-likelihood.
func (gb *GradientBoostingClassifier) deviance(raw *mat.Dense, labels []int, weight []float64) float64 {
	_, K := raw.Dims()
	var sum, wsum float64
	for i, c := range labels {
		w := weight[i]
		if w == 0 {
			continue
		}
		row := raw.RawRowView(i)
		var l float64
		if K == 1 {
			z := row[0]
			yk := 0.0
			if c == 1 {
				yk = 1
			}
			l = softplus(z) - yk*z
		} else {
			l = errors.LogSumExp(row) - row[c]
		}
		sum += w * l
		wsum += w
	}
	return sum / wsum
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// DecisionFunction returns the raw additive scores, n x 1 for two classes
// and n x K otherwise.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := gb.state.CheckPredictInput("GradientBoostingClassifier", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	K := gb.nTrees()
	raw := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		copy(raw.RawRowView(i), gb.init)
	}
	for _, stage := range gb.stages {
		for k, dt := range stage {
			pred, err := dt.Predict(X)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				raw.Set(i, k, raw.At(i, k)+gb.learningRate*pred.At(i, 0))
			}
		}
	}
	return raw, nil
}

// PredictProba returns class probabilities with one column per class.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, K := raw.Dims()
	if K > 1 {
		gb.probabilities(raw, raw)
		return raw, nil
	}
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := sigmoid(raw.At(i, 0))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns the most probable class of every row.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(proba), gb.classes), nil
}

// Classes returns the sorted class labels.
func (gb *GradientBoostingClassifier) Classes() []int { return gb.classes }

// Stages returns the fitted trees, one slice per boosting stage.
func (gb *GradientBoostingClassifier) Stages() [][]*tree.DecisionTreeRegressor { return gb.stages }

// TrainScore returns the in-bag deviance after every stage.
func (gb *GradientBoostingClassifier) TrainScore() []float64 { return gb.trainScore }

// FeatureImportances averages the tree importances over all stages.
func (gb *GradientBoostingClassifier) FeatureImportances() []float64 {
	if len(gb.stages) == 0 {
		return nil
	}
	nFeatures, _ := gb.state.GetDimensions()
	out := make([]float64, nFeatures)
	for _, stage := range gb.stages {
		for _, dt := range stage {
			floats.Add(out, dt.Tree().FeatureImportances())
		}
	}
	if s := floats.Sum(out); s > 0 {
		floats.Scale(1/s, out)
	}
	return out
}

// Clone returns an unfitted copy.
func (gb *GradientBoostingClassifier) Clone() model.Estimator {
	return NewGradientBoostingClassifier(gb.options()...)
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      gb.nEstimators,
		"learning_rate":     gb.learningRate,
		"max_depth":         gb.maxDepth,
		"min_samples_split": gb.minSamplesSplit,
		"min_samples_leaf":  gb.minSamplesLeaf,
		"max_features":      gb.maxFeatures.String(),
		"criterion":         gb.criterion,
		"subsample":         gb.subsample,
		"random_state":      gb.randomState,
	}
}

// SetParams updates hyperparameters by name.
func (gb *GradientBoostingClassifier) SetParams(values map[string]interface{}) error {
	return gb.setParams("GradientBoostingClassifier", values, "n_estimators", "learning_rate",
		"max_depth", "min_samples_split", "min_samples_leaf", "max_features", "criterion", "subsample", "random_state")
}
