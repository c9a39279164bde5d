package ensemble

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/sklearn/tree"
)

// forest is the bagging machinery shared by RandomForestClassifier and
// ExtraTreesClassifier. Trees are fitted concurrently; per-tree seeds are
// drawn before any goroutine starts.
type forest struct {
	state *model.StateManager
	params
	name     string
	splitter string

	classes []int
	trees   []*tree.DecisionTreeClassifier
}

func (f *forest) validate() error {
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	return nil
}

// Fit grows nEstimators trees. With bootstrap each tree sees a resample of
// the rows, expressed as integer sample weights.
func (f *forest) Fit(X, y mat.Matrix) error {
	if err := f.validate(); err != nil {
		return err
	}
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError(f.name+".Fit", n, ny, 0)
	}
	f.state.Reset()

	Xd := mat.DenseCopyOf(X)
	f.classes = model.UniqueClasses(y)

	r := f.rng()
	treeSeeds := seeds(r, f.nEstimators)
	var weights [][]float64
	if f.bootstrap {
		weights = make([][]float64, f.nEstimators)
		for t := range weights {
			w := make([]float64, n)
			for k := 0; k < n; k++ {
				w[r.IntN(n)]++
			}
			weights[t] = w
		}
	}

	f.trees = make([]*tree.DecisionTreeClassifier, f.nEstimators)
	g := new(errgroup.Group)
	g.SetLimit(f.jobs())
	for t := 0; t < f.nEstimators; t++ {
		t := t
		g.Go(func() error {
			opts := append(f.treeOptions(treeSeeds[t]), tree.WithSplitter(f.splitter))
			dt := tree.NewDecisionTreeClassifier(opts...)
			var w []float64
			if weights != nil {
				w = weights[t]
			}
			if err := dt.FitWeighted(Xd, y, w); err != nil {
				return errors.Wrapf(err, "%s: tree %d", f.name, t)
			}
			f.trees[t] = dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.GetLoggerWithName("ensemble").Debug("forest fitted",
		log.ModelNameKey, f.name,
		"ensemble.n_estimators", f.nEstimators,
		log.SamplesKey, n,
		log.FeaturesKey, d,
	)
	f.state.SetDimensions(d, n)
	f.state.SetFitted()
	return nil
}

// PredictProba averages the class probabilities of all trees.
func (f *forest) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.CheckPredictInput(f.name, "PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, len(f.classes), nil)
	for _, dt := range f.trees {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(f.trees)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (f *forest) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(proba), f.classes), nil
}

// Classes returns the sorted class labels.
func (f *forest) Classes() []int { return f.classes }

// Estimators returns the fitted trees.
func (f *forest) Estimators() []*tree.DecisionTreeClassifier { return f.trees }

// FeatureImportances averages the normalised importances of all trees.
func (f *forest) FeatureImportances() []float64 {
	if len(f.trees) == 0 {
		return nil
	}
	nFeatures, _ := f.state.GetDimensions()
	out := make([]float64, nFeatures)
	for _, dt := range f.trees {
		floats.Add(out, dt.GetFeatureImportances())
	}
	floats.Scale(1/float64(len(f.trees)), out)
	return out
}

// GetParams returns the hyperparameters.
func (f *forest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures.String(),
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
	}
}

// SetParams updates hyperparameters by name.
func (f *forest) SetParams(values map[string]interface{}) error {
	return f.setParams(f.name, values, "n_estimators", "criterion", "max_depth",
		"min_samples_split", "min_samples_leaf", "max_features", "bootstrap", "random_state", "n_jobs")
}

func forestDefaults(bootstrap bool) params {
	return params{
		nEstimators:     10,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     tree.MaxFeaturesSqrt,
		criterion:       "gini",
		bootstrap:       bootstrap,
		randomState:     -1,
	}
}

// RandomForestClassifier averages bootstrap-trained CART trees that
// consider sqrt(n_features) candidate features per split.
type RandomForestClassifier struct {
	forest
}

// NewRandomForestClassifier creates a forest of 10 trees.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{forest{
		state:    model.NewStateManager(),
		params:   forestDefaults(true),
		name:     "RandomForestClassifier",
		splitter: "best",
	}}
	rf.apply(opts)
	return rf
}

// Clone returns an unfitted copy.
func (rf *RandomForestClassifier) Clone() model.Estimator {
	return NewRandomForestClassifier(rf.options()...)
}

// ExtraTreesClassifier averages extremely randomised trees grown on the
// full training set.
type ExtraTreesClassifier struct {
	forest
}

// NewExtraTreesClassifier creates an ensemble of 10 extra trees.
func NewExtraTreesClassifier(opts ...Option) *ExtraTreesClassifier {
	et := &ExtraTreesClassifier{forest{
		state:    model.NewStateManager(),
		params:   forestDefaults(false),
		name:     "ExtraTreesClassifier",
		splitter: "random",
	}}
	et.apply(opts)
	return et
}

// Clone returns an unfitted copy.
func (et *ExtraTreesClassifier) Clone() model.Estimator {
	return NewExtraTreesClassifier(et.options()...)
}
