// Package ensemble implements tree ensembles: bagged random forests,
// extremely randomised trees, AdaBoost and gradient boosting.
package ensemble

import (
	"math/rand/v2"
	"runtime"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/sklearn/tree"
)

// params holds the hyperparameters of every ensemble in this package.
// Each constructor sets its own defaults; options that do not apply to an
// estimator are ignored by it.
type params struct {
	nEstimators     int
	learningRate    float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     tree.MaxFeatures
	criterion       string
	bootstrap       bool
	subsample       float64
	algorithm       string
	randomState     int64
	nJobs           int
}

// Option is a functional option for ensemble estimators.
type Option func(*params)

// WithNEstimators sets the number of trees or boosting stages.
func WithNEstimators(n int) Option {
	return func(p *params) { p.nEstimators = n }
}

// WithLearningRate shrinks the contribution of every boosting stage.
func WithLearningRate(lr float64) Option {
	return func(p *params) { p.learningRate = lr }
}

// WithMaxDepth limits the depth of every tree. Zero or less is unlimited.
func WithMaxDepth(d int) Option {
	return func(p *params) { p.maxDepth = d }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets the features examined per split.
func WithMaxFeatures(m tree.MaxFeatures) Option {
	return func(p *params) { p.maxFeatures = m }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(p *params) { p.criterion = c }
}

// WithBootstrap toggles bootstrap resampling in forests.
func WithBootstrap(b bool) Option {
	return func(p *params) { p.bootstrap = b }
}

// WithSubsample sets the row fraction used per gradient boosting stage.
func WithSubsample(f float64) Option {
	return func(p *params) { p.subsample = f }
}

// WithAlgorithm selects the AdaBoost variant, "SAMME" or "SAMME.R".
func WithAlgorithm(a string) Option {
	return func(p *params) { p.algorithm = a }
}

// WithRandomState seeds the ensemble. Negative draws a random seed.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

// WithNJobs bounds the number of trees fitted concurrently. Zero or less
// uses every CPU.
func WithNJobs(n int) Option {
	return func(p *params) { p.nJobs = n }
}

func (p *params) options() []Option {
	return []Option{
		WithNEstimators(p.nEstimators),
		WithLearningRate(p.learningRate),
		WithMaxDepth(p.maxDepth),
		WithMinSamplesSplit(p.minSamplesSplit),
		WithMinSamplesLeaf(p.minSamplesLeaf),
		WithMaxFeatures(p.maxFeatures),
		WithCriterion(p.criterion),
		WithBootstrap(p.bootstrap),
		WithSubsample(p.subsample),
		WithAlgorithm(p.algorithm),
		WithRandomState(p.randomState),
		WithNJobs(p.nJobs),
	}
}

func (p *params) apply(opts []Option) {
	for _, opt := range opts {
		opt(p)
	}
}

func (p *params) jobs() int {
	if p.nJobs <= 0 {
		return runtime.NumCPU()
	}
	return p.nJobs
}

func (p *params) treeOptions(seed int64) []tree.Option {
	return []tree.Option{
		tree.WithCriterion(p.criterion),
		tree.WithMaxDepth(p.maxDepth),
		tree.WithMinSamplesSplit(p.minSamplesSplit),
		tree.WithMinSamplesLeaf(p.minSamplesLeaf),
		tree.WithMaxFeatures(p.maxFeatures),
		tree.WithRandomState(seed),
	}
}

// rng returns the ensemble's random source.
func (p *params) rng() *rand.Rand {
	s := uint64(p.randomState)
	if p.randomState < 0 {
		s = rand.Uint64()
	}
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// seeds draws one non-negative seed per estimator up front so that results
// do not depend on the order in which goroutines run.
func seeds(r *rand.Rand, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = r.Int64()
	}
	return out
}

// setParams applies the named overrides listed in allowed.
func (p *params) setParams(modelName string, values map[string]interface{}, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[a] = true
	}
	for key, v := range values {
		if !ok[key] {
			return model.UnknownParam(modelName, key)
		}
		var err error
		switch key {
		case "n_estimators":
			p.nEstimators, err = model.IntParam(key, v)
		case "learning_rate":
			p.learningRate, err = model.FloatParam(key, v)
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
		case "criterion":
			p.criterion, err = model.StringParam(key, v)
		case "bootstrap":
			p.bootstrap, err = model.BoolParam(key, v)
		case "subsample":
			p.subsample, err = model.FloatParam(key, v)
		case "algorithm":
			p.algorithm, err = model.StringParam(key, v)
		case "random_state":
			var s int
			s, err = model.IntParam(key, v)
			p.randomState = int64(s)
		case "n_jobs":
			p.nJobs, err = model.IntParam(key, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func maxFeaturesParam(v interface{}) (tree.MaxFeatures, error) {
	switch x := v.(type) {
	case nil:
		return tree.MaxFeaturesAll, nil
	case int:
		return tree.MaxFeaturesN(x), nil
	case float64:
		return tree.MaxFeaturesFraction(x), nil
	}
	s, err := model.StringParam("max_features", v)
	if err != nil {
		return tree.MaxFeatures{}, err
	}
	return tree.ParseMaxFeatures(s)
}
