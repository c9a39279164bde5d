// Package spotcheck runs the fixed battery of classifiers over the Forest
// Cover Type data: cross-validation on the training split, then one
// submission file per model.
package spotcheck

import (
	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pipeline"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/preprocessing"
	"github.com/YuminosukeSato/forestcover/sklearn/discriminant_analysis"
	"github.com/YuminosukeSato/forestcover/sklearn/ensemble"
	"github.com/YuminosukeSato/forestcover/sklearn/linear_model"
	"github.com/YuminosukeSato/forestcover/sklearn/naive_bayes"
	"github.com/YuminosukeSato/forestcover/sklearn/neighbors"
	"github.com/YuminosukeSato/forestcover/sklearn/svm"
	"github.com/YuminosukeSato/forestcover/sklearn/tree"
)

// ScalerStep is the name of the first step of every pipeline.
const ScalerStep = "Scaler"

// modelNames is the battery in run order.
var modelNames = []string{
	"LogisticRegression",
	"LinearDiscriminantAnalysis",
	"KNeighborsClassifier",
	"DecisionTreeClassifier",
	"GaussianNB",
	"SVC",
	"AdaBoost",
	"GradientBoosting",
	"RandomForest",
	"ExtraTrees",
}

// ModelNames returns the model names in run order.
func ModelNames() []string { return append([]string(nil), modelNames...) }

// newModel builds a model with its default hyperparameters. Stochastic
// models take seed as their random state.
func newModel(name string, seed int64) model.Estimator {
	switch name {
	case "LogisticRegression":
		return linear_model.NewLogisticRegression()
	case "LinearDiscriminantAnalysis":
		return discriminant_analysis.NewLinearDiscriminantAnalysis()
	case "KNeighborsClassifier":
		return neighbors.NewKNeighborsClassifier()
	case "DecisionTreeClassifier":
		return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed))
	case "GaussianNB":
		return naive_bayes.NewGaussianNB()
	case "SVC":
		return svm.NewSVC()
	case "AdaBoost":
		return ensemble.NewAdaBoostClassifier(ensemble.WithRandomState(seed))
	case "GradientBoosting":
		return ensemble.NewGradientBoostingClassifier(ensemble.WithRandomState(seed))
	case "RandomForest":
		return ensemble.NewRandomForestClassifier(ensemble.WithRandomState(seed))
	case "ExtraTrees":
		return ensemble.NewExtraTreesClassifier(ensemble.WithRandomState(seed))
	}
	return nil
}

// NamedPipeline is one entry of the battery.
type NamedPipeline struct {
	Name     string
	Pipeline *pipeline.Pipeline
}

// Battery builds the pipelines in run order. Each one is
// [("Scaler", scaler), (model, estimator)] and is named "Scaled<model>";
// with the "none" scaler the pipeline holds the estimator alone and keeps
// the bare model name. Overrides from cfg.Models are applied before
// wrapping.
func Battery(cfg Config, seed int64) ([]NamedPipeline, error) {
	out := make([]NamedPipeline, 0, len(modelNames))
	for _, name := range modelNames {
		est := newModel(name, seed)
		if params, ok := cfg.Models[name]; ok {
			setter, ok := est.(model.ParameterSetter)
			if !ok {
				return nil, errors.NewValidationError("models", "model has no settable parameters", name)
			}
			if err := setter.SetParams(params); err != nil {
				return nil, errors.Wrapf(err, "configure %s", name)
			}
		}

		scaler, err := preprocessing.NewScaler(cfg.Scaler)
		if err != nil {
			return nil, err
		}
		steps := []pipeline.Step{{Name: name, Value: est}}
		pipeName := name
		if scaler != nil {
			steps = append([]pipeline.Step{{Name: ScalerStep, Value: scaler}}, steps...)
			pipeName = "Scaled" + name
		}
		p, err := pipeline.NewPipeline(steps...)
		if err != nil {
			return nil, errors.Wrapf(err, "build %s", pipeName)
		}
		out = append(out, NamedPipeline{Name: pipeName, Pipeline: p})
	}
	return out, nil
}
