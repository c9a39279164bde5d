// Package model provides the estimator interfaces shared by every learner in
// forestcover, together with fitted-state tracking and label helpers.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator

	// PredictProba returns probability estimates for each class.
	// Columns follow the order of Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted unique classes seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is implemented by models whose hyperparameters can be
// overridden by name, e.g. from a configuration file.
type ParameterSetter interface {
	// SetParams updates hyperparameters. Unknown names are an error.
	SetParams(params map[string]interface{}) error
}
