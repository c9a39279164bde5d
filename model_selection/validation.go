package model_selection

import (
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/metrics"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
)

// Scorer computes a score from true and predicted labels.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

// GetScorer resolves a scoring name. The empty name means accuracy.
func GetScorer(name string) (Scorer, error) {
	switch name {
	case "", "accuracy":
		return metrics.AccuracyScore, nil
	default:
		return nil, errors.NewValidationError("scoring", "unknown scoring", name)
	}
}

// Score predicts X with a fitted estimator and scores it against y.
func Score(est model.Estimator, X, y mat.Matrix, scoring string) (float64, error) {
	scorer, err := GetScorer(scoring)
	if err != nil {
		return 0, err
	}
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return scorer(y, pred)
}

// CVResult stores per-fold cross-validation results.
type CVResult struct {
	TestScores []float64
	FitTimes   []time.Duration
}

// Mean returns the mean test score.
func (r *CVResult) Mean() float64 {
	if len(r.TestScores) == 0 {
		return 0
	}
	return stat.Mean(r.TestScores, nil)
}

// Std returns the population standard deviation of the test scores.
func (r *CVResult) Std() float64 {
	if len(r.TestScores) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(r.TestScores, nil)
	return std
}

// CrossValScore evaluates est on every fold of cv. A fresh clone is fitted
// per fold so est itself is left untouched. Folds run sequentially.
func CrossValScore(est model.Estimator, X, y mat.Matrix, cv Splitter, scoring string) (*CVResult, error) {
	scorer, err := GetScorer(scoring)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	if ny, _ := y.Dims(); ny != n {
		return nil, errors.NewDimensionError("CrossValScore", n, ny, 0)
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("model_selection")
	result := &CVResult{
		TestScores: make([]float64, len(folds)),
		FitTimes:   make([]time.Duration, len(folds)),
	}
	for i, fold := range folds {
		trainX, trainY := Rows(X, fold.TrainIndices), Rows(y, fold.TrainIndices)
		testX, testY := Rows(X, fold.TestIndices), Rows(y, fold.TestIndices)

		fitted := est.Clone()
		start := time.Now()
		if err := fitted.Fit(trainX, trainY); err != nil {
			return nil, errors.Wrapf(err, "fold %d fit", i)
		}
		result.FitTimes[i] = time.Since(start)

		pred, err := fitted.Predict(testX)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d predict", i)
		}
		score, err := scorer(testY, pred)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d score", i)
		}
		result.TestScores[i] = score

		logger.Debug("fold scored",
			log.FoldKey, i,
			log.AccuracyKey, score,
			log.DurationMsKey, result.FitTimes[i].Milliseconds(),
		)
	}
	return result, nil
}
