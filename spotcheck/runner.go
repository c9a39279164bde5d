package spotcheck

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/datasets"
	"github.com/YuminosukeSato/forestcover/model_selection"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/summary"
)

// Result is what a run produced for one pipeline.
type Result struct {
	Name string
	CV   *model_selection.CVResult
	// ValidationAccuracy is the accuracy on the held-out validation rows
	// of the pipeline fitted on the training split.
	ValidationAccuracy float64
	SubmissionPath     string
	Rows               int
}

// SubmissionFile returns the file name of the submission of a pipeline.
func SubmissionFile(name string) string {
	return "tmp-submission-" + name + ".csv"
}

// Runner executes the two passes of a spot-check run. Report lines go to
// the writer given to NewRunner; diagnostics go to the logger.
type Runner struct {
	cfg    Config
	out    io.Writer
	logger log.Logger
}

// NewRunner creates a runner printing its report to out.
func NewRunner(cfg Config, out io.Writer) *Runner {
	return &Runner{cfg: cfg, out: out, logger: log.GetLoggerWithName("spotcheck")}
}

// Summarize writes the correlation heatmap to the output directory and
// prints the column dtypes and the class counts.
func (r *Runner) Summarize(train *datasets.TrainData) error {
	corr, names, err := summary.CorrelationMatrix(train.Frame)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", r.cfg.OutDir)
	}
	path := filepath.Join(r.cfg.OutDir, summary.CorrelationPlotFile)
	if err := summary.PlotCorrelation(corr, names, path); err != nil {
		return err
	}
	r.logger.Info("correlation heatmap written", log.PathKey, path)
	if err := summary.PrintDtypes(r.out, train.Frame); err != nil {
		return err
	}
	return summary.PrintClassCounts(r.out, train.Frame, datasets.TargetColumn)
}

// CrossValidate scores every pipeline with unshuffled k-fold
// cross-validation on X, y and prints "name: mean, std" per pipeline.
func (r *Runner) CrossValidate(battery []NamedPipeline, X, y mat.Matrix) ([]Result, error) {
	cv := model_selection.NewKFold(r.cfg.CVFolds, false, 0)
	results := make([]Result, len(battery))
	for i, np := range battery {
		start := time.Now()
		res, err := model_selection.CrossValScore(np.Pipeline, X, y, cv, r.cfg.Scoring)
		if err != nil {
			return nil, errors.Wrapf(err, "cross-validate %s", np.Name)
		}
		fmt.Fprintf(r.out, "%s: %f, %f\n", np.Name, res.Mean(), res.Std())
		r.logger.Info("cross-validation finished",
			log.ModelNameKey, np.Name,
			log.OperationKey, log.OperationScore,
			log.AccuracyKey, res.Mean(),
			log.AccuracyStdKey, res.Std(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
		results[i] = Result{Name: np.Name, CV: res}
	}
	return results, nil
}

// Holdout fits every pipeline on the training split, scores it on the
// validation split, predicts the test rows and writes one submission per
// pipeline. results, when non-nil, is updated in place and must follow
// the battery order.
func (r *Runner) Holdout(battery []NamedPipeline, train *datasets.TrainData, test *datasets.TestData, results []Result) ([]Result, error) {
	if !slices.Equal(train.Features, test.Features) {
		return nil, errors.NewValueError("Holdout", "test columns do not match training features")
	}
	if results == nil {
		results = make([]Result, len(battery))
	}
	if len(results) != len(battery) {
		return nil, errors.NewDimensionError("Holdout", len(battery), len(results), 0)
	}
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", r.cfg.OutDir)
	}

	for i, np := range battery {
		start := time.Now()
		fitted := np.Pipeline.Clone()
		if err := fitted.Fit(train.Xtrn, train.Ytrn); err != nil {
			return nil, errors.Wrapf(err, "fit %s", np.Name)
		}
		valAcc, err := model_selection.Score(fitted, train.Xval, train.Yval, r.cfg.Scoring)
		if err != nil {
			return nil, errors.Wrapf(err, "validate %s", np.Name)
		}
		pred, err := fitted.Predict(test.Xtest)
		if err != nil {
			return nil, errors.Wrapf(err, "predict %s", np.Name)
		}

		path := filepath.Join(r.cfg.OutDir, SubmissionFile(np.Name))
		fmt.Fprintf(r.out, "Saving predictions to %s\n", path)
		if err := datasets.WriteSubmission(path, test.Ids, pred); err != nil {
			return nil, err
		}
		r.logger.Info("submission written",
			log.ModelNameKey, np.Name,
			log.OperationKey, log.OperationPredict,
			log.AccuracyKey, valAcc,
			log.PredsKey, len(test.Ids),
			log.PathKey, path,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)

		results[i].Name = np.Name
		results[i].ValidationAccuracy = valAcc
		results[i].SubmissionPath = path
		results[i].Rows = len(test.Ids)
	}
	return results, nil
}

// Run performs the cross-validation pass and then the holdout pass.
func (r *Runner) Run(battery []NamedPipeline, train *datasets.TrainData, test *datasets.TestData) ([]Result, error) {
	results, err := r.CrossValidate(battery, train.Xtrn, train.Ytrn)
	if err != nil {
		return nil, err
	}
	return r.Holdout(battery, train, test, results)
}
