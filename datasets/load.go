package datasets

import (
	"encoding/csv"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/model_selection"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
)

// Column names of the Kaggle files.
const (
	IDColumn     = "Id"
	TargetColumn = "Cover_Type"
)

// DefaultValidationFraction is the share of training rows held out for
// validation.
const DefaultValidationFraction = 0.2

// TrainData is the training file split into a training and a validation
// part. Frame holds every feature column and the target, without Id.
type TrainData struct {
	Frame    *Frame
	Features []string

	Xtrn, Xval *mat.Dense
	Ytrn, Yval *mat.Dense
}

// TestData is the unlabeled test file.
type TestData struct {
	Ids      []int
	Features []string
	Xtest    *mat.Dense
}

// LoadTrainData reads the training CSV and shuffles it with seed into a
// training part and a validation part holding valFraction of the rows.
func LoadTrainData(path string, seed int64, valFraction float64) (*TrainData, error) {
	frame, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if !frame.Has(TargetColumn) {
		return nil, errors.NewDataError(path, 1, TargetColumn, errors.New("missing target column"))
	}
	frame = frame.Drop(IDColumn)
	features := frame.Drop(TargetColumn).Names()
	if len(features) == 0 {
		return nil, errors.NewDataError(path, 1, "", errors.New("no feature columns"))
	}

	X, err := frame.Matrix(features...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	y, err := frame.Matrix(TargetColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if err := checkLabels(path, y); err != nil {
		return nil, err
	}

	xTrn, xVal, yTrn, yVal, err := model_selection.TrainTestSplit(X, y, valFraction, seed)
	if err != nil {
		return nil, errors.Wrapf(err, "split %s", path)
	}

	log.GetLoggerWithName("datasets").Info("training data loaded",
		log.PathKey, path,
		log.SamplesKey, frame.NRows(),
		log.FeaturesKey, len(features),
		"data.train_rows", xTrn.RawMatrix().Rows,
		"data.validation_rows", xVal.RawMatrix().Rows,
	)
	return &TrainData{
		Frame:    frame,
		Features: features,
		Xtrn:     xTrn,
		Xval:     xVal,
		Ytrn:     yTrn,
		Yval:     yVal,
	}, nil
}

// checkLabels rejects non-integral class labels.
func checkLabels(path string, y *mat.Dense) error {
	n, _ := y.Dims()
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if v != float64(int(v)) {
			return errors.NewDataError(path, i+2, TargetColumn,
				errors.Newf("label %v is not an integer", v))
		}
	}
	return nil
}

// LoadTestData reads the test CSV. Every column except Id is a feature.
func LoadTestData(path string) (*TestData, error) {
	frame, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idCol, err := frame.Column(IDColumn)
	if err != nil {
		return nil, errors.NewDataError(path, 1, IDColumn, errors.New("missing id column"))
	}
	features := frame.Drop(IDColumn, TargetColumn).Names()
	X, err := frame.Matrix(features...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}

	ids := make([]int, len(idCol))
	for i, v := range idCol {
		ids[i] = int(v)
	}
	log.GetLoggerWithName("datasets").Info("test data loaded",
		log.PathKey, path,
		log.SamplesKey, len(ids),
		log.FeaturesKey, len(features),
	)
	return &TestData{Ids: ids, Features: features, Xtest: X}, nil
}

// WriteSubmission writes one "Id,Cover_Type" row per id, in order.
func WriteSubmission(path string, ids []int, predictions mat.Matrix) (err error) {
	n, _ := predictions.Dims()
	if n != len(ids) {
		return errors.NewDimensionError("WriteSubmission", len(ids), n, 0)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write([]string{IDColumn, TargetColumn}); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	labels := model.LabelsFromMatrix(predictions)
	record := make([]string, 2)
	for i, id := range ids {
		record[0] = strconv.Itoa(id)
		record[1] = strconv.Itoa(labels[i])
		if err := w.Write(record); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
