package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func col(v ...float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

func TestAccuracyScore(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.Dense
		yPred   *mat.Dense
		want    float64
		wantErr bool
	}{
		{name: "perfect", yTrue: col(1, 2, 3), yPred: col(1, 2, 3), want: 1},
		{name: "half", yTrue: col(1, 2, 3, 4), yPred: col(1, 2, 4, 3), want: 0.5},
		{name: "none", yTrue: col(1, 1), yPred: col(2, 2), want: 0},
		{name: "length mismatch", yTrue: col(1, 2), yPred: col(1), wantErr: true},
		{name: "not a column", yTrue: col(1, 2), yPred: mat.NewDense(2, 2, nil), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AccuracyScore(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := AccuracyScore(nil, col(1))
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := col(1, 1, 2, 2, 3)
	yPred := col(1, 2, 2, 2, 1)

	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, labels)
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 2, 0,
		1, 0, 0,
	})
	assert.True(t, mat.Equal(want, cm))

	cm, _, err = ConfusionMatrix(yTrue, yPred, []int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, cm.At(0, 0))
	assert.Equal(t, 1.0, cm.At(1, 0))
}

func TestClassificationReport(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })

	report, err := ClassificationReport(col(1, 1, 2, 2, 3), col(1, 2, 2, 2, 1))
	require.NoError(t, err)
	require.Len(t, report, 3)

	assert.Equal(t, 1, report[0].Label)
	assert.InDelta(t, 0.5, report[0].Precision, 1e-12)
	assert.InDelta(t, 0.5, report[0].Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, report[1].Precision, 1e-12)
	assert.InDelta(t, 1.0, report[1].Recall, 1e-12)
	assert.InDelta(t, 0.8, report[1].F1, 1e-12)
	assert.Equal(t, 0.0, report[2].Precision)
	assert.Equal(t, 0.0, report[2].Recall)
	assert.Equal(t, 0.0, report[2].F1)
	assert.Equal(t, 1, report[2].Support)
	assert.Len(t, warnings, 1)

	out := FormatReport(report)
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "0.8000")
}
