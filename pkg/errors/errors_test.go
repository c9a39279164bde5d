package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "forestcover: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "forestcover: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースにテストファイルが含まれること
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 54, 53, 1)
	assert.Equal(t, "forestcover: Predict: dimension mismatch on axis 1 (features). Expected 54, got 53", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 54, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("SVC", "Predict")
	assert.Contains(t, err.Error(), "SVC")
	assert.Contains(t, err.Error(), "Predict()")

	var nf *NotFittedError
	assert.True(t, As(err, &nf))
}

func TestNewDataError(t *testing.T) {
	cause := New("invalid syntax")
	err := NewDataError("train.csv", 12, "Elevation", cause)
	assert.Equal(t, `forestcover: train.csv:12: column "Elevation": invalid syntax`, err.Error())
	assert.True(t, Is(err, cause))

	err = NewDataError("test.csv", 0, "", cause)
	assert.Equal(t, "forestcover: test.csv: invalid syntax", err.Error())
}

func TestValidationAndValueErrors(t *testing.T) {
	err := NewValidationError("n_splits", "must be at least 2", 1)
	assert.Equal(t, "forestcover: validation failed for parameter 'n_splits': must be at least 2 (got: 1)", err.Error())

	err = NewValueError("KFold.Split", "cannot have more folds than samples")
	var ve *ValueError
	require.True(t, As(err, &ve))
	assert.Equal(t, "KFold.Split", ve.Op)
}

func TestWarnRouting(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, "handler:"+w.Error()) })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("lbfgs", 100, ""))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "handler:lbfgs failed to converge after 100 iterations"))

	SetZerologWarnFunc(func(w error) { got = append(got, "zerolog:"+w.Error()) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[1], "zerolog:'precision' is ill-defined"))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading train split")
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Equal(t, "loading train split: empty data", wrapped.Error())

	wrapped = Wrapf(ErrSingleClass, "fold %d", 3)
	assert.True(t, Is(wrapped, ErrSingleClass))
}

func TestNumericalHelpers(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("op", []float64{1, 2}, 0))
	err := CheckNumericalStability("op", []float64{1, nan()}, 7)
	var ni *NumericalInstabilityError
	require.True(t, As(err, &ni))
	assert.Equal(t, 7, ni.Iteration)

	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.InDelta(t, 2.0, SafeDivide(4, 2), 1e-12)

	scores := []float64{1000, 1000}
	Softmax(scores)
	assert.InDelta(t, 0.5, scores[0], 1e-12)
	assert.InDelta(t, 0.5, scores[1], 1e-12)
}

func TestRecover(t *testing.T) {
	err := SafeExecute("divide", func() error {
		var m map[string]int
		m["x"] = 1 // nil map write panics
		return nil
	})
	var pe *PanicError
	require.True(t, As(err, &pe))
	assert.Equal(t, "divide", pe.Operation)
	assert.Contains(t, pe.String(), "Stack trace")

	err = SafeExecute("noop", func() error { return nil })
	assert.NoError(t, err)

	existing := New("boom")
	f := func() (err error) {
		defer Recover(&err, "op")
		err = existing
		panic("late")
	}
	err = f()
	assert.True(t, Is(err, existing))
	assert.Contains(t, err.Error(), "panic in op: late")
}

func nan() float64 {
	var zero float64
	return zero / zero
}
