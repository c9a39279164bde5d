package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	// 2列目は定数列
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1])

	col := mat.Col(nil, 0, out)
	sum, sq := 0.0, 0.0
	for _, v := range col {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0.0, sum, 1e-12)
	assert.InDelta(t, 1.0, sq/4, 1e-12)
	assert.Equal(t, 0.0, out.At(2, 1))

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})))
	_, err = s.Transform(mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	clone := s.Clone().(*StandardScaler)
	assert.False(t, clone.IsFitted())
	assert.Equal(t, s.GetParams(), clone.GetParams())
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 7,
		5, 7,
		10, 7,
	})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, out.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, out.At(2, 0), 1e-12)
	assert.InDelta(t, 0.0, out.At(1, 1), 1e-12)

	bad := NewMinMaxScaler([2]float64{1, 1})
	assert.Error(t, bad.Fit(X))
}

func TestNewScaler(t *testing.T) {
	s, err := NewScaler("standard")
	require.NoError(t, err)
	assert.IsType(t, &StandardScaler{}, s)

	s, err = NewScaler("minmax")
	require.NoError(t, err)
	assert.IsType(t, &MinMaxScaler{}, s)

	s, err = NewScaler("none")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewScaler("robust")
	assert.Error(t, err)
}
