package datasets

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// trainCSV は 10 行の小さな学習ファイル
func trainCSV() string {
	var b strings.Builder
	b.WriteString("Id,Elevation,Slope,Soil_Type1,Cover_Type\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "%d,%d,%.1f,%d,%d\n", i, 2500+i*10, float64(i)/2, i%2, i%3+1)
	}
	return b.String()
}

func TestParseCSVFrame(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader("a,b\n1,2.5\n3,4\n"), "inline")
	require.NoError(t, err)
	assert.Equal(t, 2, frame.NRows())
	assert.Equal(t, []string{"a", "b"}, frame.Names())
	assert.Equal(t, []Dtype{{"a", Int64}, {"b", Float64}}, frame.Dtypes())

	b, err := frame.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 4}, b)

	m, err := frame.Matrix("b", "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 1, 4, 3}, m.RawMatrix().Data)

	_, err = frame.Column("c")
	assert.Error(t, err)
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column string
	}{
		{"non numeric", "a,b\n1,2\n3,x\n", 3, "b"},
		{"empty field", "a,b\n1,\n", 2, "b"},
		{"field count", "a,b\n1,2\n3\n", 3, ""},
		{"no header", "", 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), "bad.csv")
			require.Error(t, err)
			var de *errors.DataError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, "bad.csv", de.Path)
			assert.Equal(t, tt.line, de.Line)
			assert.Equal(t, tt.column, de.Column)
		})
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	var de *errors.DataError
	assert.True(t, errors.As(err, &de))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGroupCounts(t *testing.T) {
	frame, err := NewFrame([]string{"y"}, [][]float64{{3, 1, 3, 2, 3}})
	require.NoError(t, err)
	counts, err := frame.GroupCounts("y")
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{1, 1}, {2, 1}, {3, 3}}, counts)
}

func TestNewFrameValidation(t *testing.T) {
	_, err := NewFrame([]string{"a", "a"}, [][]float64{{1}, {2}})
	assert.Error(t, err)
	_, err = NewFrame([]string{"a", "b"}, [][]float64{{1}, {2, 3}})
	assert.Error(t, err)
}

func TestLoadTrainData(t *testing.T) {
	path := writeFile(t, "train.csv", trainCSV())

	data, err := LoadTrainData(path, 11, 0.2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elevation", "Slope", "Soil_Type1"}, data.Features)
	assert.False(t, data.Frame.Has(IDColumn))
	assert.True(t, data.Frame.Has(TargetColumn))

	rt, ct := data.Xtrn.Dims()
	rv, _ := data.Xval.Dims()
	assert.Equal(t, 8, rt)
	assert.Equal(t, 2, rv)
	assert.Equal(t, 3, ct)
	yr, yc := data.Ytrn.Dims()
	assert.Equal(t, 8, yr)
	assert.Equal(t, 1, yc)

	// 同じシードなら同じ分割
	again, err := LoadTrainData(path, 11, 0.2)
	require.NoError(t, err)
	assert.True(t, mat.Equal(data.Xval, again.Xval))

	// 特徴量とラベルの対応は崩れない
	for i := 0; i < rt; i++ {
		id := (data.Xtrn.At(i, 0) - 2500) / 10
		assert.Equal(t, float64(int(id)%3+1), data.Ytrn.At(i, 0))
	}
}

func TestLoadTrainDataMissingTarget(t *testing.T) {
	path := writeFile(t, "train.csv", "Id,Elevation\n1,2\n2,3\n")
	_, err := LoadTrainData(path, 1, 0.2)
	var de *errors.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, TargetColumn, de.Column)
}

func TestLoadTestDataAndSubmission(t *testing.T) {
	path := writeFile(t, "test.csv", "Id,Elevation,Slope\n15121,2680,3\n15122,2683,3\n15123,2713,7\n")
	test, err := LoadTestData(path)
	require.NoError(t, err)
	assert.Equal(t, []int{15121, 15122, 15123}, test.Ids)
	assert.Equal(t, []string{"Elevation", "Slope"}, test.Features)

	out := filepath.Join(t.TempDir(), "tmp-submission-Test.csv")
	pred := mat.NewDense(3, 1, []float64{1, 7, 2})
	require.NoError(t, WriteSubmission(out, test.Ids, pred))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Id", "Cover_Type"},
		{"15121", "1"},
		{"15122", "7"},
		{"15123", "2"},
	}, records)

	err = WriteSubmission(out, test.Ids, mat.NewDense(2, 1, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}
