package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()
	var train, test strings.Builder
	train.WriteString("Id,Elevation,Slope,Cover_Type\n")
	test.WriteString("Id,Elevation,Slope\n")
	for i := 0; i < 45; i++ {
		c := i%3 + 1
		fmt.Fprintf(&train, "%d,%d,%d,%d\n", i+1, 2000+c*400+(i*11)%60, c*4+i%3, c)
	}
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&test, "%d,%d,%d\n", 100+i, 2400+i*150, 5+i)
	}
	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	require.NoError(t, os.WriteFile(trainPath, []byte(train.String()), 0o644))
	require.NoError(t, os.WriteFile(testPath, []byte(test.String()), 0o644))
	return trainPath, testPath
}

func TestConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("train: a.csv\nout_dir: from-file\ncv_folds: 4\n"), 0o644))

	cfg, err := config(args{Config: cfgPath, OutDir: "from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "a.csv", cfg.TrainPath)
	assert.Equal(t, "test.csv", cfg.TestPath)
	assert.Equal(t, "from-flag", cfg.OutDir)
	assert.Equal(t, 4, cfg.CVFolds)

	_, err = config(args{Config: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestRunSummaryControlsHeatmap(t *testing.T) {
	for _, withSummary := range []bool{false, true} {
		t.Run(fmt.Sprintf("summary=%v", withSummary), func(t *testing.T) {
			dir := t.TempDir()
			trainPath, testPath := writeInputs(t, dir)
			cfgPath := filepath.Join(dir, "run.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte("cv_folds: 3\n"), 0o644))
			outDir := filepath.Join(dir, "out")

			var out bytes.Buffer
			err := run(args{
				Seed:    11,
				Summary: withSummary,
				Config:  cfgPath,
				Train:   trainPath,
				Test:    testPath,
				OutDir:  outDir,
			}, &out)
			require.NoError(t, err)

			_, statErr := os.Stat(filepath.Join(outDir, "tmp-correlation-matrix.png"))
			assert.Equal(t, withSummary, statErr == nil)
			assert.Equal(t, withSummary, strings.Contains(out.String(), "dtype: int64"))

			subs, err := filepath.Glob(filepath.Join(outDir, "tmp-submission-*.csv"))
			require.NoError(t, err)
			assert.Len(t, subs, 10)
			assert.FileExists(t, filepath.Join(outDir, "tmp-submission-ScaledLogisticRegression.csv"))
		})
	}
}
