package spotcheck

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/forestcover/datasets"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/summary"
)

// writeData は 3 クラスが行ごとに交互に並ぶ小さな学習・テストファイルを書く
func writeData(t *testing.T, dir string, nTrain, nTest int) (string, string) {
	t.Helper()
	header := "Elevation,Slope,Hillshade_9am,Soil_Type1"
	row := func(i, c int) string {
		return fmt.Sprintf("%d,%d,%d,0", 2000+c*300+(i*7)%50, c*5+(i*3)%4, (i*13)%200)
	}

	var train strings.Builder
	train.WriteString("Id," + header + ",Cover_Type\n")
	for i := 0; i < nTrain; i++ {
		c := i%3 + 1
		fmt.Fprintf(&train, "%d,%s,%d\n", i+1, row(i, c), c)
	}
	var test strings.Builder
	test.WriteString("Id," + header + "\n")
	for i := 0; i < nTest; i++ {
		fmt.Fprintf(&test, "%d,%s\n", 10000+i, row(i, i%3+1))
	}

	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	require.NoError(t, os.WriteFile(trainPath, []byte(train.String()), 0o644))
	require.NoError(t, os.WriteFile(testPath, []byte(test.String()), 0o644))
	return trainPath, testPath
}

func TestBatteryOrderAndNames(t *testing.T) {
	battery, err := Battery(DefaultConfig(), 11)
	require.NoError(t, err)
	require.Len(t, battery, 10)
	for i, name := range ModelNames() {
		assert.Equal(t, "Scaled"+name, battery[i].Name)
		assert.Equal(t, []string{ScalerStep, name}, battery[i].Pipeline.Steps())
	}
}

func TestBatteryOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte("models:\n  SVC: {C: 10}\n  RandomForest: {n_estimators: 25}\nscaler: none\n"))
	require.NoError(t, err)
	battery, err := Battery(cfg, 1)
	require.NoError(t, err)

	byName := map[string]map[string]interface{}{}
	for _, np := range battery {
		byName[np.Name] = np.Pipeline.GetParams()
	}
	// scaler: none ではパイプラインは推定器だけ
	assert.Equal(t, 10.0, byName["SVC"]["SVC__C"])
	assert.Equal(t, 25, byName["RandomForest"]["RandomForest__n_estimators"])
	assert.Equal(t, int64(1), byName["DecisionTreeClassifier"]["DecisionTreeClassifier__random_state"])
	assert.Equal(t, "SAMME.R", byName["AdaBoost"]["AdaBoost__algorithm"])

	cfg.Models = map[string]map[string]interface{}{"SVC": {"shrinking": true}}
	_, err = Battery(cfg, 1)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte("cv_folds: 5\nout_dir: out\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CVFolds)
	assert.Equal(t, "out", cfg.OutDir)
	assert.Equal(t, "accuracy", cfg.Scoring)

	for _, bad := range []string{
		"cv_folds: 1\n",
		"scoring: roc_auc\n",
		"models:\n  XGBoost: {}\n",
		"folds: 3\n",
		"validation_fraction: 1.5\n",
	} {
		_, err := ParseConfig([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunnerEndToEnd(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	prev := log.GetLogger()
	log.SetLogger(logger)
	defer log.SetLogger(prev)

	dir := t.TempDir()
	trainPath, testPath := writeData(t, dir, 60, 12)
	cfg := DefaultConfig()
	cfg.TrainPath, cfg.TestPath = trainPath, testPath
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.CVFolds = 3

	train, err := datasets.LoadTrainData(cfg.TrainPath, 11, cfg.ValidationFraction)
	require.NoError(t, err)
	test, err := datasets.LoadTestData(cfg.TestPath)
	require.NoError(t, err)
	battery, err := Battery(cfg, 11)
	require.NoError(t, err)

	var out bytes.Buffer
	results, err := NewRunner(cfg, &out).Run(battery, train, test)
	require.NoError(t, err)
	require.Len(t, results, 10)

	cvLine := regexp.MustCompile(`^(\w+): (\d+\.\d{6}), (\d+\.\d{6})$`)
	var cvNames, saved []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := scanner.Text()
		if m := cvLine.FindStringSubmatch(line); m != nil {
			cvNames = append(cvNames, m[1])
			continue
		}
		if p, ok := strings.CutPrefix(line, "Saving predictions to "); ok {
			saved = append(saved, p)
		}
	}

	var want []string
	for _, name := range ModelNames() {
		want = append(want, "Scaled"+name)
	}
	assert.Equal(t, want, cvNames)
	require.Len(t, saved, 10)

	for i, res := range results {
		assert.Equal(t, want[i], res.Name)
		assert.Len(t, res.CV.TestScores, 3)
		assert.Equal(t, saved[i], res.SubmissionPath)
		assert.Equal(t, filepath.Join(cfg.OutDir, SubmissionFile(res.Name)), res.SubmissionPath)
		assert.Equal(t, 12, res.Rows)

		data, err := os.ReadFile(res.SubmissionPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Equal(t, "Id,Cover_Type", lines[0])
		assert.Len(t, lines, 13, res.Name)
	}

	// --summary を付けない限りヒートマップは書かれない
	_, err = os.Stat(filepath.Join(cfg.OutDir, summary.CorrelationPlotFile))
	assert.True(t, os.IsNotExist(err))
	assert.True(t, logger.ContainsMessage("submission written"))
}

func TestRunnerSummarize(t *testing.T) {
	dir := t.TempDir()
	trainPath, _ := writeData(t, dir, 30, 3)
	train, err := datasets.LoadTrainData(trainPath, 1, 0.2)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.OutDir = dir
	var out bytes.Buffer
	require.NoError(t, NewRunner(cfg, &out).Summarize(train))

	_, err = os.Stat(filepath.Join(dir, summary.CorrelationPlotFile))
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Soil_Type1")
	assert.Contains(t, out.String(), "Cover_Type\n1    10\n2    10\n3    10\ndtype: int64\n")
}

func TestHoldoutFeatureMismatch(t *testing.T) {
	dir := t.TempDir()
	trainPath, _ := writeData(t, dir, 30, 3)
	train, err := datasets.LoadTrainData(trainPath, 1, 0.2)
	require.NoError(t, err)
	test := &datasets.TestData{Features: []string{"Elevation"}}

	_, err = NewRunner(DefaultConfig(), &bytes.Buffer{}).Holdout(nil, train, test, nil)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}
