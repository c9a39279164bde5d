// Command forestcover spot-checks a battery of scaled classifiers on the
// Kaggle Forest Cover Type data and writes one submission per model.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alexflint/go-arg"

	"github.com/YuminosukeSato/forestcover/datasets"
	"github.com/YuminosukeSato/forestcover/pkg/log"
	"github.com/YuminosukeSato/forestcover/spotcheck"
)

var (
	name    = "forestcover"
	version = "0.1.0"
)

type args struct {
	Seed     int64  `arg:"--seed" default:"11" help:"random seed for the split and the estimators"`
	Summary  bool   `arg:"--summary" help:"plot the correlation matrix and print dtypes and class counts"`
	Tuning   bool   `arg:"--tuning" help:"reserved for hyperparameter search, currently ignored"`
	Config   string `arg:"--config" help:"optional YAML file with run settings and model overrides"`
	Train    string `arg:"--train" help:"training CSV (default train.csv)"`
	Test     string `arg:"--test" help:"test CSV (default test.csv)"`
	OutDir   string `arg:"--out-dir" help:"directory for the heatmap and submissions (default .)"`
	LogLevel string `arg:"--log-level" default:"info" help:"debug, info, warn or error"`
}

func (args) Version() string {
	return name + " " + version
}

func (args) Description() string {
	return "Spot-checks ten scaled classifiers with 10-fold cross-validation and writes tmp-submission-<Model>.csv files."
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := log.SetupLogger(a.LogLevel, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(a, os.Stdout); err != nil {
		log.LogError(err, "forestcover failed")
		os.Exit(1)
	}
}

// config merges the optional YAML file with the command line. Flags win.
func config(a args) (spotcheck.Config, error) {
	cfg := spotcheck.DefaultConfig()
	if a.Config != "" {
		var err error
		if cfg, err = spotcheck.LoadConfig(a.Config); err != nil {
			return cfg, err
		}
	}
	if a.Train != "" {
		cfg.TrainPath = a.Train
	}
	if a.Test != "" {
		cfg.TestPath = a.Test
	}
	if a.OutDir != "" {
		cfg.OutDir = a.OutDir
	}
	return cfg, cfg.Validate()
}

func run(a args, out io.Writer) error {
	cfg, err := config(a)
	if err != nil {
		return err
	}
	logger := log.GetLoggerWithName("main")
	logger.Info("starting",
		log.RandomSeedKey, a.Seed,
		log.TuningKey, a.Tuning,
		log.PathKey, cfg.OutDir,
	)

	train, err := datasets.LoadTrainData(cfg.TrainPath, a.Seed, cfg.ValidationFraction)
	if err != nil {
		return err
	}
	test, err := datasets.LoadTestData(cfg.TestPath)
	if err != nil {
		return err
	}

	runner := spotcheck.NewRunner(cfg, out)
	if a.Summary {
		if err := runner.Summarize(train); err != nil {
			return err
		}
	}

	battery, err := spotcheck.Battery(cfg, a.Seed)
	if err != nil {
		return err
	}
	_, err = runner.Run(battery, train, test)
	return err
}
