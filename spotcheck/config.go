package spotcheck

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/forestcover/datasets"
	"github.com/YuminosukeSato/forestcover/model_selection"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// Config controls a spot-check run. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// TrainPath and TestPath are the Kaggle CSV files.
	TrainPath string `yaml:"train"`
	TestPath  string `yaml:"test"`
	// OutDir receives the heatmap and the submission files.
	OutDir string `yaml:"out_dir"`

	ValidationFraction float64 `yaml:"validation_fraction"`
	CVFolds            int     `yaml:"cv_folds"`
	Scoring            string  `yaml:"scoring"`
	// Scaler is the first step of every pipeline: "standard" or "minmax".
	Scaler string `yaml:"scaler"`

	// Models overrides hyperparameters per model name, for example
	//
	//	models:
	//	  SVC: {C: 10}
	//	  RandomForest: {n_estimators: 100}
	Models map[string]map[string]interface{} `yaml:"models"`
}

// DefaultConfig is the stock Kaggle run: 10 unshuffled folds,
// accuracy, standard scaling and files in the working directory.
func DefaultConfig() Config {
	return Config{
		TrainPath:          "train.csv",
		TestPath:           "test.csv",
		OutDir:             ".",
		ValidationFraction: datasets.DefaultValidationFraction,
		CVFolds:            10,
		Scoring:            "accuracy",
		Scaler:             "standard",
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the run settings and that every overridden model exists.
func (c Config) Validate() error {
	switch {
	case c.CVFolds < 2:
		return errors.NewValidationError("cv_folds", "must be at least 2", c.CVFolds)
	case c.ValidationFraction <= 0 || c.ValidationFraction >= 1:
		return errors.NewValidationError("validation_fraction", "must be in (0, 1)", c.ValidationFraction)
	case c.OutDir == "":
		return errors.NewValidationError("out_dir", "must not be empty", c.OutDir)
	}
	if _, err := model_selection.GetScorer(c.Scoring); err != nil {
		return err
	}
	known := make(map[string]bool, len(modelNames))
	for _, n := range modelNames {
		known[n] = true
	}
	for name := range c.Models {
		if !known[name] {
			return errors.NewValidationError("models", "unknown model", name)
		}
	}
	return nil
}
