package tree

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// MaxFeatures is the number of features examined per split, resolved
// against the feature count at fit time.
type MaxFeatures struct {
	mode string
	n    int
	frac float64
}

// Predefined feature-sampling rules.
var (
	MaxFeaturesAll  = MaxFeatures{mode: "all"}
	MaxFeaturesSqrt = MaxFeatures{mode: "sqrt"}
	MaxFeaturesLog2 = MaxFeatures{mode: "log2"}
)

// MaxFeaturesN examines exactly n features.
func MaxFeaturesN(n int) MaxFeatures {
	return MaxFeatures{mode: "int", n: n}
}

// MaxFeaturesFraction examines max(1, int(frac * n_features)) features.
func MaxFeaturesFraction(frac float64) MaxFeatures {
	return MaxFeatures{mode: "fraction", frac: frac}
}

// ParseMaxFeatures accepts "all", "auto" (an alias of sqrt for
// classifiers), "sqrt", "log2", an integer, or a fraction in (0, 1].
func ParseMaxFeatures(s string) (MaxFeatures, error) {
	switch s {
	case "", "all", "none":
		return MaxFeaturesAll, nil
	case "auto", "sqrt":
		return MaxFeaturesSqrt, nil
	case "log2":
		return MaxFeaturesLog2, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return MaxFeaturesN(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return MaxFeaturesFraction(f), nil
	}
	return MaxFeatures{}, errors.NewValidationError("max_features", "must be all, sqrt, log2, an integer or a fraction", s)
}

// Resolve returns the feature count for nFeatures columns.
func (m MaxFeatures) Resolve(nFeatures int) int {
	var k int
	switch m.mode {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "int":
		k = m.n
	case "fraction":
		k = int(m.frac * float64(nFeatures))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k
}

// String renders the rule the way ParseMaxFeatures reads it.
func (m MaxFeatures) String() string {
	switch m.mode {
	case "int":
		return strconv.Itoa(m.n)
	case "fraction":
		return strconv.FormatFloat(m.frac, 'g', -1, 64)
	case "":
		return "all"
	}
	return m.mode
}
