// Package neighbors implements brute-force nearest neighbour classification.
package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/core/parallel"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// blockRows is the number of query rows whose distances are computed with
// one matrix product.
const blockRows = 256

// KNeighborsClassifier votes among the k closest training samples under the
// Minkowski distance. Vote ties go to the smallest class label.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int
	weights    string // "uniform" or "distance"
	p          float64

	X       *mat.Dense
	labels  []int
	norms   []float64
	classes []int
}

// KNNOption configures a KNeighborsClassifier.
type KNNOption func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) KNNOption {
	return func(c *KNeighborsClassifier) { c.nNeighbors = k }
}

// WithWeights selects "uniform" or "distance" vote weights.
func WithWeights(w string) KNNOption {
	return func(c *KNeighborsClassifier) { c.weights = w }
}

// WithP sets the Minkowski power; 2 is Euclidean.
func WithP(p float64) KNNOption {
	return func(c *KNeighborsClassifier) { c.p = p }
}

// NewKNeighborsClassifier creates a classifier with k=5, uniform weights
// and Euclidean distance.
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	c := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    "uniform",
		p:          2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit stores the training set.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	n, d := X.Dims()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if ny, _ := y.Dims(); ny != n {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", n, ny, 0)
	}
	switch {
	case c.nNeighbors < 1:
		return errors.NewValidationError("n_neighbors", "must be at least 1", c.nNeighbors)
	case c.nNeighbors > n:
		return errors.NewValidationError("n_neighbors", "cannot exceed the number of training samples", c.nNeighbors)
	case c.weights != "uniform" && c.weights != "distance":
		return errors.NewValidationError("weights", "must be 'uniform' or 'distance'", c.weights)
	case c.p < 1:
		return errors.NewValidationError("p", "must be at least 1", c.p)
	}

	c.state.Reset()
	c.X = mat.DenseCopyOf(X)
	c.classes = model.UniqueClasses(y)
	c.labels = model.EncodeLabels(y, c.classes)
	c.norms = make([]float64, n)
	for i := range c.norms {
		row := c.X.RawRowView(i)
		c.norms[i] = floats.Dot(row, row)
	}
	c.state.SetDimensions(d, n)
	c.state.SetFitted()
	return nil
}

type neighbor struct {
	index int
	dist  float64
}

// Kneighbors returns, per query row, the indices of the k nearest training
// samples ordered by distance, and the distances.
func (c *KNeighborsClassifier) Kneighbors(X mat.Matrix) ([][]int, [][]float64, error) {
	nb, err := c.search("Kneighbors", X)
	if err != nil {
		return nil, nil, err
	}
	idx := make([][]int, len(nb))
	dist := make([][]float64, len(nb))
	for i, row := range nb {
		idx[i] = make([]int, len(row))
		dist[i] = make([]float64, len(row))
		for j, v := range row {
			idx[i][j] = v.index
			dist[i][j] = v.dist
		}
	}
	return idx, dist, nil
}

func (c *KNeighborsClassifier) search(method string, X mat.Matrix) ([][]neighbor, error) {
	if err := c.state.CheckPredictInput("KNeighborsClassifier", method, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	Q := mat.DenseCopyOf(X)
	out := make([][]neighbor, n)
	nTrain, _ := c.X.Dims()

	parallel.ParallelizeWithThreshold(n, blockRows, func(start, end int) {
		dist := make([]float64, nTrain)
		var block mat.Dense
		for b := start; b < end; b += blockRows {
			e := b + blockRows
			if e > end {
				e = end
			}
			if c.p == 2 {
				// |q|^2 + |t|^2 - 2 q·t
				block.Reset()
				block.Mul(Q.Slice(b, e, 0, d), c.X.T())
			}
			for i := b; i < e; i++ {
				q := Q.RawRowView(i)
				if c.p == 2 {
					qn := floats.Dot(q, q)
					for j := range dist {
						v := qn + c.norms[j] - 2*block.At(i-b, j)
						if v < 0 {
							v = 0
						}
						dist[j] = v
					}
				} else {
					for j := range dist {
						dist[j] = math.Pow(floats.Distance(q, c.X.RawRowView(j), c.p), c.p)
					}
				}
				out[i] = c.nearest(dist)
			}
		}
	})
	return out, nil
}

// nearest selects the k smallest entries of dist, which holds distances
// raised to the power p, and converts them back to distances.
func (c *KNeighborsClassifier) nearest(dist []float64) []neighbor {
	k := c.nNeighbors
	best := make([]neighbor, 0, k+1)
	for j, v := range dist {
		if len(best) == k && v >= best[k-1].dist {
			continue
		}
		pos := sort.Search(len(best), func(i int) bool { return best[i].dist > v })
		best = append(best, neighbor{})
		copy(best[pos+1:], best[pos:])
		best[pos] = neighbor{index: j, dist: v}
		if len(best) > k {
			best = best[:k]
		}
	}
	for i := range best {
		best[i].dist = math.Pow(best[i].dist, 1/c.p)
	}
	return best
}

// PredictProba returns the (weighted) vote share of every class.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nb, err := c.search("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return c.votes(nb), nil
}

func (c *KNeighborsClassifier) votes(nb [][]neighbor) *mat.Dense {
	K := len(c.classes)
	out := mat.NewDense(len(nb), K, nil)
	for i, row := range nb {
		v := out.RawRowView(i)
		exact := false
		if c.weights == "distance" {
			// 距離ゼロの近傍があればそれだけで投票する
			for _, n := range row {
				if n.dist == 0 {
					v[c.labels[n.index]]++
					exact = true
				}
			}
		}
		if !exact {
			for _, n := range row {
				w := 1.0
				if c.weights == "distance" {
					w = 1 / n.dist
				}
				v[c.labels[n.index]] += w
			}
		}
		floats.Scale(1/floats.Sum(v), v)
	}
	return out
}

// Predict returns the majority class among the neighbours.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	nb, err := c.search("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.LabelsToMatrix(model.ArgmaxRows(c.votes(nb)), c.classes), nil
}

// Classes returns the sorted class labels.
func (c *KNeighborsClassifier) Classes() []int { return c.classes }

// Clone returns an unfitted copy.
func (c *KNeighborsClassifier) Clone() model.Estimator {
	return NewKNeighborsClassifier(WithNNeighbors(c.nNeighbors), WithWeights(c.weights), WithP(c.p))
}

// GetParams returns the hyperparameters.
func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": c.nNeighbors,
		"weights":     c.weights,
		"algorithm":   "brute",
		"p":           c.p,
	}
}

// SetParams updates hyperparameters by name.
func (c *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "n_neighbors":
			c.nNeighbors, err = model.IntParam(key, v)
		case "weights":
			c.weights, err = model.StringParam(key, v)
		case "p":
			c.p, err = model.FloatParam(key, v)
		case "algorithm":
			// 総当たりのみ
		default:
			err = model.UnknownParam("KNeighborsClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
