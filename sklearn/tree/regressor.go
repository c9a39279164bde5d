package tree

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// DecisionTreeRegressor is a CART regression tree. Leaves predict the
// weighted mean of their targets unless overridden through Tree().
type DecisionTreeRegressor struct {
	state *model.StateManager
	params

	tree *Tree
}

// NewDecisionTreeRegressor creates a regressor with the mse criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{state: model.NewStateManager(), params: defaultParams("mse")}
	for _, opt := range opts {
		opt(&dt.params)
	}
	return dt
}

// Fit builds the tree with unit sample weights.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree on the first column of y.
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	n, d, err := checkFitInput("DecisionTreeRegressor.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	if err := dt.validate("mse", "squared_error", "friedman_mse"); err != nil {
		return err
	}
	dt.state.Reset()

	target := mat.Col(nil, 0, y)
	weight := unitWeights(n, sampleWeight)
	if floats.Sum(weight) <= 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "sample weights sum to zero")
	}
	acc := newRegAccumulator(target, weight, dt.criterion)
	dt.tree = buildTree(mat.DenseCopyOf(X), weight, acc, dt.builderParams(d), newRNG(dt.randomState))

	dt.state.SetDimensions(d, n)
	dt.state.SetFitted()
	return nil
}

// Predict returns the leaf value of every row as an n x 1 matrix.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", "Predict", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, dt.tree.Nodes[dt.tree.applyRow(X, i)].Value[0])
	}
	return out, nil
}

// Apply returns the leaf index of every row.
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if err := dt.state.CheckPredictInput("DecisionTreeRegressor", "Apply", X); err != nil {
		return nil, err
	}
	return dt.tree.Apply(X), nil
}

// Tree returns the fitted tree structure.
func (dt *DecisionTreeRegressor) Tree() *Tree { return dt.tree }

// Clone returns an unfitted copy with the same hyperparameters.
func (dt *DecisionTreeRegressor) Clone() model.Estimator {
	return NewDecisionTreeRegressor(dt.options()...)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	return dt.setParams("DecisionTreeRegressor", values)
}
