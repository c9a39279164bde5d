// Package pipeline chains feature transformers with a final estimator.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forestcover/core/model"
	"github.com/YuminosukeSato/forestcover/metrics"
	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// Step is a named pipeline stage. Value holds a model.Transformer for every
// stage but the last, which holds a model.Estimator.
type Step struct {
	Name  string
	Value interface{}
}

// Pipeline is a scikit-learn style transform-then-predict composition.
// Fit runs FitTransform through each transformer and fits the final
// estimator on the result; Predict applies the fitted transforms first.
type Pipeline struct {
	state        *model.StateManager
	names        []string
	transformers []model.Transformer
	final        model.Estimator
}

// NewPipeline validates steps and builds a pipeline.
func NewPipeline(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step", 0)
	}
	p := &Pipeline{state: model.NewStateManager()}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" || strings.Contains(s.Name, "__") {
			return nil, errors.NewValidationError("steps", "step names must be non-empty and must not contain '__'", s.Name)
		}
		if seen[s.Name] {
			return nil, errors.NewValidationError("steps", "duplicate step name", s.Name)
		}
		seen[s.Name] = true
		p.names = append(p.names, s.Name)

		if i == len(steps)-1 {
			est, ok := s.Value.(model.Estimator)
			if !ok {
				return nil, errors.NewValidationError("steps", "last step must be an estimator", fmt.Sprintf("%T", s.Value))
			}
			p.final = est
			continue
		}
		tr, ok := s.Value.(model.Transformer)
		if !ok {
			return nil, errors.NewValidationError("steps", "intermediate steps must be transformers", fmt.Sprintf("%s (%T)", s.Name, s.Value))
		}
		p.transformers = append(p.transformers, tr)
	}
	return p, nil
}

// MustPipeline is NewPipeline that panics on invalid steps. Intended for
// statically known step lists.
func MustPipeline(steps ...Step) *Pipeline {
	p, err := NewPipeline(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

// Fit fits every transformer in order, then the final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	p.state.Reset()
	Xt := X
	for i, tr := range p.transformers {
		out, err := tr.FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", p.names[i])
		}
		Xt = out
	}
	if err := p.final.Fit(Xt, y); err != nil {
		return errors.Wrapf(err, "pipeline step %q", p.names[len(p.names)-1])
	}
	n, d := X.Dims()
	p.state.SetDimensions(d, n)
	p.state.SetFitted()
	return nil
}

func (p *Pipeline) transform(method string, X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.CheckPredictInput("Pipeline", method, X); err != nil {
		return nil, err
	}
	Xt := X
	for i, tr := range p.transformers {
		out, err := tr.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", p.names[i])
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X and predicts with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("Predict", X)
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// PredictProba transforms X and returns class probabilities of the final
// estimator, which must be a model.Classifier.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	clf, ok := p.final.(model.Classifier)
	if !ok {
		return nil, errors.NewValueError("Pipeline.PredictProba", fmt.Sprintf("final step %T is not a classifier", p.final))
	}
	Xt, err := p.transform("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return clf.PredictProba(Xt)
}

// Classes returns the classes of the final estimator, or nil.
func (p *Pipeline) Classes() []int {
	if clf, ok := p.final.(model.Classifier); ok {
		return clf.Classes()
	}
	return nil
}

// Score returns the mean accuracy on X, y.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(y, pred)
}

// Clone returns an unfitted pipeline with cloned steps.
func (p *Pipeline) Clone() model.Estimator {
	c := &Pipeline{
		state:        model.NewStateManager(),
		names:        append([]string(nil), p.names...),
		transformers: make([]model.Transformer, len(p.transformers)),
		final:        p.final.Clone(),
	}
	for i, tr := range p.transformers {
		c.transformers[i] = tr.Clone()
	}
	return c
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	return append([]string(nil), p.names...)
}

// Final returns the final estimator.
func (p *Pipeline) Final() model.Estimator {
	return p.final
}

// GetParams returns step parameters keyed as "<step>__<param>".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	add := func(name string, v interface{}) {
		if pg, ok := v.(model.ParameterGetter); ok {
			for k, val := range pg.GetParams() {
				params[name+"__"+k] = val
			}
		}
	}
	for i, tr := range p.transformers {
		add(p.names[i], tr)
	}
	add(p.names[len(p.names)-1], p.final)
	return params
}

// String lists the steps.
func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(steps=[%s])", strings.Join(p.names, ", "))
}
