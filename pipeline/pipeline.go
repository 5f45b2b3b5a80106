// Package pipeline implements a scikit-learn compatible Pipeline for chaining
// transformers and a final estimator.
package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// Step represents a single step in the pipeline.
// Each step is a tuple of (name, transformer/estimator).
type Step struct {
	Name      string      // Name of this step (for identification)
	Estimator interface{} // Can be Transformer or Estimator
}

// Pipeline chains multiple transforms and optionally a final estimator.
// Intermediate steps must be transformers (i.e., have a transform method).
// The final step can be a transformer or an estimator.
//
// A Pipeline starts unfit; Predict and Transform fail with NotFittedError
// until Fit succeeds. Fitted stages are only applied, never refit, by
// Predict and Transform.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	steps      []Step
	namedSteps map[string]interface{}
}

// New creates a new Pipeline with the given steps.
// This is equivalent to sklearn.pipeline.Pipeline(steps)
func New(steps ...Step) *Pipeline {
	namedSteps := make(map[string]interface{}, len(steps))
	for _, step := range steps {
		namedSteps[step.Name] = step.Estimator
	}

	return &Pipeline{
		state:      model.NewStateManager(),
		logger:     log.GetLoggerWithName("Pipeline"),
		steps:      steps,
		namedSteps: namedSteps,
	}
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline.
// Steps are named step1, step2, ...
func Make(estimators ...interface{}) *Pipeline {
	steps := make([]Step, len(estimators))
	for i, estimator := range estimators {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: estimator}
	}
	return New(steps...)
}

// SetLogger replaces the logger used for step timings.
func (p *Pipeline) SetLogger(l log.Logger) {
	p.logger = l
}

// Fit trains the pipeline.
// Fit all the transformers one after the other and transform the
// data, then fit the final estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if len(p.steps) == 0 {
		return errors.NewValidationError("steps", "pipeline has no steps", 0)
	}
	p.state.Reset()

	Xt, err := p.fitTransformers(X)
	if err != nil {
		return err
	}

	finalStep := p.steps[len(p.steps)-1]
	start := time.Now()
	switch est := finalStep.Estimator.(type) {
	case model.Fitter:
		err = est.Fit(Xt, y)
	case model.Transformer:
		err = est.Fit(Xt)
	default:
		return errors.NewValidationError(
			"pipeline final step",
			"final step must have Fit method",
			finalStep.Name,
		)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to fit final step '%s'", finalStep.Name)
	}
	p.logStep(finalStep.Name, log.OperationFit, start, Xt)

	rows, cols := X.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

// Predict applies transforms to the data, and predict with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.Predict")

	if err := p.state.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}

	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}

	finalStep := p.steps[len(p.steps)-1]
	predictor, ok := finalStep.Estimator.(model.Predictor)
	if !ok {
		return nil, errors.NewValidationError(
			"pipeline final step",
			"final step must have Predict method for prediction",
			finalStep.Name,
		)
	}
	return predictor.Predict(Xt)
}

// Transform applies transforms to the data.
// Only valid if every step, including the last, is a transformer.
func (p *Pipeline) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.Transform")

	if err := p.state.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}

	Xt := X
	for _, step := range p.steps {
		transformer, ok := step.Estimator.(interface {
			Transform(mat.Matrix) (mat.Matrix, error)
		})
		if !ok {
			return nil, errors.NewValidationError(
				"pipeline step",
				"all steps must be transformers for Transform",
				step.Name,
			)
		}

		Xt, err = transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

// FitTransform fits the pipeline and transforms the data.
// Every step must be a transformer; y is ignored.
func (p *Pipeline) FitTransform(X, y mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.FitTransform")

	if len(p.steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline has no steps", 0)
	}
	p.state.Reset()

	Xt, err := p.fitTransformers(X)
	if err != nil {
		return nil, err
	}

	finalStep := p.steps[len(p.steps)-1]
	transformer, ok := finalStep.Estimator.(model.Transformer)
	if !ok {
		return nil, errors.NewValidationError(
			"pipeline step",
			"all steps must be transformers for FitTransform",
			finalStep.Name,
		)
	}
	start := time.Now()
	Xt, err = transformer.FitTransform(Xt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fit step '%s'", finalStep.Name)
	}
	p.logStep(finalStep.Name, log.OperationFit, start, Xt)

	rows, cols := X.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return Xt, nil
}

// Score returns the score of the final estimator.
func (p *Pipeline) Score(X, y mat.Matrix) (float64, error) {
	if err := p.state.RequireFitted("Pipeline", "Score"); err != nil {
		return 0, err
	}

	Xt, err := p.transform(X)
	if err != nil {
		return 0, err
	}

	finalStep := p.steps[len(p.steps)-1]
	scorer, ok := finalStep.Estimator.(interface {
		Score(mat.Matrix, mat.Matrix) (float64, error)
	})
	if !ok {
		return 0, errors.NewValidationError(
			"pipeline final step",
			"final step must have Score method",
			finalStep.Name,
		)
	}
	return scorer.Score(Xt, y)
}

// IsFitted reports whether Fit has completed successfully.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// GetParams returns the parameters of every step, prefixed with the step
// name ("step__param"). Nested pipelines and column transformers contribute
// their own prefixed keys, so names compose as "outer__inner__param".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for _, step := range p.steps {
		if getter, ok := step.Estimator.(model.ParameterGetter); ok {
			for key, value := range getter.GetParams() {
				params[fmt.Sprintf("%s__%s", step.Name, key)] = value
			}
		}
	}
	return params
}

// FeatureNamesOut threads input names through every step. It returns nil as
// soon as a step cannot name its outputs.
func (p *Pipeline) FeatureNamesOut(input []string) []string {
	names := input
	for _, step := range p.steps {
		namer, ok := step.Estimator.(model.FeatureNamer)
		if !ok {
			return nil
		}
		if names = namer.FeatureNamesOut(names); names == nil {
			return nil
		}
	}
	return names
}

// NamedSteps returns the steps as a map for easy access by name.
func (p *Pipeline) NamedSteps() map[string]interface{} {
	return p.namedSteps
}

// Steps returns the list of steps.
func (p *Pipeline) Steps() []Step {
	steps := make([]Step, len(p.steps))
	copy(steps, p.steps)
	return steps
}

// fitTransformers fits and applies every step but the last.
func (p *Pipeline) fitTransformers(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	for i := 0; i < len(p.steps)-1; i++ {
		step := p.steps[i]
		start := time.Now()

		var err error
		switch t := step.Estimator.(type) {
		case model.Transformer:
			Xt, err = t.FitTransform(Xt)
		case interface {
			FitTransform(X, y mat.Matrix) (mat.Matrix, error)
		}:
			Xt, err = t.FitTransform(Xt, nil)
		default:
			return nil, errors.NewValidationError(
				"pipeline step",
				"all intermediate steps must be transformers",
				step.Name,
			)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fit step '%s'", step.Name)
		}
		p.logStep(step.Name, log.OperationFit, start, Xt)
	}
	return Xt, nil
}

// transform applies all transforms except the final estimator.
func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	Xt := X
	var err error

	for i := 0; i < len(p.steps)-1; i++ {
		step := p.steps[i]
		transformer, ok := step.Estimator.(interface {
			Transform(mat.Matrix) (mat.Matrix, error)
		})
		if !ok {
			return nil, errors.NewValidationError(
				"pipeline step",
				"intermediate steps must be transformers",
				step.Name,
			)
		}

		Xt, err = transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

func (p *Pipeline) logStep(name, op string, start time.Time, Xt mat.Matrix) {
	if p.logger == nil {
		return
	}
	rows, cols := Xt.Dims()
	p.logger.Debug("Pipeline step completed",
		log.StepKey, name,
		log.OperationKey, op,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
}
