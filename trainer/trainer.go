// Package trainer fits the taxi fare pipeline and records the run on an
// experiment tracking server.
package trainer

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/linear"
	"github.com/YuminosukeSato/taxifare/metrics"
	"github.com/YuminosukeSato/taxifare/pipeline"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/preprocessing"
	"github.com/YuminosukeSato/taxifare/tracking"
)

// Step names of the pipeline built by BuildPipeline.
const (
	StepPreprocess = "preproc"
	StepModel      = "linear_model"

	BranchDistance = "distance"
	BranchTime     = "time"

	StepDistance = "dist_trans"
	StepScaler   = "stdscaler"
	StepTimeEnc  = "time_enc"
	StepOneHot   = "ohe"
)

// MetricRMSE is the metric key written by Evaluate.
const MetricRMSE = "rmse"

// DistanceColumns are the coordinates fed to the distance branch, in the
// order DistanceTransformer expects.
var DistanceColumns = []string{
	dataset.ColumnPickupLatitude,
	dataset.ColumnPickupLongitude,
	dataset.ColumnDropoffLatitude,
	dataset.ColumnDropoffLongitude,
}

// Tracker records params and metrics for one run. *tracking.Logger is the
// production implementation.
type Tracker interface {
	ExperimentID(ctx context.Context) (string, error)
	LogParam(ctx context.Context, key string, value interface{}) error
	LogMetric(ctx context.Context, key string, value float64) error
	Close(ctx context.Context, status tracking.RunStatus) error
}

// Trainer holds a training set, the pipeline fitted on it and the tracker
// used to record the run. It is not safe for concurrent use.
type Trainer struct {
	X *dataset.Frame
	y *mat.VecDense

	experimentName string
	timeZone       string
	tracker        Tracker
	logger         log.Logger

	pipeline *pipeline.Pipeline
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithTracker sets the tracker.
func WithTracker(t Tracker) Option {
	return func(tr *Trainer) { tr.tracker = t }
}

// WithTimeZone sets the zone the time features are computed in.
func WithTimeZone(zone string) Option {
	return func(tr *Trainer) { tr.timeZone = zone }
}

// WithLogger sets the structured logger.
func WithLogger(l log.Logger) Option {
	return func(tr *Trainer) { tr.logger = l }
}

// New returns a Trainer for X and y. Without WithTracker the run is recorded
// on the server at trackingURI under experimentName.
func New(X *dataset.Frame, y *mat.VecDense, trackingURI, experimentName string, opts ...Option) (*Trainer, error) {
	if X.Rows() == 0 || y == nil {
		return nil, errors.NewModelError("trainer.New", "empty data", errors.ErrEmptyData)
	}
	if X.Rows() != y.Len() {
		return nil, errors.NewDimensionError("trainer.New", X.Rows(), y.Len(), 0)
	}

	t := &Trainer{
		X:              X,
		y:              y,
		experimentName: experimentName,
		timeZone:       preprocessing.DefaultTimeZone,
		logger:         log.GetLoggerWithName("trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracker == nil {
		t.tracker = tracking.NewLogger(trackingURI, experimentName, tracking.WithLogger(t.logger))
	}
	t.logger = t.logger.With(log.ExperimentNameKey, experimentName)
	return t, nil
}

// ExperimentName returns the configured experiment name.
func (t *Trainer) ExperimentName() string {
	return t.experimentName
}

// Pipeline returns the last built pipeline, or nil before BuildPipeline.
func (t *Trainer) Pipeline() *pipeline.Pipeline {
	return t.pipeline
}

// BuildPipeline replaces the pipeline with a new unfit one:
// distance (haversine then scaled) and time (dow/hour/month/year one-hot)
// branches, remaining columns dropped, then a linear regression.
func (t *Trainer) BuildPipeline() (*pipeline.Pipeline, error) {
	timeEnc, err := preprocessing.NewTimeFeaturesEncoder(dataset.ColumnPickupDatetime, t.timeZone)
	if err != nil {
		return nil, err
	}

	distPipe := pipeline.New(
		pipeline.Step{Name: StepDistance, Estimator: preprocessing.NewDistanceTransformer()},
		pipeline.Step{Name: StepScaler, Estimator: preprocessing.NewStandardScalerDefault()},
	)
	timePipe := pipeline.New(
		pipeline.Step{Name: StepTimeEnc, Estimator: timeEnc},
		pipeline.Step{Name: StepOneHot, Estimator: preprocessing.NewOneHotEncoder(preprocessing.HandleUnknownIgnore)},
	)
	distPipe.SetLogger(t.logger)
	timePipe.SetLogger(t.logger)

	preproc, err := preprocessing.NewColumnTransformer(t.X.Columns,
		preprocessing.Branch{Name: BranchDistance, Transformer: distPipe, Columns: DistanceColumns},
		preprocessing.Branch{Name: BranchTime, Transformer: timePipe, Columns: []string{dataset.ColumnPickupDatetime}},
	)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(
		pipeline.Step{Name: StepPreprocess, Estimator: preproc},
		pipeline.Step{Name: StepModel, Estimator: linear.NewLinearRegression()},
	)
	p.SetLogger(t.logger)
	t.pipeline = p
	return p, nil
}

// Run builds the pipeline and fits it on the held training set.
func (t *Trainer) Run() error {
	p, err := t.BuildPipeline()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := p.Fit(t.X.X, t.y); err != nil {
		return errors.Wrap(err, "fit pipeline")
	}
	t.logger.Info("Pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, t.X.Rows(),
		log.FeaturesKey, len(t.X.Columns),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Evaluate predicts XTest, logs the RMSE against yTest as metric "rmse" and
// returns it. It fails with NotFittedError before Run.
func (t *Trainer) Evaluate(ctx context.Context, XTest *dataset.Frame, yTest *mat.VecDense) (float64, error) {
	if t.pipeline == nil || !t.pipeline.IsFitted() {
		return 0, errors.NewNotFittedError("Pipeline", "Evaluate")
	}
	if XTest.Rows() == 0 || yTest == nil {
		return 0, errors.NewModelError("Trainer.Evaluate", "empty data", errors.ErrEmptyData)
	}

	pred, err := t.pipeline.Predict(XTest.X)
	if err != nil {
		return 0, errors.Wrap(err, "predict")
	}
	rmse, err := metrics.RMSEMatrix(yTest, pred)
	if err != nil {
		return 0, err
	}

	t.logger.Info("Evaluation finished",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, XTest.Rows(),
		log.RMSEKey, rmse,
	)
	if err := t.tracker.LogMetric(ctx, MetricRMSE, rmse); err != nil {
		return rmse, errors.Wrap(err, "log rmse")
	}
	return rmse, nil
}

// Predict returns fares for X using the fitted pipeline.
func (t *Trainer) Predict(X *dataset.Frame) (*mat.VecDense, error) {
	if t.pipeline == nil {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	pred, err := t.pipeline.Predict(X.X)
	if err != nil {
		return nil, err
	}
	r, _ := pred.Dims()
	return mat.NewVecDense(r, mat.Col(nil, 0, pred)), nil
}

// Params returns the params LogParams records: the model kind, the training
// sample count and every pipeline param flattened as "step__param".
func (t *Trainer) Params() map[string]interface{} {
	params := map[string]interface{}{
		"model":     "linear",
		"n_samples": t.X.Rows(),
	}
	if t.pipeline != nil {
		for k, v := range t.pipeline.GetParams() {
			params[k] = v
		}
	}
	return params
}

// LogParams records Params on the run.
func (t *Trainer) LogParams(ctx context.Context) error {
	for k, v := range t.Params() {
		if err := t.tracker.LogParam(ctx, k, v); err != nil {
			return errors.Wrapf(err, "log param %s", k)
		}
	}
	return nil
}

// ExperimentID returns the tracker's resolved experiment id.
func (t *Trainer) ExperimentID(ctx context.Context) (string, error) {
	return t.tracker.ExperimentID(ctx)
}

// Close terminates the run with status.
func (t *Trainer) Close(ctx context.Context, status tracking.RunStatus) error {
	return t.tracker.Close(ctx, status)
}

// ExportWeights returns the fitted linear model's weights named after the
// preprocessed features.
func (t *Trainer) ExportWeights() (*model.ModelWeights, error) {
	if t.pipeline == nil || !t.pipeline.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "ExportWeights")
	}
	lr, ok := t.pipeline.NamedSteps()[StepModel].(*linear.LinearRegression)
	if !ok {
		return nil, errors.Newf("step %q is not a linear regression", StepModel)
	}
	var names []string
	if namer, ok := t.pipeline.NamedSteps()[StepPreprocess].(model.FeatureNamer); ok {
		names = namer.FeatureNamesOut(t.X.Columns)
	}
	return lr.ExportWeights(names)
}

func (t *Trainer) String() string {
	return fmt.Sprintf("Trainer(experiment=%q, samples=%d)", t.experimentName, t.X.Rows())
}
