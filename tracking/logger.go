package tracking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// Logger records params and metrics for one run of one experiment.
//
// The client, the experiment id and the run are resolved on first use and
// cached for the lifetime of the Logger. A failed resolution is not cached, so
// the next call tries again. Logger is not safe for concurrent use.
type Logger struct {
	uri            string
	experimentName string
	runName        string
	clientOpts     []ClientOption
	logger         log.Logger

	client     *Client // nil until resolved
	resolution Resolution
	run        *Run // nil until resolved
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithClientOptions passes options to the lazily created Client.
func WithClientOptions(opts ...ClientOption) LoggerOption {
	return func(l *Logger) { l.clientOpts = append(l.clientOpts, opts...) }
}

// WithRunName overrides the generated run name.
func WithRunName(name string) LoggerOption {
	return func(l *Logger) { l.runName = name }
}

// WithLogger sets the structured logger.
func WithLogger(logger log.Logger) LoggerOption {
	return func(l *Logger) { l.logger = logger }
}

// NewLogger returns a Logger for experimentName on the server at uri. No
// network call is made until a param, metric or id is requested.
func NewLogger(uri, experimentName string, opts ...LoggerOption) *Logger {
	l := &Logger{
		uri:            uri,
		experimentName: experimentName,
		logger:         log.GetLoggerWithName("tracking"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.runName == "" {
		l.runName = "taxifare-" + uuid.NewString()[:8]
	}
	l.logger = l.logger.With(
		log.TrackingURIKey, uri,
		log.ExperimentNameKey, experimentName,
	)
	return l
}

// URI returns the tracking server address.
func (l *Logger) URI() string {
	return l.uri
}

// ExperimentName returns the configured experiment name.
func (l *Logger) ExperimentName() string {
	return l.experimentName
}

// Client returns the memoized API client.
func (l *Logger) Client() (*Client, error) {
	if l.client != nil {
		return l.client, nil
	}
	c, err := NewClient(l.uri, l.clientOpts...)
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

// ExperimentID returns the memoized experiment id, creating the experiment
// or looking it up by name on first call.
func (l *Logger) ExperimentID(ctx context.Context) (string, error) {
	if l.resolution.Outcome == Created || l.resolution.Outcome == AlreadyExists {
		return l.resolution.ExperimentID, nil
	}
	client, err := l.Client()
	if err != nil {
		return "", err
	}
	res, err := Resolve(ctx, client, l.experimentName)
	if err != nil {
		// Failed is recorded but not memoized; the next call resolves again.
		l.resolution = res
		l.logger.Error("Experiment resolution failed", err,
			log.ErrorCodeKey, log.ErrorTracking,
		)
		return "", err
	}
	if res.Cause != nil {
		l.logger.Warn("Experiment create failed, using existing experiment",
			log.ExperimentIDKey, res.ExperimentID,
			log.ErrAttrKey, res.Cause,
		)
	}
	l.resolution = res
	l.logger.Debug("Experiment resolved",
		log.ExperimentIDKey, res.ExperimentID,
		log.ResolutionKey, res.Outcome.String(),
	)
	return res.ExperimentID, nil
}

// Resolution returns how the experiment id was obtained. Outcome is
// Unresolved before the first ExperimentID call and Failed after a call
// that could neither create nor find the experiment.
func (l *Logger) Resolution() Resolution {
	return l.resolution
}

// Run returns the memoized run, creating it under the experiment on first call.
func (l *Logger) Run(ctx context.Context) (*Run, error) {
	if l.run != nil {
		return l.run, nil
	}
	experimentID, err := l.ExperimentID(ctx)
	if err != nil {
		return nil, err
	}
	run, err := l.client.CreateRun(ctx, experimentID, l.runName,
		Tag{Key: "mlflow.runName", Value: l.runName},
		Tag{Key: "mlflow.source.name", Value: "taxifare"},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create run")
	}
	l.run = run
	l.logger.Info("Run started",
		log.ExperimentIDKey, experimentID,
		log.RunIDKey, run.Info.RunID,
	)
	return run, nil
}

// RunID returns the memoized run id.
func (l *Logger) RunID(ctx context.Context) (string, error) {
	run, err := l.Run(ctx)
	if err != nil {
		return "", err
	}
	return run.Info.RunID, nil
}

// LogParam records a param on the run. Values are formatted with %v.
func (l *Logger) LogParam(ctx context.Context, key string, value interface{}) error {
	runID, err := l.RunID(ctx)
	if err != nil {
		return err
	}
	if err := l.client.LogParam(ctx, runID, key, formatParam(value)); err != nil {
		return errors.Wrapf(err, "log param %q", key)
	}
	return nil
}

// LogMetric records a metric on the run.
func (l *Logger) LogMetric(ctx context.Context, key string, value float64) error {
	runID, err := l.RunID(ctx)
	if err != nil {
		return err
	}
	if err := l.client.LogMetric(ctx, runID, key, value); err != nil {
		return errors.Wrapf(err, "log metric %q", key)
	}
	return nil
}

// Close marks the run terminated. It is a no-op when no run was started.
func (l *Logger) Close(ctx context.Context, status RunStatus) error {
	if l.run == nil {
		return nil
	}
	if err := l.client.SetTerminated(ctx, l.run.Info.RunID, status); err != nil {
		return errors.Wrap(err, "terminate run")
	}
	l.logger.Info("Run terminated",
		log.RunIDKey, l.run.Info.RunID,
		"status", string(status),
	)
	return nil
}

// ExperimentURL returns the web UI address of the resolved experiment.
func (l *Logger) ExperimentURL(ctx context.Context) (string, error) {
	id, err := l.ExperimentID(ctx)
	if err != nil {
		return "", err
	}
	return ExperimentURL(l.uri, id), nil
}

// Resolve creates experiment name, falling back to a lookup by name when
// create fails for any reason.
func Resolve(ctx context.Context, client *Client, name string) (Resolution, error) {
	id, createErr := client.CreateExperiment(ctx, name)
	if createErr == nil {
		return Resolution{Outcome: Created, ExperimentID: id}, nil
	}

	exp, lookupErr := client.GetExperimentByName(ctx, name)
	if lookupErr != nil {
		err := errors.CombineErrors(
			errors.Wrapf(createErr, "create experiment %q", name),
			errors.Wrapf(lookupErr, "get experiment %q", name),
		)
		return Resolution{Outcome: Failed, Cause: err}, err
	}

	res := Resolution{Outcome: AlreadyExists, ExperimentID: exp.ExperimentID}
	if !IsAlreadyExists(createErr) {
		res.Cause = createErr
	}
	return res, nil
}

func formatParam(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case nil:
		return "None"
	default:
		return fmt.Sprintf("%v", v)
	}
}
