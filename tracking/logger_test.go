package tracking

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

func TestLoggerMemoizesExperimentID(t *testing.T) {
	fake, srv := newFakeServer(t)
	ctx := context.Background()
	l := NewLogger(srv.URL, "fares")

	id1, err := l.ExperimentID(ctx)
	require.NoError(t, err)
	id2, err := l.ExperimentID(ctx)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, fake.count("experiments/create"))
	assert.Equal(t, 0, fake.count("experiments/get-by-name"))
	assert.Equal(t, Created, l.Resolution().Outcome)
}

func TestLoggerResolvesExistingExperiment(t *testing.T) {
	fake, srv := newFakeServer(t)
	ctx := context.Background()
	fake.experiments["fares"] = "99"

	l := NewLogger(srv.URL, "fares")
	id, err := l.ExperimentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "99", id)

	res := l.Resolution()
	assert.Equal(t, AlreadyExists, res.Outcome)
	assert.NoError(t, res.Cause)

	_, err = l.ExperimentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("experiments/create"))
	assert.Equal(t, 1, fake.count("experiments/get-by-name"))
}

func TestLoggerKeepsUnexpectedCreateFailure(t *testing.T) {
	fake, srv := newFakeServer(t)
	fake.experiments["fares"] = "5"
	fake.createStatus = http.StatusForbidden
	fake.createCode = "PERMISSION_DENIED"

	testLogger, _ := log.NewTestLogger(log.LevelDebug)
	l := NewLogger(srv.URL, "fares", WithLogger(testLogger))

	id, err := l.ExperimentID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", id)

	res := l.Resolution()
	assert.Equal(t, AlreadyExists, res.Outcome)
	require.Error(t, res.Cause)
	assert.False(t, IsAlreadyExists(res.Cause))
	assert.True(t, testLogger.ContainsMessage("Experiment create failed, using existing experiment"))
	assert.True(t, testLogger.ContainsField(log.ExperimentIDKey, "5"))
}

func TestLoggerResolutionFailure(t *testing.T) {
	fake, srv := newFakeServer(t)
	fake.createStatus = http.StatusInternalServerError
	fake.createCode = "INTERNAL_ERROR"
	fake.lookupStatus = http.StatusInternalServerError

	testLogger, _ := log.NewTestLogger(log.LevelDebug)
	l := NewLogger(srv.URL, "fares", WithLogger(testLogger))
	assert.Equal(t, srv.URL, l.URI())
	assert.Equal(t, "fares", l.ExperimentName())
	assert.Equal(t, Unresolved, l.Resolution().Outcome)

	_, err := l.ExperimentID(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "create experiment")
	assert.Equal(t, Failed, l.Resolution().Outcome)
	assert.Empty(t, l.Resolution().ExperimentID)
	assert.Error(t, l.Resolution().Cause)
	assert.True(t, testLogger.ContainsField(log.ErrorCodeKey, log.ErrorTracking))

	// Failures are recorded but not cached.
	fake.mu.Lock()
	fake.createStatus = 0
	fake.mu.Unlock()
	id, err := l.ExperimentID(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, Created, l.Resolution().Outcome)
	assert.NoError(t, l.Resolution().Cause)
	assert.Equal(t, 2, fake.count("experiments/create"))
}

func TestResolveFailedOutcome(t *testing.T) {
	fake, srv := newFakeServer(t)
	fake.createStatus = http.StatusServiceUnavailable
	fake.lookupStatus = http.StatusServiceUnavailable

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	res, err := Resolve(context.Background(), c, "fares")
	require.Error(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Empty(t, res.ExperimentID)
	assert.Equal(t, err, res.Cause)
	assert.Equal(t, "failed", res.Outcome.String())
}

func TestLoggerRunAndLogging(t *testing.T) {
	fake, srv := newFakeServer(t)
	ctx := context.Background()
	l := NewLogger(srv.URL, "fares", WithRunName("trial"))

	require.NoError(t, l.LogParam(ctx, "model", "linear"))
	require.NoError(t, l.LogParam(ctx, "n_samples", 3))
	require.NoError(t, l.LogParam(ctx, "test_size", 0.25))
	require.NoError(t, l.LogMetric(ctx, "rmse", 3.5))

	assert.Equal(t, 1, fake.count("runs/create"))
	assert.Equal(t, 3, fake.count("runs/log-parameter"))

	runID, err := l.RunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "linear", fake.param(runID, "model"))
	assert.Equal(t, "3", fake.param(runID, "n_samples"))
	assert.Equal(t, "0.25", fake.param(runID, "test_size"))
	assert.InDelta(t, 3.5, fake.metric(runID, "rmse"), 1e-12)

	require.NoError(t, l.Close(ctx, RunStatusFinished))
	assert.Equal(t, string(RunStatusFinished), fake.runStatus(runID))

	url, err := l.ExperimentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/#/experiments/1", url)
}

func TestLoggerCloseWithoutRun(t *testing.T) {
	fake, srv := newFakeServer(t)
	l := NewLogger(srv.URL, "fares")
	require.NoError(t, l.Close(context.Background(), RunStatusFailed))
	assert.Equal(t, 0, fake.count("runs/update"))
}

func TestLoggerInvalidURI(t *testing.T) {
	l := NewLogger("not a url", "fares")
	_, err := l.ExperimentID(context.Background())
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestFormatParam(t *testing.T) {
	assert.Equal(t, "linear", formatParam("linear"))
	assert.Equal(t, "0.25", formatParam(0.25))
	assert.Equal(t, "true", formatParam(true))
	assert.Equal(t, "None", formatParam(nil))
	assert.Equal(t, "10", formatParam(10))
}
