// Package tracking records training runs on an MLflow-compatible tracking
// server through its REST API.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

const apiPrefix = "/api/2.0/mlflow/"

// ErrorCodeAlreadyExists is the error_code returned when creating an
// experiment whose name is taken.
const ErrorCodeAlreadyExists = "RESOURCE_ALREADY_EXISTS"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
	RunStatusKilled   RunStatus = "KILLED"
)

// Experiment is the subset of the server's experiment record used here.
type Experiment struct {
	ExperimentID     string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location,omitempty"`
	LifecycleStage   string `json:"lifecycle_stage,omitempty"`
}

// RunInfo identifies a run.
type RunInfo struct {
	RunID        string    `json:"run_id"`
	ExperimentID string    `json:"experiment_id"`
	RunName      string    `json:"run_name,omitempty"`
	Status       RunStatus `json:"status,omitempty"`
}

// Run is a single tracked execution.
type Run struct {
	Info RunInfo `json:"info"`
}

// Tag is a key/value label attached to a run.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIError is a non-2xx response from the tracking server.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tracking: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tracking: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsAlreadyExists reports whether err is an APIError with code
// RESOURCE_ALREADY_EXISTS.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrorCodeAlreadyExists
}

// Client calls the tracking REST API. Calls are direct and unbuffered; there
// are no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	token      string
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBasicAuth sends HTTP basic credentials on every request.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithToken sends a bearer token on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithClock overrides the time source used for run and metric timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError("tracking.uri", "must be an absolute http(s) URL", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateExperiment creates an experiment and returns its id.
func (c *Client) CreateExperiment(ctx context.Context, name string) (string, error) {
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.do(ctx, http.MethodPost, "experiments/create", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

// GetExperimentByName looks an experiment up by its unique name.
func (c *Client) GetExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	var resp struct {
		Experiment Experiment `json:"experiment"`
	}
	path := "experiments/get-by-name?experiment_name=" + url.QueryEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Experiment.ExperimentID == "" {
		return nil, errors.Newf("tracking: experiment %q has no id", name)
	}
	return &resp.Experiment, nil
}

// CreateRun starts a run under experimentID.
func (c *Client) CreateRun(ctx context.Context, experimentID, runName string, tags ...Tag) (*Run, error) {
	req := struct {
		ExperimentID string `json:"experiment_id"`
		StartTime    int64  `json:"start_time"`
		RunName      string `json:"run_name,omitempty"`
		Tags         []Tag  `json:"tags,omitempty"`
	}{
		ExperimentID: experimentID,
		StartTime:    c.now().UnixMilli(),
		RunName:      runName,
		Tags:         tags,
	}
	var resp struct {
		Run Run `json:"run"`
	}
	if err := c.do(ctx, http.MethodPost, "runs/create", req, &resp); err != nil {
		return nil, err
	}
	if resp.Run.Info.RunID == "" {
		return nil, errors.New("tracking: runs/create returned no run id")
	}
	return &resp.Run, nil
}

// LogParam records a parameter on a run.
func (c *Client) LogParam(ctx context.Context, runID, key, value string) error {
	return c.do(ctx, http.MethodPost, "runs/log-parameter", map[string]string{
		"run_id": runID,
		"key":    key,
		"value":  value,
	}, nil)
}

// LogMetric records a metric value on a run at step 0.
func (c *Client) LogMetric(ctx context.Context, runID, key string, value float64) error {
	req := struct {
		RunID     string  `json:"run_id"`
		Key       string  `json:"key"`
		Value     float64 `json:"value"`
		Timestamp int64   `json:"timestamp"`
		Step      int64   `json:"step"`
	}{
		RunID:     runID,
		Key:       key,
		Value:     value,
		Timestamp: c.now().UnixMilli(),
	}
	return c.do(ctx, http.MethodPost, "runs/log-metric", req, nil)
}

// SetTerminated marks a run as ended with the given status.
func (c *Client) SetTerminated(ctx context.Context, runID string, status RunStatus) error {
	req := struct {
		RunID   string    `json:"run_id"`
		Status  RunStatus `json:"status"`
		EndTime int64     `json:"end_time"`
	}{
		RunID:   runID,
		Status:  status,
		EndTime: c.now().UnixMilli(),
	}
	return c.do(ctx, http.MethodPost, "runs/update", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || (apiErr.Code == "" && apiErr.Message == "") {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return errors.WithStack(apiErr)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
