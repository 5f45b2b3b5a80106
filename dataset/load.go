package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// DefaultS3Endpoint is used for s3:// sources when no endpoint is configured.
const DefaultS3Endpoint = "s3.amazonaws.com"

var requiredColumns = []string{
	ColumnFareAmount,
	ColumnPickupDatetime,
	ColumnPickupLongitude,
	ColumnPickupLatitude,
	ColumnDropoffLongitude,
	ColumnDropoffLatitude,
	ColumnPassengerCount,
}

type loadConfig struct {
	s3Endpoint string
	s3Region   string
	s3Secure   bool
	httpClient *http.Client
	logger     log.Logger
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

// WithS3Endpoint sets the host used for s3:// sources. secure selects HTTPS.
func WithS3Endpoint(endpoint string, secure bool) LoadOption {
	return func(c *loadConfig) {
		c.s3Endpoint = endpoint
		c.s3Secure = secure
	}
}

// WithS3Region pins the bucket region instead of looking it up.
func WithS3Region(region string) LoadOption {
	return func(c *loadConfig) {
		c.s3Region = region
	}
}

// WithHTTPClient sets the client used for http(s):// sources.
func WithHTTPClient(client *http.Client) LoadOption {
	return func(c *loadConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the logger that receives load statistics.
func WithLogger(logger log.Logger) LoadOption {
	return func(c *loadConfig) {
		c.logger = logger
	}
}

// Load reads at most nrows data rows (0 means all) from source and returns
// the rides that parsed completely. source is a local path, an http(s) URL or
// an s3://bucket/key URL read anonymously.
func Load(ctx context.Context, source string, nrows int, opts ...LoadOption) ([]Ride, error) {
	cfg := &loadConfig{
		s3Endpoint: DefaultS3Endpoint,
		s3Secure:   true,
		httpClient: http.DefaultClient,
		logger:     log.GetLoggerWithName("dataset"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if nrows < 0 {
		return nil, errors.NewValidationError("nrows", "must be >= 0", nrows)
	}

	start := time.Now()
	rc, err := openSource(ctx, source, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", source)
	}
	defer rc.Close()

	rides, dropped, err := ReadCSV(rc, nrows)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", source)
	}

	if dropped > 0 {
		errors.Warn(errors.NewDataConversionWarning("csv", "Ride",
			strconv.Itoa(dropped)+" rows with missing or unparsable fields dropped"))
	}
	cfg.logger.Info("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, source,
		log.SamplesKey, len(rides),
		log.DroppedKey, dropped,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rides, nil
}

func openSource(ctx context.Context, source string, cfg *loadConfig) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(source, "s3://"):
		return openS3(ctx, strings.TrimPrefix(source, "s3://"), cfg)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return openHTTP(ctx, source, cfg.httpClient)
	default:
		return os.Open(source)
	}
}

func openS3(ctx context.Context, path string, cfg *loadConfig) (io.ReadCloser, error) {
	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return nil, errors.NewValidationError("source", "s3 source must be s3://bucket/key", "s3://"+path)
	}

	client, err := minio.New(cfg.s3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: cfg.s3Secure,
		Region: cfg.s3Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create s3 client")
	}

	object, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces missing objects and access errors now.
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, err
	}
	return object, nil
}

func openHTTP(ctx context.Context, url string, client *http.Client) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// ReadCSV parses rides from r. The header row locates columns by name, so
// column order and extra columns do not matter. At most nrows data rows are
// consumed (0 means all); rows with a missing or unparsable field are skipped
// and counted in dropped.
func ReadCSV(r io.Reader, nrows int) (rides []Ride, dropped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, errors.NewModelError("ReadCSV", "empty input", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "read header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, 0, errors.NewValidationError("header", "missing required column", name)
		}
	}
	keyIdx, hasKey := index[ColumnKey]

	for nrows == 0 || len(rides)+dropped < nrows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				dropped++
				continue
			}
			return nil, 0, errors.Wrap(err, "read record")
		}

		ride, ok := parseRide(record, index)
		if !ok {
			dropped++
			continue
		}
		if hasKey && keyIdx < len(record) {
			ride.Key = record[keyIdx]
		}
		rides = append(rides, ride)
	}
	return rides, dropped, nil
}

func parseRide(record []string, index map[string]int) (Ride, bool) {
	field := func(name string) (string, bool) {
		i := index[name]
		if i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}
	float := func(name string) (float64, bool) {
		s, ok := field(name)
		if !ok {
			return 0, false
		}
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil && !math.IsNaN(v)
	}

	var (
		ride Ride
		ok   bool
	)
	if ride.FareAmount, ok = float(ColumnFareAmount); !ok {
		return Ride{}, false
	}
	if ride.PickupLongitude, ok = float(ColumnPickupLongitude); !ok {
		return Ride{}, false
	}
	if ride.PickupLatitude, ok = float(ColumnPickupLatitude); !ok {
		return Ride{}, false
	}
	if ride.DropoffLongitude, ok = float(ColumnDropoffLongitude); !ok {
		return Ride{}, false
	}
	if ride.DropoffLatitude, ok = float(ColumnDropoffLatitude); !ok {
		return Ride{}, false
	}

	passengers, ok := float(ColumnPassengerCount)
	if !ok || passengers != float64(int(passengers)) {
		return Ride{}, false
	}
	ride.PassengerCount = int(passengers)

	ts, ok := field(ColumnPickupDatetime)
	if !ok {
		return Ride{}, false
	}
	t, err := dateparse.ParseIn(ts, time.UTC)
	if err != nil {
		return Ride{}, false
	}
	ride.PickupDatetime = t
	return ride, true
}
