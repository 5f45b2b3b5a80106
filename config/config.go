// Package config loads training settings from defaults, an optional config
// file, TAXIFARE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/taxifare/dataset"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
	"github.com/YuminosukeSato/taxifare/preprocessing"
)

// EnvPrefix is prepended to every environment variable, e.g. TAXIFARE_TRACKING_URI.
const EnvPrefix = "TAXIFARE"

// Default values.
const (
	DefaultTrackingURI    = "https://mlflow.lewagon.ai/"
	DefaultExperimentName = "[DE] [Berlin] [kelvinpurdom] TaxiFareModel version 2"
	DefaultDataSource     = "s3://wagon-public-datasets/taxi-fare-train.csv"
	DefaultNRows          = 10000
	DefaultTimeZone       = preprocessing.DefaultTimeZone
	DefaultLogLevel       = "info"
	DefaultTimeout        = 5 * time.Minute
)

// Config is the full set of training settings.
type Config struct {
	Tracking TrackingConfig `mapstructure:"tracking"`
	Data     DataConfig     `mapstructure:"data"`
	Split    SplitConfig    `mapstructure:"split"`
	Features FeaturesConfig `mapstructure:"features"`
	Log      LogConfig      `mapstructure:"log"`
	Timeout  time.Duration  `mapstructure:"timeout"`
}

// TrackingConfig locates the experiment tracking server.
type TrackingConfig struct {
	URI            string `mapstructure:"uri"`
	ExperimentName string `mapstructure:"experiment_name"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Token          string `mapstructure:"token"`
}

// DataConfig locates the training CSV.
type DataConfig struct {
	Source     string `mapstructure:"source"`
	NRows      int    `mapstructure:"nrows"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`
	S3Insecure bool   `mapstructure:"s3_insecure"`
}

// SplitConfig controls the train/test split. A negative Seed means a fresh
// random split on every run.
type SplitConfig struct {
	TestSize float64 `mapstructure:"test_size"`
	Seed     int64   `mapstructure:"seed"`
}

// FeaturesConfig controls feature extraction.
type FeaturesConfig struct {
	TimeZone string `mapstructure:"timezone"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SplitSeed returns the seed, or nil when unset.
func (c *Config) SplitSeed() *uint64 {
	if c.Split.Seed < 0 {
		return nil
	}
	seed := uint64(c.Split.Seed)
	return &seed
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Tracking.URI == "" {
		return errors.NewValidationError("tracking.uri", "must not be empty", c.Tracking.URI)
	}
	if !strings.HasPrefix(c.Tracking.URI, "http://") && !strings.HasPrefix(c.Tracking.URI, "https://") {
		return errors.NewValidationError("tracking.uri", "must be an http(s) URL", c.Tracking.URI)
	}
	if strings.TrimSpace(c.Tracking.ExperimentName) == "" {
		return errors.NewValidationError("tracking.experiment_name", "must not be empty", c.Tracking.ExperimentName)
	}
	if c.Data.Source == "" {
		return errors.NewValidationError("data.source", "must not be empty", c.Data.Source)
	}
	if c.Data.NRows < 0 {
		return errors.NewValidationError("data.nrows", "must be >= 0 (0 reads all rows)", c.Data.NRows)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if _, err := time.LoadLocation(c.Features.TimeZone); err != nil {
		return errors.NewValidationError("features.timezone", "unknown time zone", c.Features.TimeZone)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.NewValidationError("timeout", "must be positive", c.Timeout)
	}
	return nil
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("tracking.uri", DefaultTrackingURI)
	v.SetDefault("tracking.experiment_name", DefaultExperimentName)
	v.SetDefault("tracking.username", "")
	v.SetDefault("tracking.password", "")
	v.SetDefault("tracking.token", "")
	v.SetDefault("data.source", DefaultDataSource)
	v.SetDefault("data.nrows", DefaultNRows)
	v.SetDefault("data.s3_endpoint", dataset.DefaultS3Endpoint)
	v.SetDefault("data.s3_region", "")
	v.SetDefault("data.s3_insecure", false)
	v.SetDefault("split.test_size", dataset.DefaultTestSize)
	v.SetDefault("split.seed", -1)
	v.SetDefault("features.timezone", DefaultTimeZone)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("timeout", DefaultTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds each named flag to a config key, so an explicitly set flag
// overrides file and environment values.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return errors.Newf("config: unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind flag %q", flag)
		}
	}
	return nil
}

// Load reads path (if not empty) into v, unmarshals and validates.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
