// Package config resolves the settings shared by the collector and the
// publisher: built-in defaults, then the environment, then an optional HCL
// file.
//
// Example file:
//
//	fred {
//	  timeout_seconds = 20
//	}
//	logging {
//	  level  = "debug"
//	  format = "json"
//	}
//	ledger {
//	  driver = "sqlite"
//	  dsn    = "econdash.db"
//	}
//	output {
//	  sink   = "s3"
//	  bucket = "econdash-exports"
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"econdash/internal/dataset"
	"econdash/internal/logging"
	"econdash/internal/providers"
	"econdash/internal/providers/fred"
)

var ErrInvalid = errors.New("config: invalid configuration")

const (
	LedgerNone     = ""
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"

	SinkFS = "fs"
	SinkS3 = "s3"
)

type Config struct {
	Fred     fred.Config
	Logging  logging.Config
	Ledger   LedgerConfig
	Output   OutputConfig
	Assembly AssemblyConfig
}

type LedgerConfig struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

type OutputConfig struct {
	Dir       string `hcl:"dir,optional"`
	Sink      string `hcl:"sink,optional"`
	Bucket    string `hcl:"bucket,optional"`
	Prefix    string `hcl:"prefix,optional"`
	Region    string `hcl:"region,optional"`
	Endpoint  string `hcl:"endpoint,optional"`
	PathStyle bool   `hcl:"path_style,optional"`
	Format    string `hcl:"format,optional"`
	Gzip      bool   `hcl:"gzip,optional"`
}

type AssemblyConfig struct {
	HistoryYears int `hcl:"history_years,optional"`
	Concurrency  int `hcl:"concurrency,optional"`
}

type fileConfig struct {
	Fred     *fredBlock      `hcl:"fred,block"`
	Logging  *logging.Config `hcl:"logging,block"`
	Ledger   *LedgerConfig   `hcl:"ledger,block"`
	Output   *OutputConfig   `hcl:"output,block"`
	Assembly *AssemblyConfig `hcl:"assembly,block"`
}

type fredBlock struct {
	BaseURL         string `hcl:"base_url,optional"`
	APIKey          string `hcl:"api_key,optional"`
	TimeoutSeconds  int    `hcl:"timeout_seconds,optional"`
	RateLimitPerSec int    `hcl:"rate_limit_per_sec,optional"`
	RateLimitBurst  int    `hcl:"rate_limit_burst,optional"`
	PageLimit       int    `hcl:"page_limit,optional"`
	UserAgent       string `hcl:"user_agent,optional"`
}

func Default() Config {
	return Config{
		Logging: logging.DefaultConfig(),
		Ledger: LedgerConfig{
			Driver: LedgerSQLite,
			DSN:    "econdash.db",
		},
		Output: OutputConfig{
			Dir:    "site/data",
			Sink:   SinkFS,
			Region: "us-east-1",
			Format: "png",
		},
		Assembly: AssemblyConfig{
			HistoryYears: dataset.DefaultHistoryYears,
			Concurrency:  dataset.DefaultConcurrency,
		},
	}
}

// Load returns defaults overlaid with the environment and, when path is not
// empty, the HCL file at path. An API key from the environment takes
// precedence over one in the file.
func Load(path string) (Config, error) {
	cfg := Default()

	fredCfg, err := fred.ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.Fred = fredCfg
	applyEnv(&cfg)

	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var file fileConfig
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	file.apply(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("ECONDASH_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("ECONDASH_LOG_FORMAT")); value != "" {
		cfg.Logging.Format = value
	}
	if value, ok := os.LookupEnv("ECONDASH_LEDGER_DRIVER"); ok {
		cfg.Ledger.Driver = strings.TrimSpace(value)
	}
	if value := strings.TrimSpace(os.Getenv("ECONDASH_LEDGER_DSN")); value != "" {
		cfg.Ledger.DSN = value
	}
	if value := strings.TrimSpace(os.Getenv("ECONDASH_S3_BUCKET")); value != "" {
		cfg.Output.Bucket = value
	}
	if value := strings.TrimSpace(os.Getenv("ECONDASH_S3_ENDPOINT")); value != "" {
		cfg.Output.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("ECONDASH_CONCURRENCY")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Assembly.Concurrency = parsed
		}
	}
}

func (f fileConfig) apply(cfg *Config) {
	if f.Fred != nil {
		if f.Fred.BaseURL != "" {
			cfg.Fred.BaseURL = f.Fred.BaseURL
		}
		if f.Fred.APIKey != "" && cfg.Fred.APIKey == "" {
			cfg.Fred.APIKey = f.Fred.APIKey
		}
		if f.Fred.TimeoutSeconds > 0 {
			cfg.Fred.Timeout = time.Duration(f.Fred.TimeoutSeconds) * time.Second
		}
		if f.Fred.RateLimitPerSec > 0 {
			cfg.Fred.RateLimitPerSec = f.Fred.RateLimitPerSec
		}
		if f.Fred.RateLimitBurst > 0 {
			cfg.Fred.RateLimitBurst = f.Fred.RateLimitBurst
		}
		if f.Fred.PageLimit > 0 {
			cfg.Fred.PageLimit = f.Fred.PageLimit
		}
		if f.Fred.UserAgent != "" {
			cfg.Fred.UserAgent = f.Fred.UserAgent
		}
	}
	if f.Logging != nil {
		if f.Logging.Level != "" {
			cfg.Logging.Level = f.Logging.Level
		}
		if f.Logging.Format != "" {
			cfg.Logging.Format = f.Logging.Format
		}
		if f.Logging.Output != "" {
			cfg.Logging.Output = f.Logging.Output
		}
		cfg.Logging.Development = cfg.Logging.Development || f.Logging.Development
	}
	if f.Ledger != nil {
		overlayString(&cfg.Ledger.Driver, f.Ledger.Driver)
		overlayString(&cfg.Ledger.DSN, f.Ledger.DSN)
	}
	if f.Output != nil {
		overlayString(&cfg.Output.Dir, f.Output.Dir)
		overlayString(&cfg.Output.Sink, f.Output.Sink)
		overlayString(&cfg.Output.Bucket, f.Output.Bucket)
		overlayString(&cfg.Output.Prefix, f.Output.Prefix)
		overlayString(&cfg.Output.Region, f.Output.Region)
		overlayString(&cfg.Output.Endpoint, f.Output.Endpoint)
		overlayString(&cfg.Output.Format, f.Output.Format)
		cfg.Output.PathStyle = cfg.Output.PathStyle || f.Output.PathStyle
		cfg.Output.Gzip = cfg.Output.Gzip || f.Output.Gzip
	}
	if f.Assembly != nil {
		if f.Assembly.HistoryYears > 0 {
			cfg.Assembly.HistoryYears = f.Assembly.HistoryYears
		}
		if f.Assembly.Concurrency > 0 {
			cfg.Assembly.Concurrency = f.Assembly.Concurrency
		}
	}
}

func overlayString(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

// Validate checks the credential first so a missing key is reported before
// anything else.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Fred.APIKey) == "" {
		return fmt.Errorf("%w: FRED API key not found, set FRED_API_KEY", providers.ErrMissingCredential)
	}
	switch c.Ledger.Driver {
	case LedgerNone, LedgerSQLite, LedgerPostgres:
	default:
		return fmt.Errorf("%w: unknown ledger driver %q", ErrInvalid, c.Ledger.Driver)
	}
	switch c.Output.Sink {
	case SinkFS:
	case SinkS3:
		if strings.TrimSpace(c.Output.Bucket) == "" {
			return fmt.Errorf("%w: s3 sink requires a bucket", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown output sink %q", ErrInvalid, c.Output.Sink)
	}
	switch c.Output.Format {
	case "png", "svg":
	default:
		return fmt.Errorf("%w: unknown chart format %q", ErrInvalid, c.Output.Format)
	}
	if c.Assembly.Concurrency < 0 || c.Assembly.HistoryYears < 0 {
		return fmt.Errorf("%w: assembly settings must not be negative", ErrInvalid)
	}
	return nil
}
