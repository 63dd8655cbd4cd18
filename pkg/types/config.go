package types

import "time"

// DefaultBaseURL is the public Search Service endpoint.
const DefaultBaseURL = "https://api.cheese.deepmedchem.com"

// HTTPConfig holds shared HTTP settings used by every Search Service call.
type HTTPConfig struct {
	// BaseURL is the Search Service root (e.g. "https://api.cheese.deepmedchem.com").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries of 429/5xx responses and transport errors (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerSecond throttles outbound requests. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ClientConfig holds settings for the job client.
type ClientConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PollInterval is the base delay between status checks (default 1s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxPollInterval caps the gently growing poll delay (default 10s).
	MaxPollInterval time.Duration `json:"max_poll_interval" yaml:"max_poll_interval" mapstructure:"max_poll_interval"`

	// MaxWait is the ceiling on how long one job may stay non-terminal (default 10m).
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait" mapstructure:"max_wait"`

	// PageSize is the number of rows requested per result page (default 1000).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// MaxPages bounds result pages per job (default 100, i.e. the 100K row cap).
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`
}

// Client defaults.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultUserAgent       = "molsearch/0.1"
	DefaultPollInterval    = 1 * time.Second
	DefaultMaxPollInterval = 10 * time.Second
	DefaultMaxWait         = 10 * time.Minute
	DefaultPageSize        = 1000
	DefaultMaxPages        = 100
)

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollInterval <= 0 {
		c.MaxPollInterval = DefaultMaxPollInterval
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = c.PollInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	return c
}

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is console (tint) or json (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout, stderr, or a file path (default stderr).
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// OutputFormat selects the result file encoding.
type OutputFormat string

const (
	OutputJSON OutputFormat = "json"
	OutputCSV  OutputFormat = "csv"
)

// Config groups everything molsearch reads from the config file.
type Config struct {
	Client ClientConfig `json:"client" yaml:"client" mapstructure:"client"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`

	// LedgerPath is the sqlite run ledger (default .molsearch/ledger.db).
	LedgerPath string `json:"ledger_path" yaml:"ledger_path" mapstructure:"ledger_path"`

	// PropertiesFile replaces the built-in property catalog when set.
	PropertiesFile string `json:"properties_file,omitempty" yaml:"properties_file,omitempty" mapstructure:"properties_file"`

	// MetricsFile receives Prometheus text metrics after each run when set.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}
