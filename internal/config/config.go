// Package config resolves run options from a YAML file, SERPRANK_* environment
// variables and command-line flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// SERPRANK_MAX_RESULTS or SERPRANK_PROVIDER_API_KEY.
const EnvPrefix = "SERPRANK"

// Config is the fully resolved set of options for a run.
type Config struct {
	Queries     []string      `mapstructure:"queries"`
	QueriesFile string        `mapstructure:"queries_file"`
	Domain      string        `mapstructure:"domain"`
	Domains     []string      `mapstructure:"domains"`
	MaxResults  int           `mapstructure:"max_results"`
	Location    string        `mapstructure:"location"`
	Language    string        `mapstructure:"language"`
	PageDelay   time.Duration `mapstructure:"page_delay"`
	MetricsPort int           `mapstructure:"metrics_port"`

	Provider   ProviderConfig   `mapstructure:"provider"`
	Output     OutputConfig     `mapstructure:"output"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProviderConfig selects and tunes the search provider.
type ProviderConfig struct {
	Name           string        `mapstructure:"name"`
	Mode           string        `mapstructure:"mode"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	ProxiesFile    string        `mapstructure:"proxies_file"`
	UserAgents     []string      `mapstructure:"user_agents"`
}

// OutputConfig selects the storage backend. Path is used by the file
// backends and sqlite, DSN by postgres.
type OutputConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// CheckpointConfig enables resumable batches when Path is set. An empty Key
// is derived from the queries and domains.
type CheckpointConfig struct {
	Path string `mapstructure:"path"`
	Key  string `mapstructure:"key"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxResults: 100,
		Language:   "en",
		PageDelay:  time.Second,
		Provider: ProviderConfig{
			Name:           "serper",
			Mode:           string(serp.ModeSearch),
			Timeout:        30 * time.Second,
			RetryBaseDelay: time.Second,
		},
		Output: OutputConfig{
			Backend: "json",
			Path:    "serprank.jsonl",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// New returns a viper instance with defaults registered and environment
// lookup enabled. SERPER_API_KEY is accepted as well as
// SERPRANK_PROVIDER_API_KEY.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("queries", []string{})
	v.SetDefault("queries_file", "")
	v.SetDefault("domain", "")
	v.SetDefault("domains", []string{})
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("location", "")
	v.SetDefault("language", d.Language)
	v.SetDefault("page_delay", d.PageDelay)
	v.SetDefault("metrics_port", 0)

	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.mode", d.Provider.Mode)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.retry_base_delay", d.Provider.RetryBaseDelay)
	v.SetDefault("provider.fingerprint", "")
	v.SetDefault("provider.proxies_file", "")
	v.SetDefault("provider.user_agents", []string{})
	_ = v.BindEnv("provider.api_key", EnvPrefix+"_PROVIDER_API_KEY", "SERPER_API_KEY")

	v.SetDefault("output.backend", d.Output.Backend)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.dsn", "")

	v.SetDefault("checkpoint.path", "")
	v.SetDefault("checkpoint.key", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	return v
}

// Load reads the config file at path, if any, and decodes every layer of v
// into a Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// LoadQueries appends the queries listed in QueriesFile, one per line.
// Blank lines and lines starting with # are skipped.
func (c *Config) LoadQueries() error {
	if c.QueriesFile == "" {
		return nil
	}

	f, err := os.Open(c.QueriesFile)
	if err != nil {
		return fmt.Errorf("config: queries file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.Queries = append(c.Queries, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: queries file: %w", err)
	}
	return nil
}

// Targets returns domain followed by domains, without blanks.
func (c *Config) Targets() []string {
	var out []string
	for _, d := range append([]string{c.Domain}, c.Domains...) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks everything a run needs before any provider call is made.
func (c *Config) Validate() error {
	if len(c.Queries) == 0 {
		return &serp.ConfigError{Field: "queries", Msg: "at least one query is required"}
	}
	if c.MaxResults < 0 {
		return &serp.ConfigError{Field: "max_results", Msg: "must be 0 (unlimited) or positive"}
	}
	if c.PageDelay < 0 {
		return &serp.ConfigError{Field: "page_delay", Msg: "must not be negative"}
	}

	switch c.Provider.Mode {
	case "", string(serp.ModeSearch), string(serp.ModeMaps):
	default:
		return &serp.ConfigError{Field: "provider.mode", Msg: fmt.Sprintf("unknown mode %q", c.Provider.Mode)}
	}
	if (c.Provider.Name == "" || c.Provider.Name == "serper") && c.Provider.APIKey == "" {
		return &serp.ConfigError{Field: "provider.api_key", Msg: "required for serper (set SERPER_API_KEY)"}
	}
	if c.Provider.Timeout < 0 {
		return &serp.ConfigError{Field: "provider.timeout", Msg: "must not be negative"}
	}

	if err := c.ValidateOutput(); err != nil {
		return err
	}
	return c.ValidateLog()
}

// ValidateOutput checks the storage settings alone, for commands that only
// read records.
func (c *Config) ValidateOutput() error {
	switch c.Output.Backend {
	case "json", "csv", "sqlite":
		if c.Output.Path == "" {
			return &serp.ConfigError{Field: "output.path", Msg: "required for " + c.Output.Backend}
		}
	case "postgres":
		if c.Output.DSN == "" {
			return &serp.ConfigError{Field: "output.dsn", Msg: "required for postgres"}
		}
	default:
		return &serp.ConfigError{Field: "output.backend", Msg: fmt.Sprintf("unknown backend %q", c.Output.Backend)}
	}
	return nil
}

// ValidateLog checks the log level and format.
func (c *Config) ValidateLog() error {
	var errs []error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, &serp.ConfigError{Field: "log.level", Msg: fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, &serp.ConfigError{Field: "log.format", Msg: fmt.Sprintf("unknown format %q", c.Log.Format)})
	}
	return errors.Join(errs...)
}
