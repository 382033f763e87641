package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/query"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the relq configuration file
type Config struct {
	Store StoreConfig `yaml:"store"`
	Query QueryConfig `yaml:"query"`
	Log   LogConfig   `yaml:"log"`
}

// StoreConfig selects the fact store backend
type StoreConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// QueryConfig bounds query evaluation
type QueryConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxResults  int           `yaml:"max_results"`
	Parallelism int           `yaml:"parallelism"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendMemory},
		Query: QueryConfig{Timeout: 30 * time.Second, Parallelism: 4},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a YAML config file. Keys missing from the file keep their
// Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and names
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case BackendMemory:
		if c.Store.DSN != "" {
			return fmt.Errorf("%w: store.dsn is only used by the sqlite backend", internalerr.ErrInvalidConfig)
		}
	case BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown store.backend %q", internalerr.ErrInvalidConfig, c.Store.Backend)
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Query.MaxResults < 0 {
		return fmt.Errorf("%w: query.max_results must not be negative", internalerr.ErrInvalidConfig)
	}
	if c.Query.Parallelism < 0 {
		return fmt.Errorf("%w: query.parallelism must not be negative", internalerr.ErrInvalidConfig)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", internalerr.ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", internalerr.ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// Engine converts the query section to engine limits
func (c *Config) Engine() query.Config {
	return query.Config{
		Timeout:     c.Query.Timeout,
		MaxResults:  c.Query.MaxResults,
		Parallelism: c.Query.Parallelism,
	}
}

// NewLogger builds a logger for the log section. verbose forces debug level.
func (l LogConfig) NewLogger(verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", internalerr.ErrInvalidConfig, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewDevelopmentConfig()
	if l.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
