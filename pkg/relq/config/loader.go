package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq"
	"github.com/cognicore/relq/pkg/relq/lang"
	"github.com/cognicore/relq/pkg/relq/query"
	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/store/memstore"
	"github.com/cognicore/relq/pkg/relq/store/sqlite"
)

// Loader loads the config file and scripts and constructs components
type Loader struct {
	// Config is used as-is when set and ConfigPath is not read.
	Config      *Config
	ConfigPath  string
	ScriptPaths []string

	// Logger is used as-is when set; otherwise one is built from the
	// log section.
	Logger  *zap.Logger
	Verbose bool

	// Registerer receives the query metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Components holds everything a command needs to run
type Components struct {
	Config  *Config
	Logger  *zap.Logger
	Store   store.Store
	Metrics *query.Metrics
	Relq    *relq.Relq
	Scripts []*lang.Script
}

// Close releases the store
func (c *Components) Close() error {
	if c.Relq != nil {
		return c.Relq.Close()
	}
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}

// Load reads all configuration and returns initialized components
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	comp := &Components{}

	// Load config
	switch {
	case l.Config != nil:
		comp.Config = l.Config
	case l.ConfigPath != "":
		cfg, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	default:
		comp.Config = Default()
	}

	// Logger
	if l.Logger != nil {
		comp.Logger = l.Logger
	} else {
		log, err := comp.Config.Log.NewLogger(l.Verbose)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		comp.Logger = log
	}

	// Parse scripts before opening the store so a typo costs nothing
	for _, path := range l.ScriptPaths {
		script, err := lang.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("load script: %w", err)
		}
		comp.Scripts = append(comp.Scripts, script)
	}

	st, err := OpenStore(ctx, comp.Config.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	comp.Store = st

	if l.Registerer != nil {
		comp.Metrics = query.NewMetrics(l.Registerer)
	}

	comp.Relq = relq.New(relq.Options{
		Store:   st,
		Query:   comp.Config.Engine(),
		Logger:  comp.Logger,
		Metrics: comp.Metrics,
	})
	comp.Logger.Debug("components loaded",
		zap.String("backend", comp.Config.Store.Backend),
		zap.Int("scripts", len(comp.Scripts)))
	return comp, nil
}

// OpenStore opens the backend named by sc
func OpenStore(ctx context.Context, sc StoreConfig) (store.Store, error) {
	switch strings.ToLower(sc.Backend) {
	case "", BackendMemory:
		return memstore.New(), nil
	case BackendSQLite:
		dsn := sc.DSN
		if dsn == "" {
			dsn = sqlite.MemoryDSN
		}
		return sqlite.OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown backend %q", sc.Backend)
	}
}
