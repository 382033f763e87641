// Command relq loads facts and runs relq scripts and queries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Config read once by the root command and shared with subcommands
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "relq",
	Short: "In-memory relational fact store with pattern queries",
	Long: `relq stores ground facts such as (route Nairobi Mombasa flight) and answers
conjunctive pattern queries with negation-as-failure:

  query (route Nairobi $dest flight) (not (previous_travel Nairobi $dest)) -> $dest

Facts come from scripts, JSON lines or HTML tables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		var err error
		logger, err = cfg.Log.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to relq.yaml")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(importCmd)
}

// loadComponents builds the store and engine from --config
func loadComponents(ctx context.Context, scripts []string, reg prometheus.Registerer) (*config.Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := config.Loader{
		Config:      cfg,
		ConfigPath:  configPath,
		ScriptPaths: scripts,
		Logger:      logger,
		Registerer:  reg,
	}
	comp, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return comp, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
