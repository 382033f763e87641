package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/ingest"
	"github.com/cognicore/relq/pkg/relq/lang"
	"github.com/cognicore/relq/pkg/relq/query"
)

var (
	importQuery string
	importJobs  int
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Load facts from JSONL, HTML or script files and optionally query them",
	Long: `Loads facts from each file (.jsonl, .ndjson, .html, .htm, .relq) into one
store. With --query the query runs over the imported facts.

Example:
  relq import routes.jsonl travel.html --query '(route Nairobi $d flight) -> $d'`,
	Args: cobra.MinimumNArgs(1),
	RunE: importFiles,
}

func init() {
	importCmd.Flags().StringVarP(&importQuery, "query", "q", "", "Query to run after loading")
	importCmd.Flags().IntVarP(&importJobs, "jobs", "j", 4, "Files to read concurrently")
}

func importFiles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comp, err := loadComponents(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer comp.Close()

	// Parse first so a bad query fails before any file is read
	var q query.Query
	if importQuery != "" {
		if q, err = lang.ParseQuery(importQuery); err != nil {
			return err
		}
	}

	facts, err := ingest.LoadFiles(ctx, args, importJobs, logger)
	if err != nil {
		return err
	}
	if err := comp.Relq.Assert(ctx, facts...); err != nil {
		return err
	}
	n, err := comp.Store.Len(ctx)
	if err != nil {
		return err
	}
	logger.Info("facts imported", zap.Int("read", len(facts)), zap.Int("stored", n))

	out := cmd.OutOrStdout()
	if importQuery == "" {
		_, err := fmt.Fprintf(out, "%d facts loaded\n", n)
		return err
	}
	res, err := comp.Relq.Query(ctx, q)
	if err != nil {
		return err
	}
	return lang.WriteResult(out, q, res)
}
