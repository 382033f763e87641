package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/lang"
)

var exportPath string

var runCmd = &cobra.Command{
	Use:   "run <script>...",
	Short: "Execute relq scripts and print query results",
	Long: `Runs each script in order against one store. Later scripts see the facts
earlier ones asserted. With --export the final fact set is written back as a
script.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScripts,
}

func init() {
	runCmd.Flags().StringVarP(&exportPath, "export", "o", "", "Write the final facts to this file")
}

func runScripts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comp, err := loadComponents(ctx, args, nil)
	if err != nil {
		return err
	}
	defer comp.Close()

	in := lang.NewInterpreter(comp.Relq, logger)
	out := cmd.OutOrStdout()
	for i, script := range comp.Scripts {
		outs, err := in.Exec(ctx, script)
		for _, o := range outs {
			if werr := lang.WriteResult(out, o.Query, o.Result); werr != nil {
				return werr
			}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
		logger.Debug("script done", zap.String("path", args[i]), zap.Int("queries", len(outs)))
	}

	if exportPath != "" {
		facts, err := comp.Relq.Facts(ctx)
		if err != nil {
			return err
		}
		exp := lang.Exporter{Writer: lang.FileWriter{Path: exportPath}}
		if err := exp.Export(ctx, facts); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		logger.Info("facts exported", zap.String("path", exportPath), zap.Int("count", len(facts)))
	}
	return nil
}
