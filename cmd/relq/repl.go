package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/lang"
)

var metricsAddr string

var replCmd = &cobra.Command{
	Use:   "repl [script]...",
	Short: "Interactive shell",
	Long: `Reads directives line by line. Scripts given as arguments run first.

Shell commands:
  \h               help
  \facts           print every stored fact
  \export <file>   write every stored fact to a script file
  \q               quit`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
}

const replHelp = `directives:
  ! (route Nairobi Mombasa flight)
  retract (route Nairobi Mombasa flight)
  query (route Nairobi $dest flight) (not (previous_travel Nairobi $dest)) -> $dest
  reset
commands: \h \facts \export <file> \q
`

// lineReader is the part of *readline.Instance the shell uses
type lineReader interface {
	Readline() (string, error)
	Close() error
}

type scannerReader struct {
	sc *bufio.Scanner
}

func (s scannerReader) Readline() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s scannerReader) Close() error { return nil }

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
	}
	comp, err := loadComponents(ctx, args, registererOf(reg))
	if err != nil {
		return err
	}
	defer comp.Close()

	if reg != nil {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	in := lang.NewInterpreter(comp.Relq, logger)
	out := cmd.OutOrStdout()
	for _, script := range comp.Scripts {
		outs, err := in.Exec(ctx, script)
		writeOutputs(out, outs)
		if err != nil {
			return err
		}
	}

	lines, err := newLineReader(out)
	if err != nil {
		return err
	}
	defer lines.Close()
	return repl(ctx, in, lines, out)
}

// registererOf avoids handing a typed nil to the loader
func registererOf(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func newLineReader(out io.Writer) (lineReader, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return scannerReader{sc: bufio.NewScanner(os.Stdin)}, nil
	}

	fmt.Fprintln(out, "relq shell")
	fmt.Fprintln(out, `\h for help`)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "relq> ",
		HistoryFile:       filepath.Join(os.TempDir(), ".relq-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye!",
		HistorySearchFold: true,
		Stdout:            out,
	})
	if err != nil {
		return nil, err
	}
	return rl, nil
}

func repl(ctx context.Context, in *lang.Interpreter, lines lineReader, out io.Writer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := lines.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == `\q`:
			return nil
		case line == `\h`:
			fmt.Fprint(out, replHelp)
		case line == `\facts`:
			facts, err := in.Relq.Facts(ctx)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprint(out, lang.Format(facts))
		case strings.HasPrefix(line, `\export`):
			path := strings.TrimSpace(strings.TrimPrefix(line, `\export`))
			if path == "" {
				fmt.Fprintln(out, `usage: \export <file>`)
				continue
			}
			if err := exportFacts(ctx, in, path); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "exported to", path)
		case strings.HasPrefix(line, `\`):
			fmt.Fprintf(out, "unknown command %s; \\h for help\n", line)
		default:
			outs, err := in.ExecString(ctx, line)
			writeOutputs(out, outs)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

func exportFacts(ctx context.Context, in *lang.Interpreter, path string) error {
	facts, err := in.Relq.Facts(ctx)
	if err != nil {
		return err
	}
	exp := lang.Exporter{Writer: lang.FileWriter{Path: path}}
	return exp.Export(ctx, facts)
}

func writeOutputs(w io.Writer, outs []lang.Output) {
	for _, o := range outs {
		if err := lang.WriteResult(w, o.Query, o.Result); err != nil {
			logger.Warn("write result", zap.Error(err))
			return
		}
	}
}
