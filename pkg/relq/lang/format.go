package lang

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cognicore/relq/pkg/relq/query"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Format renders facts as assert directives, one per line. Parse reads the
// output back to the same facts.
func Format(facts []term.Fact) string {
	var b strings.Builder
	for _, f := range facts {
		b.WriteString("! ")
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// FactWriter persists a rendered fact dump (file, buffer, etc.).
type FactWriter interface {
	WriteFacts(ctx context.Context, content string) error
}

// Exporter renders facts as a script and hands it to Writer.
type Exporter struct {
	Writer FactWriter
}

func (e *Exporter) Export(ctx context.Context, facts []term.Fact) error {
	if e.Writer == nil {
		return fmt.Errorf("fact exporter: nil writer")
	}
	return e.Writer.WriteFacts(ctx, Format(facts))
}

// FileWriter writes dumps to Path, replacing its contents.
type FileWriter struct {
	Path string
}

func (w FileWriter) WriteFacts(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(w.Path, []byte(content), 0o644)
}

// WriteResult prints a query and its rows in the form the CLI shows them.
func WriteResult(w io.Writer, q query.Query, res *query.Result) error {
	if _, err := fmt.Fprintf(w, "query %s\n", q); err != nil {
		return err
	}
	for row := range res.All() {
		if _, err := fmt.Fprintf(w, "  %s\n", row); err != nil {
			return err
		}
	}
	suffix := ""
	if res.Truncated {
		suffix = ", truncated"
	}
	_, err := fmt.Fprintf(w, "  (%d %s%s)\n", res.Len(), plural(res.Len(), "row", "rows"), suffix)
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
