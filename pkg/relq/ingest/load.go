package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq"
	"github.com/cognicore/relq/pkg/relq/lang"
	"github.com/cognicore/relq/pkg/relq/store/memstore"
	"github.com/cognicore/relq/pkg/relq/term"
)

// LoadFile loads facts from path, picking the reader by extension:
// .jsonl/.ndjson, .html/.htm, or .relq. A script is run against an empty
// in-memory store and the facts left after its asserts, retracts and
// resets are returned; its queries run but their output is dropped.
func LoadFile(ctx context.Context, path string, log *zap.Logger) ([]term.Fact, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return LoadJSONL(path, log)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", path, err)
		}
		defer f.Close()
		facts, err := HTMLTables(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return facts, nil
	case ".relq":
		return loadScript(ctx, path, log)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported file type", internalerr.ErrInvalidInput, path)
	}
}

func loadScript(ctx context.Context, path string, log *zap.Logger) ([]term.Fact, error) {
	script, err := lang.ParseFile(path)
	if err != nil {
		return nil, err
	}
	r := relq.New(relq.Options{Store: memstore.New(), Logger: log})
	defer r.Close()

	if _, err := lang.NewInterpreter(r, log).Exec(ctx, script); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r.Facts(ctx)
}

// LoadFiles loads every path concurrently, at most limit at a time (0 means
// no limit), and returns the facts in path order.
func LoadFiles(ctx context.Context, paths []string, limit int, log *zap.Logger) ([]term.Fact, error) {
	results := make([][]term.Fact, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			facts, err := LoadFile(ctx, path, log)
			if err != nil {
				return err
			}
			results[i] = facts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []term.Fact
	for _, facts := range results {
		out = append(out, facts...)
	}
	return out, nil
}
