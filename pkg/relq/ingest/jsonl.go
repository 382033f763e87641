// Package ingest turns external files into facts: JSON lines, HTML tables
// and relq scripts.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

// record is the object form of a JSONL line
type record struct {
	Predicate string   `json:"predicate"`
	Args      []string `json:"args"`
}

// LoadJSONL loads facts from a JSONL file. Each line is either an array of
// strings, predicate first, or an object {"predicate": ..., "args": [...]}.
// Malformed lines are skipped with a warning.
func LoadJSONL(path string, log *zap.Logger) ([]term.Fact, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	facts, err := ReadJSONL(f, log.With(zap.String("path", path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}

// ReadJSONL is LoadJSONL over a reader
func ReadJSONL(r io.Reader, log *zap.Logger) ([]term.Fact, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var facts []term.Fact
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		f, err := decodeLine(text)
		if err != nil {
			log.Warn("skipping malformed line", zap.Int("line", line), zap.Error(err))
			continue
		}
		facts = append(facts, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: no valid facts found", internalerr.ErrInvalidInput)
	}
	return facts, nil
}

func decodeLine(text string) (term.Fact, error) {
	var names []string
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &names); err != nil {
			return term.Fact{}, err
		}
	} else {
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return term.Fact{}, err
		}
		names = append([]string{rec.Predicate}, rec.Args...)
	}
	return factOf(names)
}

func factOf(names []string) (term.Fact, error) {
	if len(names) == 0 {
		return term.Fact{}, fmt.Errorf("%w: empty tuple", internalerr.ErrInvalidFact)
	}
	syms := make([]term.Symbol, len(names))
	for i, n := range names {
		if n == "" {
			return term.Fact{}, fmt.Errorf("%w: empty symbol at position %d", internalerr.ErrInvalidFact, i)
		}
		syms[i] = term.Intern(n)
	}
	return term.NewFact(syms[0], syms[1:]...)
}
