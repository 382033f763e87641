package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

func names(facts []term.Fact) [][]string {
	out := make([][]string, len(facts))
	for i, f := range facts {
		out[i] = f.Names()
	}
	return out
}

func TestLoadJSONLSkipsMalformed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	facts, err := LoadJSONL("testdata/routes.jsonl", zap.New(core))
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}

	want := [][]string{
		{"route", "Nairobi", "Mombasa", "flight"},
		{"route", "Nairobi", "Kisumu", "bus"},
		{"previous_travel", "Nairobi", "Dubai"},
		{"preferred_mode", "user1", "flight"},
	}
	if diff := cmp.Diff(want, names(facts)); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
	if got := logs.FilterMessage("skipping malformed line").Len(); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
}

func TestReadJSONLEmpty(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("\n\n"), nil)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestLoadJSONLMissing(t *testing.T) {
	if _, err := LoadJSONL("/nonexistent/facts.jsonl", zap.NewNop()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHTMLTables(t *testing.T) {
	f, err := os.Open("testdata/routes.html")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	facts, err := HTMLTables(f)
	if err != nil {
		t.Fatalf("HTMLTables: %v", err)
	}
	want := [][]string{
		{"route", "Nairobi", "Mombasa", "flight"},
		{"route", "Nairobi", "Kisumu", "bus"},
		{"previous_travel", "Nairobi", "Dubai"},
	}
	if diff := cmp.Diff(want, names(facts)); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestHTMLTablesEmptyCell(t *testing.T) {
	doc := `<table data-relation="route"><tr><td>Nairobi</td><td> </td></tr></table>`
	_, err := HTMLTables(strings.NewReader(doc))
	if !errors.Is(err, internalerr.ErrInvalidFact) {
		t.Fatalf("err = %v, want ErrInvalidFact", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "facts.relq")
	if err := os.WriteFile(script, []byte("! (route Nairobi Kigali flight)\nquery (route $a $b $c)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	facts, err := LoadFile(context.Background(), script, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(facts) != 1 || !facts[0].Equal(term.F("route", "Nairobi", "Kigali", "flight")) {
		t.Errorf("facts = %v", facts)
	}

	_, err = LoadFile(context.Background(), filepath.Join(dir, "facts.csv"), nil)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestLoadFileScriptAppliesRetractAndReset(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "facts.relq")
	src := `! (route Nairobi Mombasa flight)
reset
! (route Nairobi Kigali flight)
! (route Nairobi Kisumu bus)
! (route Kigali Goma bus)
retract (route Nairobi Kisumu bus)
retract (route Kigali $to $mode)
`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	facts, err := LoadFile(context.Background(), script, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := [][]string{{"route", "Nairobi", "Kigali", "flight"}}
	if diff := cmp.Diff(want, names(facts)); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONLNilLogger(t *testing.T) {
	facts, err := LoadJSONL("testdata/routes.jsonl", nil)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(facts) != 4 {
		t.Errorf("len = %d, want 4", len(facts))
	}

	facts, err = LoadFiles(context.Background(), []string{"testdata/routes.jsonl"}, 1, nil)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(facts) != 4 {
		t.Errorf("len = %d, want 4", len(facts))
	}
}

func TestLoadFilesKeepsPathOrder(t *testing.T) {
	paths := []string{"testdata/routes.html", "testdata/routes.jsonl"}
	facts, err := LoadFiles(context.Background(), paths, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(facts) != 7 {
		t.Fatalf("len = %d, want 7", len(facts))
	}
	if !facts[0].Equal(term.F("route", "Nairobi", "Mombasa", "flight")) || !facts[6].Equal(term.F("preferred_mode", "user1", "flight")) {
		t.Errorf("unexpected order: %v", facts)
	}

	_, err = LoadFiles(context.Background(), []string{"testdata/routes.html", "/nonexistent/x.jsonl"}, 0, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
