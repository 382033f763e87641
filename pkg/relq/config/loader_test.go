package config

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/term"
)

func TestLoaderAllEmpty(t *testing.T) {
	loader := Loader{Logger: zap.NewNop()}

	comp, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Empty loader should succeed: %v", err)
	}
	defer comp.Close()

	if comp.Config == nil || comp.Config.Store.Backend != BackendMemory {
		t.Error("Should fall back to the default config")
	}
	if comp.Store == nil || comp.Relq == nil {
		t.Fatal("Should have store and relq")
	}
	if comp.Metrics != nil {
		t.Error("Metrics should be nil without a registerer")
	}
	if len(comp.Scripts) != 0 {
		t.Errorf("Scripts should be empty, got %d", len(comp.Scripts))
	}
}

func TestLoaderNonExistentConfig(t *testing.T) {
	loader := Loader{ConfigPath: "/nonexistent/relq.yaml", Logger: zap.NewNop()}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Error("Should error on nonexistent config")
	}
}

func TestLoaderPrefersLoadedConfig(t *testing.T) {
	cfg := Default()
	cfg.Query.MaxResults = 7
	loader := Loader{Config: cfg, ConfigPath: "/nonexistent/relq.yaml", Logger: zap.NewNop()}

	comp, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load should not read ConfigPath when Config is set: %v", err)
	}
	defer comp.Close()

	if comp.Config != cfg {
		t.Error("Should use the given config")
	}
}

func TestLoaderBadScript(t *testing.T) {
	path := writeFile(t, "bad.relq", "! (route Nairobi\n")
	loader := Loader{ScriptPaths: []string{path}, Logger: zap.NewNop()}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Error("Should error on unparsable script")
	}
}

func TestLoaderSQLiteWithScripts(t *testing.T) {
	cfgPath := writeFile(t, "relq.yaml", "store:\n  backend: sqlite\n")
	script := writeFile(t, "facts.relq", "! (route Nairobi Mombasa flight)\nquery (route Nairobi $d flight)\n")

	loader := Loader{
		ConfigPath:  cfgPath,
		ScriptPaths: []string{script},
		Logger:      zap.NewNop(),
		Registerer:  prometheus.NewRegistry(),
	}
	comp, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer comp.Close()

	if len(comp.Scripts) != 1 || len(comp.Scripts[0].Statements) != 2 {
		t.Fatalf("scripts not parsed: %+v", comp.Scripts)
	}
	if comp.Metrics == nil {
		t.Error("Metrics should be registered")
	}

	ctx := context.Background()
	if err := comp.Relq.Assert(ctx, term.F("route", "Nairobi", "Kisumu", "bus")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	n, err := comp.Store.Len(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Len = %d, %v; want 1", n, err)
	}
}
