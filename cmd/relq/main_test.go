package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq"
	"github.com/cognicore/relq/pkg/relq/config"
	"github.com/cognicore/relq/pkg/relq/lang"
	"github.com/cognicore/relq/pkg/relq/store/memstore"
)

const travelScript = `
! (route Nairobi Mombasa flight)
! (route Nairobi Kisumu bus)
! (route Nairobi Dubai flight)
! (previous_travel Nairobi Dubai)
query (route Nairobi $dest flight) (not (previous_travel Nairobi $dest)) -> $dest
`

func setup(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	configPath = ""
	cfg = nil
	exportPath = ""
	importQuery = ""
	importJobs = 2

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunScripts(t *testing.T) {
	cmd, buf := setup(t)
	script := writeTemp(t, "travel.relq", travelScript)

	require.NoError(t, runScripts(cmd, []string{script}))
	assert.Equal(t,
		"query (route Nairobi $dest flight) (not (previous_travel Nairobi $dest)) -> $dest\n"+
			"  {dest=Mombasa}\n"+
			"  (1 row)\n",
		buf.String())
}

func TestRunScriptsExport(t *testing.T) {
	cmd, _ := setup(t)
	script := writeTemp(t, "travel.relq", "! (route Nairobi Mombasa flight)\n! (seen Dubai)\n")
	exportPath = filepath.Join(t.TempDir(), "dump.relq")

	require.NoError(t, runScripts(cmd, []string{script}))
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, "! (route Nairobi Mombasa flight)\n! (seen Dubai)\n", string(data))
}

func TestRunScriptsWithSQLiteConfig(t *testing.T) {
	cmd, buf := setup(t)
	configPath = writeTemp(t, "relq.yaml", "store:\n  backend: sqlite\n")
	script := writeTemp(t, "travel.relq", travelScript)

	require.NoError(t, runScripts(cmd, []string{script}))
	assert.Contains(t, buf.String(), "{dest=Mombasa}")
}

func TestRunScriptsReusesRootConfig(t *testing.T) {
	cmd, buf := setup(t)
	path := writeTemp(t, "relq.yaml", "store:\n  backend: sqlite\n")
	loaded, err := config.Load(path)
	require.NoError(t, err)
	cfg = loaded
	require.NoError(t, os.Remove(path))
	configPath = path
	script := writeTemp(t, "travel.relq", travelScript)

	require.NoError(t, runScripts(cmd, []string{script}))
	assert.Contains(t, buf.String(), "{dest=Mombasa}")
}

func TestRunScriptsFailure(t *testing.T) {
	cmd, buf := setup(t)
	script := writeTemp(t, "bad.relq", "! (p a)\nquery (p $x) -> $x\nquery (p $x) -> $nope\n")

	err := runScripts(cmd, []string{script})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.relq")
	// Output of the statements before the failure is still printed
	assert.Contains(t, buf.String(), "{x=a}")
}

func TestImportFiles(t *testing.T) {
	cmd, buf := setup(t)
	jsonl := writeTemp(t, "routes.jsonl", `["route","Nairobi","Mombasa","flight"]
["route","Nairobi","Dubai","flight"]
`)
	html := writeTemp(t, "travel.html", `<table data-relation="previous_travel"><tr><td>Nairobi</td><td>Dubai</td></tr></table>`)
	importQuery = "(route Nairobi $d flight) (not (previous_travel Nairobi $d)) -> $d"

	require.NoError(t, importFiles(cmd, []string{jsonl, html}))
	assert.Contains(t, buf.String(), "{d=Mombasa}")
	assert.NotContains(t, buf.String(), "Dubai}")
}

func TestImportFilesCount(t *testing.T) {
	cmd, buf := setup(t)
	jsonl := writeTemp(t, "routes.jsonl", `["route","Nairobi","Mombasa","flight"]
["route","Nairobi","Mombasa","flight"]
`)
	require.NoError(t, importFiles(cmd, []string{jsonl}))
	assert.Equal(t, "1 facts loaded\n", buf.String())
}

func TestImportBadQuery(t *testing.T) {
	cmd, _ := setup(t)
	importQuery = "(route Nairobi"
	assert.Error(t, importFiles(cmd, []string{"/nonexistent/x.jsonl"}))
}

func TestRepl(t *testing.T) {
	setup(t)
	r := relq.New(relq.Options{Store: memstore.New()})
	defer r.Close()
	in := lang.NewInterpreter(r, nil)

	dump := filepath.Join(t.TempDir(), "dump.relq")
	input := strings.Join([]string{
		`! (route Nairobi Mombasa flight)`,
		`query (route Nairobi $dest flight) -> $dest`,
		`query (route Nairobi`,
		`\facts`,
		`\export ` + dump,
		`\bogus`,
		`\q`,
		`! (never reached)`,
	}, "\n")

	var out bytes.Buffer
	lines := scannerReader{sc: bufio.NewScanner(strings.NewReader(input))}
	require.NoError(t, repl(context.Background(), in, lines, &out))

	got := out.String()
	assert.Contains(t, got, "{dest=Mombasa}")
	assert.Contains(t, got, "error: ")
	assert.Contains(t, got, "! (route Nairobi Mombasa flight)\n")
	assert.Contains(t, got, "unknown command \\bogus")

	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Equal(t, "! (route Nairobi Mombasa flight)\n", string(data))

	facts, err := r.Facts(context.Background())
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}
