package lang

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/relq/pkg/relq"
	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/store/memstore"
	"github.com/cognicore/relq/pkg/relq/term"
)

func newInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	r := relq.New(relq.Options{Store: memstore.New()})
	t.Cleanup(func() { r.Close() })
	return NewInterpreter(r, nil)
}

func destinations(out Output) []string {
	var got []string
	for row := range out.Result.All() {
		got = append(got, row.Value("dest"))
	}
	return got
}

func TestParseDirectives(t *testing.T) {
	script, err := Parse(`
		; setup
		! (route Nairobi Mombasa flight)
		assert (route "New York" Boston train)
		retract (route Nairobi Mombasa flight)
		reset
		query (route Nairobi $dest flight) (not (seen $dest)) -> $dest
	`)
	require.NoError(t, err)
	require.Len(t, script.Statements, 5)

	ops := make([]Op, len(script.Statements))
	for i, st := range script.Statements {
		ops[i] = st.Op
	}
	assert.Equal(t, []Op{OpAssert, OpAssert, OpRetract, OpReset, OpQuery}, ops)
	assert.False(t, script.Statements[2].Fact.IsZero(), "ground retract carries a fact")

	assert.True(t, script.Statements[0].Fact.Equal(term.F("route", "Nairobi", "Mombasa", "flight")))
	assert.Equal(t, "New York", script.Statements[1].Fact.At(1).Name())

	q := script.Statements[4].Query
	require.Len(t, q.Clauses, 2)
	assert.False(t, q.Clauses[0].Negated)
	assert.True(t, q.Clauses[1].Negated)
	assert.Equal(t, []term.Variable{term.NewVariable("dest")}, q.Project)
	assert.Equal(t, "(route Nairobi $dest flight) (not (seen $dest)) -> $dest", q.String())
}

func TestParseQueryWithoutProjection(t *testing.T) {
	q, err := ParseQuery("(previous_travel $from $to)")
	require.NoError(t, err)
	assert.Empty(t, q.Project)
	assert.Len(t, q.Clauses, 1)

	q, err = ParseQuery("query (p $x) -> $x")
	require.NoError(t, err)
	assert.Len(t, q.Project, 1)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unbalanced":        "! (route Nairobi",
		"variable in fact":  "! (route Nairobi $dest)",
		"empty fact":        "! ()",
		"unknown directive": "frobnicate (x)",
		"nested not":        "query (p $x) (not (not (q $x)))",
		"not in assert":     "! (not (p a))",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.ErrorIs(t, err, internalerr.ErrSyntax)
		})
	}
}

func TestParseNotAsSymbol(t *testing.T) {
	script, err := Parse(`query (not $x) (not (q $x))`)
	require.NoError(t, err)
	require.Len(t, script.Statements, 1)

	q := script.Statements[0].Query
	assert.Equal(t, "(not $x) (not (q $x))", q.String())
	assert.False(t, q.Clauses[0].Negated)
	assert.True(t, q.Clauses[1].Negated)

	_, err = Parse(`query ("not" (p $x))`)
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrSyntax)
}

func TestFormatRoundTrip(t *testing.T) {
	facts := []term.Fact{
		term.F("route", "Nairobi", "Mombasa", "flight"),
		term.F("city", "New York"),
		term.F("note", `say "hi"`),
		term.F("flag"),
		term.F("not", "a"),
		term.F("not", "not"),
		term.F("p", ""),
		term.F("bytes", "a\xff"),
		term.F("query", "reset", "->"),
	}
	script, err := Parse(Format(facts))
	require.NoError(t, err)
	got := script.Facts()
	require.Len(t, got, len(facts))
	for i := range facts {
		assert.True(t, facts[i].Equal(got[i]), "fact %d: %s != %s", i, facts[i], got[i])
	}
}

type bufferWriter struct {
	content string
}

func (b *bufferWriter) WriteFacts(ctx context.Context, content string) error {
	b.content = content
	return nil
}

func TestExporter(t *testing.T) {
	w := &bufferWriter{}
	exp := Exporter{Writer: w}
	require.NoError(t, exp.Export(context.Background(), []term.Fact{term.F("route", "Nairobi", "Kisumu", "bus")}))
	assert.Equal(t, "! (route Nairobi Kisumu bus)\n", w.content)

	err := (&Exporter{}).Export(context.Background(), nil)
	assert.Error(t, err)
}

func TestInterpreterTravelScript(t *testing.T) {
	in := newInterpreter(t)
	script, err := ParseFile("testdata/travel.relq")
	require.NoError(t, err)

	outs, err := in.Exec(context.Background(), script)
	require.NoError(t, err)
	require.Len(t, outs, 3)

	assert.Equal(t, 2, outs[0].Result.Len())
	assert.Equal(t, []string{"Mombasa", "Eldoret", "Kigali", "London", "New_York", "Addis_Ababa"}, destinations(outs[1]))

	var next []string
	for row := range outs[2].Result.All() {
		next = append(next, row.Value("next"))
	}
	assert.Equal(t, []string{"Mombasa", "Eldoret", "Kigali", "London", "New_York", "Addis_Ababa"}, next)
}

func TestInterpreterOrdering(t *testing.T) {
	in := newInterpreter(t)
	outs, err := in.ExecString(context.Background(), `
		! (route Nairobi Mombasa flight)
		query (route Nairobi $dest flight) -> $dest
		retract (route Nairobi Mombasa flight)
		query (route Nairobi $dest flight) -> $dest
		! (route Nairobi Kigali flight)
		reset
		query (route Nairobi $dest flight) -> $dest
	`)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, []string{"Mombasa"}, destinations(outs[0]))
	assert.Empty(t, destinations(outs[1]))
	assert.Empty(t, destinations(outs[2]))
}

func TestInterpreterRetractPattern(t *testing.T) {
	in := newInterpreter(t)
	outs, err := in.ExecString(context.Background(), `
		! (route Nairobi Kisumu bus)
		! (route Nairobi Nakuru bus)
		! (route Nairobi Mombasa flight)
		retract (route Nairobi $to bus)
		query (route Nairobi $dest $mode) -> $dest
	`)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []string{"Mombasa"}, destinations(outs[0]))
}

func TestInterpreterStopsOnError(t *testing.T) {
	in := newInterpreter(t)
	outs, err := in.ExecString(context.Background(), `
		! (p a)
		query (p $x) -> $x
		query (p $x) (not (q $y)) -> $x
		! (p b)
	`)
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrUnsafeNegation)
	assert.Contains(t, err.Error(), "statement 3")
	assert.Len(t, outs, 1)

	ok, err := in.Relq.Ask(context.Background(), term.F("p", "b").Pattern())
	require.NoError(t, err)
	assert.False(t, ok, "statements after the failure must not run")
}

func TestWriteResult(t *testing.T) {
	in := newInterpreter(t)
	outs, err := in.ExecString(context.Background(), `
		! (route Nairobi Mombasa flight)
		query (route Nairobi $dest flight) -> $dest
	`)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, outs[0].Query, outs[0].Result))
	assert.Equal(t, "query (route Nairobi $dest flight) -> $dest\n  {dest=Mombasa}\n  (1 row)\n", buf.String())
}
