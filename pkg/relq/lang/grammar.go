package lang

import (
	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

var (
	scriptLexer = lexer.Must(lexer.Regexp(`(\s+|;[^\n]*)` +
		`|(?P<Var>\$[A-Za-z_][A-Za-z0-9_]*)` +
		`|(?P<String>"(?:[^"\\]|\\.)*")` +
		`|(?P<Ident>[A-Za-z0-9_][A-Za-z0-9_.\-]*)` +
		`|(?P<Punct>->|[()!])`,
	))
	scriptParser = participle.MustBuild(&scriptAST{}, scriptLexer)
)

type scriptAST struct {
	Directives []*directiveAST `parser:"{ @@ }"`
}

type directiveAST struct {
	Assert  *exprAST  `parser:"  ( \"!\" | \"assert\" ) @@"`
	Retract *exprAST  `parser:"| \"retract\" @@"`
	Reset   bool      `parser:"| @\"reset\""`
	Query   *queryAST `parser:"| \"query\" @@"`
}

type queryAST struct {
	Clauses []*exprAST `parser:"@@ { @@ }"`
	Project []string   `parser:"[ \"->\" @Var { @Var } ]"`
}

// Negation is told apart after parsing: keywords match on token value, so
// a "not" literal here would also swallow a quoted "not" symbol.
type exprAST struct {
	Terms []*termAST `parser:"\"(\" { @@ } \")\""`
}

// Quoted keeps the raw token, quotes included, and is unquoted with
// strconv so escaped bytes survive as written.
type termAST struct {
	Var    string   `parser:"  @Var"`
	Ident  string   `parser:"| @Ident"`
	Quoted string   `parser:"| @String"`
	Expr   *exprAST `parser:"| @@"`
}
