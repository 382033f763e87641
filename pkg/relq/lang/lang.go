// Package lang reads and writes the relq script format.
//
// A script is a sequence of directives:
//
//	; comments run to the end of the line
//	! (route Nairobi Mombasa flight)      ; assert a fact ("assert" also works)
//	retract (route Nairobi Kisumu bus)
//	retract (route $from $to ferry)       ; every match
//	query (route Nairobi $dest flight) (not (previous_travel Nairobi $dest)) -> $dest
//	reset
//
// Symbols are bare identifiers or double-quoted strings; variables start
// with '$'. A query without "->" reports every variable of its positive
// clauses.
package lang

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/query"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Op is the kind of a script statement
type Op int

const (
	OpAssert Op = iota + 1
	OpRetract
	OpReset
	OpQuery
)

func (o Op) String() string {
	switch o {
	case OpAssert:
		return "assert"
	case OpRetract:
		return "retract"
	case OpReset:
		return "reset"
	case OpQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Statement is one parsed directive. Fact is set for assert and for a
// ground retract; a retract with variables sets Pattern instead. Query is
// set for query.
type Statement struct {
	Op      Op
	Fact    term.Fact
	Pattern term.Pattern
	Query   query.Query
}

// Script is a parsed program
type Script struct {
	Statements []Statement
}

// Facts returns the facts of every assert statement, in order
func (s *Script) Facts() []term.Fact {
	var out []term.Fact
	for _, st := range s.Statements {
		if st.Op == OpAssert {
			out = append(out, st.Fact)
		}
	}
	return out
}

// SyntaxError is a script the grammar rejects or that names an impossible
// fact or pattern.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// Is matches internalerr.ErrSyntax
func (e *SyntaxError) Is(target error) bool { return target == internalerr.ErrSyntax }

// Parse parses a script
func Parse(src string) (*Script, error) {
	ast := &scriptAST{}
	if err := scriptParser.ParseString(src, ast); err != nil {
		return nil, errors.Wrap(&SyntaxError{Err: err}, "parse script")
	}

	script := &Script{Statements: make([]Statement, 0, len(ast.Directives))}
	for i, d := range ast.Directives {
		st, err := d.statement()
		if err != nil {
			return nil, errors.Wrapf(&SyntaxError{Err: err}, "directive %d", i+1)
		}
		script.Statements = append(script.Statements, st)
	}
	return script, nil
}

// ParseFile reads and parses the script at path
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	script, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return script, nil
}

// ParseQuery parses the clauses and projection of a single query, with or
// without the leading "query" keyword.
func ParseQuery(src string) (query.Query, error) {
	script, err := Parse("query " + trimQueryKeyword(src))
	if err != nil {
		return query.Query{}, err
	}
	if len(script.Statements) != 1 {
		return query.Query{}, &SyntaxError{Err: errors.Errorf("expected one query, got %d directives", len(script.Statements))}
	}
	return script.Statements[0].Query, nil
}

func (d *directiveAST) statement() (Statement, error) {
	switch {
	case d.Assert != nil:
		f, err := d.Assert.fact()
		return Statement{Op: OpAssert, Fact: f}, err
	case d.Retract != nil:
		p, err := d.Retract.pattern()
		if err != nil {
			return Statement{}, err
		}
		if f, ok := p.Ground(); ok {
			return Statement{Op: OpRetract, Fact: f}, nil
		}
		return Statement{Op: OpRetract, Pattern: p}, nil
	case d.Reset:
		return Statement{Op: OpReset}, nil
	case d.Query != nil:
		q, err := d.Query.query()
		return Statement{Op: OpQuery, Query: q}, err
	default:
		return Statement{}, errors.New("empty directive")
	}
}

func (q *queryAST) query() (query.Query, error) {
	clauses := make([]term.Clause, 0, len(q.Clauses))
	for _, e := range q.Clauses {
		c, err := e.clause()
		if err != nil {
			return query.Query{}, err
		}
		clauses = append(clauses, c)
	}
	return query.New(clauses...).Select(q.Project...), nil
}

// negated returns the inner expression of (not (...)). Only a bare not
// followed by exactly one parenthesised expression is a negation.
func (e *exprAST) negated() (*exprAST, bool) {
	if len(e.Terms) != 2 || e.Terms[0].Ident != "not" || e.Terms[1].Expr == nil {
		return nil, false
	}
	return e.Terms[1].Expr, true
}

func (e *exprAST) clause() (term.Clause, error) {
	if inner, ok := e.negated(); ok {
		if _, nested := inner.negated(); nested {
			return term.Clause{}, errors.New("nested not is not supported")
		}
		p, err := inner.pattern()
		if err != nil {
			return term.Clause{}, err
		}
		return term.Negated(p), nil
	}
	p, err := e.pattern()
	if err != nil {
		return term.Clause{}, err
	}
	return term.Positive(p), nil
}

func (e *exprAST) pattern() (term.Pattern, error) {
	if _, ok := e.negated(); ok {
		return term.Pattern{}, errors.New("not is only allowed around a query clause")
	}
	atoms := make([]term.Atom, len(e.Terms))
	for i, t := range e.Terms {
		a, err := t.atom()
		if err != nil {
			return term.Pattern{}, err
		}
		atoms[i] = a
	}
	return term.NewPattern(atoms...)
}

func (e *exprAST) fact() (term.Fact, error) {
	p, err := e.pattern()
	if err != nil {
		return term.Fact{}, err
	}
	f, ok := p.Ground()
	if !ok {
		return term.Fact{}, errors.Wrapf(internalerr.ErrInvalidFact, "%s contains variables", p)
	}
	return f, nil
}

func (t *termAST) atom() (term.Atom, error) {
	switch {
	case t.Var != "":
		return term.Var(t.Var), nil
	case t.Ident != "":
		return term.Sym(t.Ident), nil
	case t.Quoted != "":
		name, err := strconv.Unquote(t.Quoted)
		if err != nil {
			return term.Atom{}, errors.Wrapf(err, "invalid quoted symbol %s", t.Quoted)
		}
		return term.Sym(name), nil
	case t.Expr != nil:
		return term.Atom{}, errors.New("nested expression is not a term")
	default:
		return term.Atom{}, errors.New("empty symbol")
	}
}

func trimQueryKeyword(src string) string {
	s := strings.TrimSpace(src)
	if rest, ok := strings.CutPrefix(s, "query"); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '(') {
		return rest
	}
	return s
}
