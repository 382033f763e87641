package query

import (
	"fmt"
	"strings"

	"github.com/cognicore/relq/pkg/relq/term"
	"github.com/cognicore/relq/pkg/relq/unify"
)

// Row is one answer restricted to the projected variables, in projection
// order. Rows own their storage and are safe to keep.
type Row struct {
	vars []term.Variable
	vals []term.Symbol
}

func project(env unify.Env, vars []term.Variable) Row {
	vals := make([]term.Symbol, len(vars))
	for i, v := range vars {
		// plan guarantees every projected variable is bound
		vals[i], _ = env.Lookup(v)
	}
	return Row{vars: vars, vals: vals}
}

// Len returns the number of columns
func (r Row) Len() int { return len(r.vals) }

// Get returns the value of v
func (r Row) Get(v term.Variable) (term.Symbol, bool) {
	for i, rv := range r.vars {
		if rv == v {
			return r.vals[i], true
		}
	}
	return term.Symbol{}, false
}

// Value returns the value of the variable called name, or "" when the row
// has no such column.
func (r Row) Value(name string) string {
	s, _ := r.Get(term.NewVariable(name))
	return s.Name()
}

// Vars returns the column variables
func (r Row) Vars() []term.Variable {
	out := make([]term.Variable, len(r.vars))
	copy(out, r.vars)
	return out
}

// Values returns the column values
func (r Row) Values() []term.Symbol {
	out := make([]term.Symbol, len(r.vals))
	copy(out, r.vals)
	return out
}

// Map returns the row keyed by variable name
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.vals))
	for i, v := range r.vars {
		m[v.Name()] = r.vals[i].Name()
	}
	return m
}

func (r Row) String() string {
	parts := make([]string, len(r.vals))
	for i, v := range r.vars {
		parts[i] = fmt.Sprintf("%s=%s", v.Name(), r.vals[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r Row) key() string {
	var b strings.Builder
	for _, s := range r.vals {
		n := s.Name()
		fmt.Fprintf(&b, "%d:%s", len(n), n)
	}
	return b.String()
}

func (r Row) clone() Row {
	return Row{vars: r.Vars(), vals: r.Values()}
}
