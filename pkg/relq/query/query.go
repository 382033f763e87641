// Package query evaluates conjunctive queries with negation-as-failure over a
// fact store.
//
// A query is an ordered list of clauses. Positive clauses are joined left to
// right by depth-first backtracking; a negated clause succeeds when no fact
// matches its pattern after the bindings made so far are substituted in.
// Every variable of a negated clause must be bound by an earlier positive
// clause.
package query

import (
	"fmt"
	"strings"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Query is an ordered conjunction of clauses plus the variables to report.
// An empty Project reports every variable of the positive clauses in
// first-occurrence order.
type Query struct {
	Clauses []term.Clause
	Project []term.Variable
}

// New builds a query from clauses
func New(clauses ...term.Clause) Query {
	return Query{Clauses: clauses}
}

// Select sets the projected variables, by name
func (q Query) Select(names ...string) Query {
	vars := make([]term.Variable, len(names))
	for i, n := range names {
		vars[i] = term.NewVariable(n)
	}
	q.Project = vars
	return q
}

func (q Query) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = c.String()
	}
	s := strings.Join(parts, " ")
	if len(q.Project) > 0 {
		vars := make([]string, len(q.Project))
		for i, v := range q.Project {
			vars[i] = v.String()
		}
		s += " -> " + strings.Join(vars, " ")
	}
	return s
}

// UnsafeNegationError reports a negated clause that uses variables no
// earlier positive clause binds.
type UnsafeNegationError struct {
	Index   int
	Clause  term.Clause
	Unbound []term.Variable
}

func (e *UnsafeNegationError) Error() string {
	names := make([]string, len(e.Unbound))
	for i, v := range e.Unbound {
		names[i] = v.String()
	}
	return fmt.Sprintf("unsafe negation: clause %d %s uses unbound %s",
		e.Index, e.Clause, strings.Join(names, ", "))
}

// Is matches internalerr.ErrUnsafeNegation
func (e *UnsafeNegationError) Is(target error) bool {
	return target == internalerr.ErrUnsafeNegation
}

// plan checks q before any fact is read and returns the projection to use.
func (q Query) plan() ([]term.Variable, error) {
	bound := make(map[term.Variable]struct{})
	var order []term.Variable

	for i, c := range q.Clauses {
		if c.Pattern.Len() == 0 {
			return nil, fmt.Errorf("%w: clause %d has an empty pattern", internalerr.ErrInvalidPattern, i)
		}
		vars := c.Pattern.Vars()
		if c.Negated {
			var unbound []term.Variable
			for _, v := range vars {
				if _, ok := bound[v]; !ok {
					unbound = append(unbound, v)
				}
			}
			if len(unbound) > 0 {
				return nil, &UnsafeNegationError{Index: i, Clause: c, Unbound: unbound}
			}
			continue
		}
		for _, v := range vars {
			if _, ok := bound[v]; !ok {
				bound[v] = struct{}{}
				order = append(order, v)
			}
		}
	}

	if len(q.Project) == 0 {
		return order, nil
	}

	project := make([]term.Variable, 0, len(q.Project))
	seen := make(map[term.Variable]struct{}, len(q.Project))
	for _, v := range q.Project {
		if _, ok := bound[v]; !ok {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrUnboundProjection, v)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		project = append(project, v)
	}
	return project, nil
}
