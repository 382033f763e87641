// Package unify matches patterns against ground facts.
package unify

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Env maps variables to symbols. Env values are immutable: extending one
// returns a new Env and never changes the receiver.
type Env struct {
	m map[term.Variable]term.Symbol
}

// Empty returns an environment with no bindings
func Empty() Env { return Env{} }

// Lookup returns the binding of v
func (e Env) Lookup(v term.Variable) (term.Symbol, bool) {
	s, ok := e.m[v]
	return s, ok
}

// Len returns the number of bound variables
func (e Env) Len() int { return len(e.m) }

// Bind returns a copy of e with v bound to s. Rebinding v to a different
// symbol fails.
func (e Env) Bind(v term.Variable, s term.Symbol) (Env, bool) {
	if cur, ok := e.m[v]; ok {
		return e, cur == s
	}
	return e.extend([]binding{{v, s}}), true
}

// Vars returns the bound variables sorted by name
func (e Env) Vars() []term.Variable {
	out := make([]term.Variable, 0, len(e.m))
	for v := range e.m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Apply substitutes the bindings of e into p
func (e Env) Apply(p term.Pattern) term.Pattern {
	return p.Substitute(e.Lookup)
}

func (e Env) String() string {
	vars := e.Vars()
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s=%s", v.Name(), e.m[v])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type binding struct {
	v term.Variable
	s term.Symbol
}

func (e Env) extend(added []binding) Env {
	m := make(map[term.Variable]term.Symbol, len(e.m)+len(added))
	for k, v := range e.m {
		m[k] = v
	}
	for _, b := range added {
		m[b.v] = b.s
	}
	return Env{m: m}
}

// Match unifies p with f under env. On success it returns env extended with
// the bindings the match needed; on failure env is returned unchanged with
// ok=false.
func Match(p term.Pattern, f term.Fact, env Env) (Env, bool) {
	out, err := MatchErr(p, f, env)
	if err != nil {
		return env, false
	}
	return out, true
}

// errNoMatch is returned by MatchErr for ordinary mismatches.
var errNoMatch = errors.New("no match")

// MatchErr is Match with the failure reason. Differing arities report
// internalerr.ErrArityMismatch; callers treat every error as "no match".
func MatchErr(p term.Pattern, f term.Fact, env Env) (Env, error) {
	if p.Len() != f.Len() {
		return env, fmt.Errorf("%w: pattern %s has arity %d, fact %s has %d",
			internalerr.ErrArityMismatch, p, p.Arity(), f, f.Arity())
	}

	var added []binding
	for i := 0; i < p.Len(); i++ {
		a := p.At(i)
		got := f.At(i)

		switch a.Kind() {
		case term.KindSymbol:
			s, _ := a.Symbol()
			if s != got {
				return env, errNoMatch
			}
		case term.KindVariable:
			v, _ := a.Variable()
			if cur, ok := env.m[v]; ok {
				if cur != got {
					return env, errNoMatch
				}
				continue
			}
			if cur, ok := lookupAdded(added, v); ok {
				if cur != got {
					return env, errNoMatch
				}
				continue
			}
			added = append(added, binding{v, got})
		default:
			return env, fmt.Errorf("%w: invalid atom at position %d", internalerr.ErrInvalidPattern, i)
		}
	}

	if len(added) == 0 {
		return env, nil
	}
	return env.extend(added), nil
}

func lookupAdded(added []binding, v term.Variable) (term.Symbol, bool) {
	for _, b := range added {
		if b.v == v {
			return b.s, true
		}
	}
	return term.Symbol{}, false
}
