package unify

import (
	"errors"
	"testing"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

var (
	sym = term.Sym
	v   = term.Var
)

func TestMatchBindsVariables(t *testing.T) {
	p := term.P(sym("route"), sym("Nairobi"), v("dest"), sym("flight"))
	f := term.F("route", "Nairobi", "Mombasa", "flight")

	env, ok := Match(p, f, Empty())
	if !ok {
		t.Fatal("expected match")
	}
	got, bound := env.Lookup(term.NewVariable("dest"))
	if !bound || got.Name() != "Mombasa" {
		t.Errorf("dest = %v, bound=%v", got, bound)
	}
}

func TestMatchSymbolMismatch(t *testing.T) {
	p := term.P(sym("route"), sym("Nairobi"), v("dest"), sym("flight"))
	if _, ok := Match(p, term.F("route", "Nairobi", "Kisumu", "bus"), Empty()); ok {
		t.Error("bus route must not match a flight pattern")
	}
}

func TestMatchRepeatedVariable(t *testing.T) {
	p := term.P(sym("edge"), v("x"), v("x"))
	if _, ok := Match(p, term.F("edge", "a", "b"), Empty()); ok {
		t.Error("edge(a, b) must not match edge($x, $x)")
	}
	env, ok := Match(p, term.F("edge", "a", "a"), Empty())
	if !ok {
		t.Fatal("edge(a, a) should match edge($x, $x)")
	}
	if env.Len() != 1 {
		t.Errorf("expected one binding, got %s", env)
	}
}

func TestMatchRespectsExistingBindings(t *testing.T) {
	env, _ := Empty().Bind(term.NewVariable("x"), term.Intern("B"))
	p := term.P(sym("likes"), sym("A"), v("x"))

	if _, ok := Match(p, term.F("likes", "A", "C"), env); ok {
		t.Error("bound $x=B must reject likes(A, C)")
	}
	out, ok := Match(p, term.F("likes", "A", "B"), env)
	if !ok {
		t.Fatal("bound $x=B should accept likes(A, B)")
	}
	if out.Len() != 1 {
		t.Errorf("no new bindings expected, got %s", out)
	}
}

func TestMatchFailureLeavesEnvUntouched(t *testing.T) {
	env, _ := Empty().Bind(term.NewVariable("a"), term.Intern("1"))
	p := term.P(sym("t"), v("b"), v("c"), sym("nope"))

	out, ok := Match(p, term.F("t", "x", "y", "z"), env)
	if ok {
		t.Fatal("expected failure on last position")
	}
	if out.Len() != 1 || env.Len() != 1 {
		t.Errorf("env mutated: out=%s env=%s", out, env)
	}
	if _, bound := env.Lookup(term.NewVariable("b")); bound {
		t.Error("partial binding leaked into caller env")
	}
}

func TestMatchArityMismatch(t *testing.T) {
	p := term.P(sym("route"), v("a"), v("b"))
	_, err := MatchErr(p, term.F("route", "a", "b", "c"), Empty())
	if !errors.Is(err, internalerr.ErrArityMismatch) {
		t.Fatalf("expected ErrArityMismatch, got %v", err)
	}
	if _, ok := Match(p, term.F("route", "a", "b", "c"), Empty()); ok {
		t.Error("arity mismatch must be reported as no match")
	}
}

func TestMatchVariablePredicate(t *testing.T) {
	p := term.P(v("rel"), sym("Nairobi"), v("to"))
	env, ok := Match(p, term.F("previous_travel", "Nairobi", "Dubai"), Empty())
	if !ok {
		t.Fatal("variable predicate should match any relation")
	}
	if got := env.String(); got != "{rel=previous_travel, to=Dubai}" {
		t.Errorf("env = %s", got)
	}
}

func TestEnvBindConflict(t *testing.T) {
	x := term.NewVariable("x")
	env, ok := Empty().Bind(x, term.Intern("a"))
	if !ok {
		t.Fatal("first bind must succeed")
	}
	if _, ok := env.Bind(x, term.Intern("b")); ok {
		t.Error("rebinding to a different symbol must fail")
	}
	if _, ok := env.Bind(x, term.Intern("a")); !ok {
		t.Error("rebinding to the same symbol must succeed")
	}
}
