package term

import (
	"fmt"
	"strings"

	"github.com/cognicore/relq/pkg/relq/internalerr"
)

// Fact is a ground tuple. Element 0 names the relation, the rest are its
// arguments. Facts are immutable once created.
type Fact struct {
	syms []Symbol
}

// NewFact builds a fact from a predicate and its arguments
func NewFact(predicate Symbol, args ...Symbol) (Fact, error) {
	syms := make([]Symbol, 0, len(args)+1)
	syms = append(syms, predicate)
	syms = append(syms, args...)
	for i, s := range syms {
		if s.IsZero() {
			return Fact{}, fmt.Errorf("%w: empty symbol at position %d", internalerr.ErrInvalidFact, i)
		}
	}
	return Fact{syms: syms}, nil
}

// F builds a fact from names, the first naming the relation. It panics on an
// empty tuple and is meant for literals in code and tests.
func F(names ...string) Fact {
	if len(names) == 0 {
		panic("term: fact needs a predicate")
	}
	syms := make([]Symbol, len(names))
	for i, n := range names {
		syms[i] = Intern(n)
	}
	return Fact{syms: syms}
}

// Predicate returns the relation name
func (f Fact) Predicate() Symbol {
	if len(f.syms) == 0 {
		return Symbol{}
	}
	return f.syms[0]
}

// Arity returns the number of arguments, not counting the predicate
func (f Fact) Arity() int {
	if len(f.syms) == 0 {
		return 0
	}
	return len(f.syms) - 1
}

// Len returns the tuple length including the predicate
func (f Fact) Len() int { return len(f.syms) }

// At returns the symbol at tuple position i (0 is the predicate)
func (f Fact) At(i int) Symbol { return f.syms[i] }

// Args returns a copy of the argument symbols
func (f Fact) Args() []Symbol {
	if len(f.syms) < 2 {
		return nil
	}
	out := make([]Symbol, len(f.syms)-1)
	copy(out, f.syms[1:])
	return out
}

// IsZero reports whether f is the zero Fact
func (f Fact) IsZero() bool { return len(f.syms) == 0 }

// Equal reports structural equality
func (f Fact) Equal(other Fact) bool {
	if len(f.syms) != len(other.syms) {
		return false
	}
	for i := range f.syms {
		if f.syms[i] != other.syms[i] {
			return false
		}
	}
	return true
}

// Names returns the tuple as plain strings
func (f Fact) Names() []string {
	out := make([]string, len(f.syms))
	for i, s := range f.syms {
		out[i] = s.Name()
	}
	return out
}

// Key returns a canonical encoding of the tuple, unique per fact.
func (f Fact) Key() string {
	var b strings.Builder
	for _, s := range f.syms {
		n := s.Name()
		fmt.Fprintf(&b, "%d:%s", len(n), n)
	}
	return b.String()
}

// Pattern returns f as a pattern with no variables
func (f Fact) Pattern() Pattern {
	atoms := make([]Atom, len(f.syms))
	for i, s := range f.syms {
		atoms[i] = SymbolAtom(s)
	}
	return Pattern{atoms: atoms}
}

func (f Fact) String() string {
	parts := make([]string, len(f.syms))
	for i, s := range f.syms {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Pattern is a tuple of atoms; element 0 is the predicate position.
type Pattern struct {
	atoms []Atom
}

// NewPattern builds a pattern, rejecting empty tuples and invalid atoms
func NewPattern(atoms ...Atom) (Pattern, error) {
	if len(atoms) == 0 {
		return Pattern{}, fmt.Errorf("%w: pattern needs a predicate", internalerr.ErrInvalidPattern)
	}
	for i, a := range atoms {
		if !a.valid() {
			return Pattern{}, fmt.Errorf("%w: invalid atom at position %d", internalerr.ErrInvalidPattern, i)
		}
	}
	out := make([]Atom, len(atoms))
	copy(out, atoms)
	return Pattern{atoms: out}, nil
}

// P is NewPattern for literals; it panics on invalid input.
func P(atoms ...Atom) Pattern {
	p, err := NewPattern(atoms...)
	if err != nil {
		panic(err)
	}
	return p
}

// Arity returns the number of argument positions
func (p Pattern) Arity() int {
	if len(p.atoms) == 0 {
		return 0
	}
	return len(p.atoms) - 1
}

// Len returns the tuple length including the predicate position
func (p Pattern) Len() int { return len(p.atoms) }

// At returns the atom at tuple position i
func (p Pattern) At(i int) Atom { return p.atoms[i] }

// Predicate returns the atom in the predicate position
func (p Pattern) Predicate() Atom {
	if len(p.atoms) == 0 {
		return Atom{}
	}
	return p.atoms[0]
}

// WithPredicate returns a copy of p with sym in the predicate position
func (p Pattern) WithPredicate(sym Symbol) Pattern {
	out := make([]Atom, len(p.atoms))
	copy(out, p.atoms)
	if len(out) > 0 {
		out[0] = SymbolAtom(sym)
	}
	return Pattern{atoms: out}
}

// Vars returns the distinct variables of p in first-occurrence order
func (p Pattern) Vars() []Variable {
	var out []Variable
	seen := make(map[Variable]struct{})
	for _, a := range p.atoms {
		if v, ok := a.Variable(); ok {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}

// Substitute replaces every variable lookup can resolve with its symbol.
// Unresolved variables are kept.
func (p Pattern) Substitute(lookup func(Variable) (Symbol, bool)) Pattern {
	out := make([]Atom, len(p.atoms))
	for i, a := range p.atoms {
		out[i] = a
		if v, ok := a.Variable(); ok {
			if s, bound := lookup(v); bound {
				out[i] = SymbolAtom(s)
			}
		}
	}
	return Pattern{atoms: out}
}

// Ground converts a variable-free pattern to a fact
func (p Pattern) Ground() (Fact, bool) {
	if len(p.atoms) == 0 {
		return Fact{}, false
	}
	syms := make([]Symbol, len(p.atoms))
	for i, a := range p.atoms {
		s, ok := a.Symbol()
		if !ok {
			return Fact{}, false
		}
		syms[i] = s
	}
	return Fact{syms: syms}, true
}

func (p Pattern) String() string {
	parts := make([]string, len(p.atoms))
	for i, a := range p.atoms {
		parts[i] = a.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Clause is one conjunct of a query: a pattern that must match, or a
// pattern that must not.
type Clause struct {
	Pattern Pattern
	Negated bool
}

// Positive returns a clause requiring p to match
func Positive(p Pattern) Clause { return Clause{Pattern: p} }

// Negated returns a negation-as-failure clause over p
func Negated(p Pattern) Clause { return Clause{Pattern: p, Negated: true} }

func (c Clause) String() string {
	if c.Negated {
		return "(not " + c.Pattern.String() + ")"
	}
	return c.Pattern.String()
}
