// Package term defines the values the fact store and query engine operate on:
// interned symbols, variables, and the fixed-arity tuples built from them.
package term

import (
	"strconv"
	"strings"
	"unique"
)

// Symbol is an interned identifier. Two symbols are equal iff their names are.
// The zero Symbol is not a valid value.
type Symbol struct {
	h unique.Handle[string]
}

// Intern returns the symbol for name
func Intern(name string) Symbol {
	return Symbol{h: unique.Make(name)}
}

// Name returns the identifier
func (s Symbol) Name() string {
	if s.IsZero() {
		return ""
	}
	return s.h.Value()
}

// IsZero reports whether s was never interned
func (s Symbol) IsZero() bool {
	return s == Symbol{}
}

func (s Symbol) String() string {
	return quoteIfNeeded(s.Name())
}

// Variable is a named placeholder, meaningful only inside one evaluation.
type Variable struct {
	name string
}

// NewVariable returns the variable called name. A leading '$' is dropped.
func NewVariable(name string) Variable {
	return Variable{name: strings.TrimPrefix(name, "$")}
}

// Name returns the variable name without the '$' sigil
func (v Variable) Name() string { return v.name }

func (v Variable) String() string { return "$" + v.name }

// Kind tags an Atom.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSymbol
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "symbol"
	case KindVariable:
		return "variable"
	default:
		return "invalid"
	}
}

// Atom is either a Symbol or a Variable. Atoms are comparable values.
type Atom struct {
	kind Kind
	sym  Symbol
	v    Variable
}

// Sym returns a symbol atom
func Sym(name string) Atom {
	return Atom{kind: KindSymbol, sym: Intern(name)}
}

// SymbolAtom wraps an existing symbol
func SymbolAtom(s Symbol) Atom {
	return Atom{kind: KindSymbol, sym: s}
}

// Var returns a variable atom
func Var(name string) Atom {
	return Atom{kind: KindVariable, v: NewVariable(name)}
}

// VariableAtom wraps an existing variable
func VariableAtom(v Variable) Atom {
	return Atom{kind: KindVariable, v: v}
}

// Kind returns the atom's tag
func (a Atom) Kind() Kind { return a.kind }

// IsVariable reports whether a is a variable placeholder
func (a Atom) IsVariable() bool { return a.kind == KindVariable }

// Symbol returns the symbol held by a, if any
func (a Atom) Symbol() (Symbol, bool) {
	return a.sym, a.kind == KindSymbol
}

// Variable returns the variable held by a, if any
func (a Atom) Variable() (Variable, bool) {
	return a.v, a.kind == KindVariable
}

func (a Atom) String() string {
	switch a.kind {
	case KindSymbol:
		return a.sym.String()
	case KindVariable:
		return a.v.String()
	default:
		return "<invalid>"
	}
}

func (a Atom) valid() bool {
	switch a.kind {
	case KindSymbol:
		return !a.sym.IsZero()
	case KindVariable:
		return a.v.name != ""
	default:
		return false
	}
}

// quoteIfNeeded quotes names the script syntax could not read back as a
// bare identifier.
func quoteIfNeeded(name string) string {
	if name == "" {
		return `""`
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		case (r == '-' || r == '.') && i > 0:
		default:
			return strconv.Quote(name)
		}
	}
	return name
}
