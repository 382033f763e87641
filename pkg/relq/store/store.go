package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/cognicore/relq/pkg/relq/term"
)

// Store is the mutable fact collection queries run against.
// Implementations allow many concurrent readers and one writer at a time.
type Store interface {
	Close() error

	// Assert adds f. Asserting a fact that is already present is a no-op.
	Assert(ctx context.Context, f term.Fact) error
	// Retract removes f if present; an absent fact is not an error.
	Retract(ctx context.Context, f term.Fact) error
	// Reset removes every fact.
	Reset(ctx context.Context) error

	Len(ctx context.Context) (int, error)
	Contains(ctx context.Context, f term.Fact) (bool, error)

	// Snapshot returns a consistent read view. Writes made after the call
	// are not visible through it. Callers must Release it.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Reader is read access to a set of facts.
type Reader interface {
	// FactsFor yields the facts of one relation in insertion order.
	// Unknown relations yield nothing.
	FactsFor(ctx context.Context, rel Relation) iter.Seq2[term.Fact, error]

	// Candidates yields a superset of the facts that can match p, narrowed
	// by p's ground argument positions, in insertion order. p's predicate
	// position must be a symbol.
	Candidates(ctx context.Context, p term.Pattern) iter.Seq2[term.Fact, error]

	// Relations lists every relation holding at least one fact, ordered by
	// predicate name then arity.
	Relations(ctx context.Context) ([]Relation, error)
}

// Snapshot is a Reader pinned to one point in time.
type Snapshot interface {
	Reader
	Release() error
}

// Relation identifies a predicate together with its arity.
type Relation struct {
	Predicate term.Symbol
	Arity     int
}

// RelationOf returns the relation f belongs to
func RelationOf(f term.Fact) Relation {
	return Relation{Predicate: f.Predicate(), Arity: f.Arity()}
}

func (r Relation) String() string {
	return fmt.Sprintf("%s/%d", r.Predicate.Name(), r.Arity)
}

// Less orders relations by predicate name, then arity
func (r Relation) Less(o Relation) bool {
	if r.Predicate.Name() != o.Predicate.Name() {
		return r.Predicate.Name() < o.Predicate.Name()
	}
	return r.Arity < o.Arity
}

// Bound returns the argument positions (1-based tuple indexes) of p that
// hold symbols, together with those symbols.
func Bound(p term.Pattern) ([]int, []term.Symbol) {
	var cols []int
	var syms []term.Symbol
	for i := 1; i < p.Len(); i++ {
		if s, ok := p.At(i).Symbol(); ok {
			cols = append(cols, i)
			syms = append(syms, s)
		}
	}
	return cols, syms
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[term.Fact, error]) ([]term.Fact, error) {
	var out []term.Fact
	for f, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Fail returns a sequence that yields only err.
func Fail(err error) iter.Seq2[term.Fact, error] {
	return func(yield func(term.Fact, error) bool) {
		yield(term.Fact{}, err)
	}
}
