package memstore

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Store is an in-memory implementation of store.Store.
//
// Relation fact slices are append-only: a snapshot keeps the slice header it
// saw and never looks past its length. Retract builds a fresh relation, so
// snapshots taken earlier keep reading the old one.
type Store struct {
	mu        sync.RWMutex
	relations map[store.Relation]*relation
	keys      map[string]struct{}
}

type relation struct {
	facts []term.Fact
	// index[i-1] maps the symbol in argument position i to ascending
	// offsets into facts.
	index []map[term.Symbol][]int
}

func newRelation(arity int) *relation {
	idx := make([]map[term.Symbol][]int, arity)
	for i := range idx {
		idx[i] = make(map[term.Symbol][]int)
	}
	return &relation{index: idx}
}

func (r *relation) add(f term.Fact) {
	off := len(r.facts)
	r.facts = append(r.facts, f)
	for i := 1; i < f.Len(); i++ {
		s := f.At(i)
		r.index[i-1][s] = append(r.index[i-1][s], off)
	}
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		relations: make(map[store.Relation]*relation),
		keys:      make(map[string]struct{}),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Assert adds a fact unless it is already present.
func (s *Store) Assert(ctx context.Context, f term.Fact) error {
	if err := validate(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := f.Key()
	if _, ok := s.keys[key]; ok {
		return nil
	}
	rel := store.RelationOf(f)
	r, ok := s.relations[rel]
	if !ok {
		r = newRelation(rel.Arity)
		s.relations[rel] = r
	}
	r.add(f)
	s.keys[key] = struct{}{}
	return nil
}

// Retract removes a fact if present.
func (s *Store) Retract(ctx context.Context, f term.Fact) error {
	if err := validate(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := f.Key()
	if _, ok := s.keys[key]; !ok {
		return nil
	}
	delete(s.keys, key)

	rel := store.RelationOf(f)
	old := s.relations[rel]
	if len(old.facts) == 1 {
		delete(s.relations, rel)
		return nil
	}
	r := newRelation(rel.Arity)
	for _, existing := range old.facts {
		if !existing.Equal(f) {
			r.add(existing)
		}
	}
	s.relations[rel] = r
	return nil
}

// Reset clears all facts.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations = make(map[store.Relation]*relation)
	s.keys = make(map[string]struct{})
	return nil
}

// Len returns the number of stored facts.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys), nil
}

// Contains reports whether f is stored.
func (s *Store) Contains(ctx context.Context, f term.Fact) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[f.Key()]
	return ok, nil
}

// Snapshot pins the current contents for reading.
func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make(map[store.Relation]view, len(s.relations))
	for rel, r := range s.relations {
		views[rel] = view{r: r, facts: r.facts}
	}
	return &snapshot{mu: &s.mu, views: views}, nil
}

type view struct {
	r     *relation
	facts []term.Fact
}

type snapshot struct {
	// mu guards reads of the shared index maps, which the writer keeps
	// appending to.
	mu    *sync.RWMutex
	views map[store.Relation]view
}

func (sn *snapshot) Release() error { return nil }

func (sn *snapshot) FactsFor(ctx context.Context, rel store.Relation) iter.Seq2[term.Fact, error] {
	return func(yield func(term.Fact, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(term.Fact{}, err)
			return
		}
		v, ok := sn.views[rel]
		if !ok {
			return
		}
		for _, f := range v.facts {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (sn *snapshot) Candidates(ctx context.Context, p term.Pattern) iter.Seq2[term.Fact, error] {
	pred, ok := p.Predicate().Symbol()
	if !ok {
		return store.Fail(errVariablePredicate(p))
	}
	rel := store.Relation{Predicate: pred, Arity: p.Arity()}
	v, ok := sn.views[rel]
	if !ok {
		return func(func(term.Fact, error) bool) {}
	}

	cols, syms := store.Bound(p)
	if len(cols) == 0 {
		return sn.FactsFor(ctx, rel)
	}

	// Pick the most selective bound column.
	sn.mu.RLock()
	var offsets []int
	for i, col := range cols {
		offs := v.r.index[col-1][syms[i]]
		if i == 0 || len(offs) < len(offsets) {
			offsets = offs
		}
		if len(offsets) == 0 {
			break
		}
	}
	sn.mu.RUnlock()

	return func(yield func(term.Fact, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(term.Fact{}, err)
			return
		}
		for _, off := range offsets {
			if off >= len(v.facts) {
				return
			}
			if !yield(v.facts[off], nil) {
				return
			}
		}
	}
}

func (sn *snapshot) Relations(ctx context.Context) ([]store.Relation, error) {
	out := make([]store.Relation, 0, len(sn.views))
	for rel, v := range sn.views {
		if len(v.facts) > 0 {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}
