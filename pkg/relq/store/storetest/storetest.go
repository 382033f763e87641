// Package storetest holds the behaviour every store.Store implementation
// must share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Opener returns a fresh, empty store. The suite closes it.
type Opener func(t *testing.T) store.Store

// Run executes the conformance suite against stores made by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AssertIdempotent", testAssertIdempotent},
		{"RetractAbsent", testRetractAbsent},
		{"Reset", testReset},
		{"FactsForOrder", testFactsForOrder},
		{"FactsForUnknown", testFactsForUnknown},
		{"ArityIsolation", testArityIsolation},
		{"Candidates", testCandidates},
		{"Relations", testRelations},
		{"SnapshotIsolation", testSnapshotIsolation},
		{"SequenceRestartable", testSequenceRestartable},
		{"ConcurrentReaders", testConcurrentReaders},
		{"ArbitraryBytes", testArbitraryBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func assertAll(t *testing.T, s store.Store, facts ...term.Fact) {
	t.Helper()
	ctx := context.Background()
	for _, f := range facts {
		require.NoError(t, s.Assert(ctx, f))
	}
}

func snapshot(t *testing.T, s store.Store) store.Snapshot {
	t.Helper()
	sn, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sn.Release() })
	return sn
}

func render(facts []term.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.String()
	}
	return out
}

func route(to, mode string) term.Fact {
	return term.F("route", "Nairobi", to, mode)
}

func testAssertIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := route("Mombasa", "flight")
	assertAll(t, s, f)
	before, err := s.Len(ctx)
	require.NoError(t, err)

	assertAll(t, s, f)
	after, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 1, after)

	ok, err := s.Contains(ctx, f)
	require.NoError(t, err)
	require.True(t, ok)
}

func testRetractAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Retract(ctx, route("Kisumu", "bus")))

	assertAll(t, s, route("Kisumu", "bus"), route("Mombasa", "flight"))
	require.NoError(t, s.Retract(ctx, route("Kisumu", "bus")))

	ok, err := s.Contains(ctx, route("Kisumu", "bus"))
	require.NoError(t, err)
	require.False(t, ok)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Re-asserting after a retract appends at the end.
	assertAll(t, s, route("Kisumu", "bus"))
	facts, err := store.Collect(snapshot(t, s).FactsFor(ctx, store.RelationOf(route("", ""))))
	require.NoError(t, err)
	require.Equal(t, []string{
		"(route Nairobi Mombasa flight)",
		"(route Nairobi Kisumu bus)",
	}, render(facts))
}

func testReset(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s, route("Mombasa", "flight"), term.F("previous_travel", "Nairobi", "Dubai"))
	require.NoError(t, s.Reset(ctx))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	rels, err := snapshot(t, s).Relations(ctx)
	require.NoError(t, err)
	require.Empty(t, rels)
}

func testFactsForOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s,
		route("Mombasa", "flight"),
		route("Kisumu", "bus"),
		route("Eldoret", "flight"),
	)
	facts, err := store.Collect(snapshot(t, s).FactsFor(ctx, store.RelationOf(route("", ""))))
	require.NoError(t, err)
	require.Equal(t, []string{
		"(route Nairobi Mombasa flight)",
		"(route Nairobi Kisumu bus)",
		"(route Nairobi Eldoret flight)",
	}, render(facts))
}

func testFactsForUnknown(t *testing.T, s store.Store) {
	ctx := context.Background()
	rel := store.Relation{Predicate: term.Intern("nothing"), Arity: 2}
	facts, err := store.Collect(snapshot(t, s).FactsFor(ctx, rel))
	require.NoError(t, err)
	require.Empty(t, facts)
}

func testArityIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s,
		term.F("p", "a"),
		term.F("p", "a", "b"),
		term.F("p", "a", "b", "c"),
	)
	sn := snapshot(t, s)
	for arity := 1; arity <= 3; arity++ {
		facts, err := store.Collect(sn.FactsFor(ctx, store.Relation{Predicate: term.Intern("p"), Arity: arity}))
		require.NoError(t, err)
		require.Len(t, facts, 1)
		require.Equal(t, arity, facts[0].Arity())
	}
}

func testCandidates(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s,
		route("Mombasa", "flight"),
		route("Kisumu", "bus"),
		route("Eldoret", "flight"),
		term.F("route", "Mombasa", "Zanzibar", "ferry"),
	)
	sn := snapshot(t, s)

	p := term.P(term.Sym("route"), term.Sym("Nairobi"), term.Var("dest"), term.Sym("flight"))
	facts, err := store.Collect(sn.Candidates(ctx, p))
	require.NoError(t, err)
	require.Equal(t, []string{
		"(route Nairobi Mombasa flight)",
		"(route Nairobi Eldoret flight)",
	}, render(facts))

	none := term.P(term.Sym("route"), term.Sym("Lagos"), term.Var("d"), term.Var("m"))
	facts, err = store.Collect(sn.Candidates(ctx, none))
	require.NoError(t, err)
	require.Empty(t, facts)

	open := term.P(term.Sym("route"), term.Var("a"), term.Var("b"), term.Var("c"))
	facts, err = store.Collect(sn.Candidates(ctx, open))
	require.NoError(t, err)
	require.Len(t, facts, 4)

	_, err = store.Collect(sn.Candidates(ctx, term.P(term.Var("rel"), term.Sym("Nairobi"))))
	require.Error(t, err)
}

func testRelations(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s,
		term.F("route", "Nairobi", "Dubai", "flight"),
		term.F("preferred_mode", "user1", "flight"),
		term.F("previous_travel", "Nairobi", "Dubai"),
		term.F("previous_travel", "Nairobi"),
	)
	rels, err := snapshot(t, s).Relations(ctx)
	require.NoError(t, err)

	got := make([]string, len(rels))
	for i, r := range rels {
		got[i] = r.String()
	}
	require.Equal(t, []string{
		"preferred_mode/2",
		"previous_travel/1",
		"previous_travel/2",
		"route/3",
	}, got)
}

func testSnapshotIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s, route("Mombasa", "flight"), route("Dubai", "flight"))
	rel := store.RelationOf(route("", ""))

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	before, err := store.Collect(sn.FactsFor(ctx, rel))
	require.NoError(t, err)
	require.NoError(t, sn.Release())

	sn = snapshot(t, s)
	first, err := store.Collect(sn.FactsFor(ctx, rel))
	require.NoError(t, err)
	require.Equal(t, render(before), render(first))

	// Snapshots pinned in memory see no later writes; for a backend that
	// serialises access the writes simply run after Release.
	done := make(chan error, 1)
	go func() {
		if err := s.Assert(ctx, route("Kigali", "flight")); err != nil {
			done <- err
			return
		}
		done <- s.Retract(ctx, route("Mombasa", "flight"))
	}()

	again, err := store.Collect(sn.FactsFor(ctx, rel))
	require.NoError(t, err)
	require.Equal(t, render(first), render(again))
	require.NoError(t, sn.Release())
	require.NoError(t, <-done)

	fresh, err := store.Collect(snapshot(t, s).FactsFor(ctx, rel))
	require.NoError(t, err)
	require.Equal(t, []string{
		"(route Nairobi Dubai flight)",
		"(route Nairobi Kigali flight)",
	}, render(fresh))
}

func testSequenceRestartable(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s, route("Mombasa", "flight"), route("Dubai", "flight"))
	seq := snapshot(t, s).FactsFor(ctx, store.RelationOf(route("", "")))

	first, err := store.Collect(seq)
	require.NoError(t, err)
	second, err := store.Collect(seq)
	require.NoError(t, err)
	require.Equal(t, render(first), render(second))

	// Early exit must not break a later full pass.
	for range seq {
		break
	}
	third, err := store.Collect(seq)
	require.NoError(t, err)
	require.Len(t, third, 2)
}

func testConcurrentReaders(t *testing.T, s store.Store) {
	ctx := context.Background()
	assertAll(t, s, route("Mombasa", "flight"), route("Eldoret", "flight"))
	rel := store.RelationOf(route("", ""))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sn, err := s.Snapshot(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer sn.Release()
			facts, err := store.Collect(sn.FactsFor(ctx, rel))
			if err != nil {
				errs <- err
				return
			}
			if len(facts) < 2 {
				errs <- fmt.Errorf("reader saw %d facts, want 2", len(facts))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func testArbitraryBytes(t *testing.T, s store.Store) {
	ctx := context.Background()
	raw := term.F("city", "a\xff", "")
	other := term.F("city", "a\xfe", "")
	pred := term.F("\x00k", "b")
	assertAll(t, s, raw, other, pred)

	ok, err := s.Contains(ctx, raw)
	require.NoError(t, err)
	require.True(t, ok)

	sn := snapshot(t, s)
	facts, err := store.Collect(sn.FactsFor(ctx, store.RelationOf(raw)))
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.True(t, facts[0].Equal(raw))
	require.Equal(t, "a\xff", facts[0].At(1).Name())

	p := term.P(term.Sym("city"), term.Sym("a\xff"), term.Var("x"))
	facts, err = store.Collect(sn.Candidates(ctx, p))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.True(t, facts[0].Equal(raw))

	rels, err := sn.Relations(ctx)
	require.NoError(t, err)
	require.Contains(t, rels, store.RelationOf(pred))

	require.NoError(t, s.Retract(ctx, raw))
	ok, err = s.Contains(ctx, raw)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = s.Contains(ctx, other)
	require.NoError(t, err)
	require.True(t, ok)
}
