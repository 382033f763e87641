package relq

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/query"
	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/term"
)

// Relq is the main fact engine facade: a store plus a query engine over it.
type Relq struct {
	store  store.Store
	engine *query.Engine
	log    *zap.Logger
}

// Options configures a Relq instance
type Options struct {
	Store   store.Store
	Query   query.Config
	Logger  *zap.Logger
	Metrics *query.Metrics
}

// New creates a Relq instance with the given dependencies
func New(opts Options) *Relq {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Relq{
		store: opts.Store,
		engine: query.NewEngine(query.Options{
			Store:   opts.Store,
			Config:  opts.Query,
			Logger:  log,
			Metrics: opts.Metrics,
		}),
		log: log,
	}
}

// Close cleanly shuts down the Relq instance
func (r *Relq) Close() error {
	return r.store.Close()
}

// Store returns the underlying fact store
func (r *Relq) Store() store.Store { return r.store }

// Engine returns the query engine
func (r *Relq) Engine() *query.Engine { return r.engine }

// Assert adds facts to the store
func (r *Relq) Assert(ctx context.Context, facts ...term.Fact) error {
	for _, f := range facts {
		if err := r.store.Assert(ctx, f); err != nil {
			return fmt.Errorf("assert %s: %w", f, err)
		}
	}
	r.log.Debug("facts asserted", zap.Int("count", len(facts)))
	return nil
}

// Retract removes facts from the store
func (r *Relq) Retract(ctx context.Context, facts ...term.Fact) error {
	for _, f := range facts {
		if err := r.store.Retract(ctx, f); err != nil {
			return fmt.Errorf("retract %s: %w", f, err)
		}
	}
	r.log.Debug("facts retracted", zap.Int("count", len(facts)))
	return nil
}

// RetractMatching retracts every fact matching p and returns how many were
// removed. p may contain variables, including in the predicate position.
func (r *Relq) RetractMatching(ctx context.Context, p term.Pattern) (int, error) {
	removed := 0
	for {
		res, err := r.engine.Evaluate(ctx, query.New(term.Positive(p)))
		if err != nil {
			return removed, err
		}
		for row := range res.All() {
			f, ok := p.Substitute(row.Get).Ground()
			if !ok {
				continue
			}
			if err := r.store.Retract(ctx, f); err != nil {
				return removed, fmt.Errorf("retract %s: %w", f, err)
			}
			removed++
		}
		// A row cap leaves matches behind; go again until none are left
		if !res.Truncated {
			break
		}
	}
	r.log.Debug("facts retracted by pattern", zap.Stringer("pattern", p), zap.Int("count", removed))
	return removed, nil
}

// Reset clears the store
func (r *Relq) Reset(ctx context.Context) error {
	if err := r.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	r.log.Debug("store reset")
	return nil
}

// Query evaluates q
func (r *Relq) Query(ctx context.Context, q query.Query) (*query.Result, error) {
	return r.engine.Evaluate(ctx, q)
}

// Ask reports whether any fact matches p
func (r *Relq) Ask(ctx context.Context, p term.Pattern) (bool, error) {
	res, err := r.engine.Evaluate(ctx, query.Query{Clauses: []term.Clause{term.Positive(p)}})
	if err != nil {
		return false, err
	}
	return res.Len() > 0, nil
}

// Facts returns every stored fact, grouped by relation in relation order
func (r *Relq) Facts(ctx context.Context) ([]term.Fact, error) {
	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	rels, err := snap.Relations(ctx)
	if err != nil {
		return nil, err
	}
	var out []term.Fact
	for _, rel := range rels {
		facts, err := store.Collect(snap.FactsFor(ctx, rel))
		if err != nil {
			return nil, err
		}
		out = append(out, facts...)
	}
	return out, nil
}
