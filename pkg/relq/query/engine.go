package query

import (
	"context"
	"crypto/rand"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq/store"
	"github.com/cognicore/relq/pkg/relq/term"
	"github.com/cognicore/relq/pkg/relq/unify"
)

// Config bounds query evaluation. Zero values mean no limit.
type Config struct {
	Timeout     time.Duration
	MaxResults  int
	Parallelism int
}

// Options configures an Engine
type Options struct {
	Store   store.Store
	Config  Config
	Logger  *zap.Logger
	Metrics *Metrics
}

// Engine evaluates queries against one store.
type Engine struct {
	store   store.Store
	cfg     Config
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewEngine creates an engine over opts.Store
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   opts.Store,
		cfg:     opts.Config,
		log:     log,
		metrics: opts.Metrics,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Store returns the store the engine reads
func (e *Engine) Store() store.Store { return e.store }

// Stats describes the work one evaluation did.
type Stats struct {
	Candidates     int
	Matches        int
	NegationChecks int
	Duration       time.Duration
}

// Result is the answer set of one query.
type Result struct {
	QueryID   string
	Vars      []term.Variable
	Rows      []Row
	Truncated bool
	Stats     Stats
}

// Len returns the number of rows
func (r *Result) Len() int { return len(r.Rows) }

// All yields copies of the rows in enumeration order
func (r *Result) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, row := range r.Rows {
			if !yield(row.clone()) {
				return
			}
		}
	}
}

// errStop ends enumeration once MaxResults rows are collected.
var errStop = errors.New("stop")

// Evaluate runs q to completion and returns its distinct projected rows.
// Validation errors, including *UnsafeNegationError, are reported before
// any fact is read; no partial result is returned with an error.
func (e *Engine) Evaluate(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	id := e.newID()

	res, err := e.evaluate(ctx, q)
	if err != nil {
		e.metrics.observe(nil, err, time.Since(start))
		e.log.Debug("query failed",
			zap.String("query_id", id),
			zap.Stringer("query", q),
			zap.Error(err))
		return nil, err
	}

	res.QueryID = id
	res.Stats.Duration = time.Since(start)
	e.metrics.observe(res, nil, res.Stats.Duration)
	e.log.Debug("query evaluated",
		zap.String("query_id", id),
		zap.Stringer("query", q),
		zap.Int("rows", len(res.Rows)),
		zap.Int("candidates", res.Stats.Candidates),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("duration", res.Stats.Duration))
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, q Query) (*Result, error) {
	project, err := q.plan()
	if err != nil {
		return nil, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	r := &run{
		ctx:     ctx,
		snap:    snap,
		clauses: q.Clauses,
		project: project,
		seen:    make(map[string]struct{}),
		max:     e.cfg.MaxResults,
	}
	if err := r.solve(0, unify.Empty()); err != nil && err != errStop {
		return nil, err
	}

	return &Result{
		Vars:      slices.Clone(project),
		Rows:      r.rows,
		Truncated: r.truncated,
		Stats:     r.stats,
	}, nil
}

func (e *Engine) newID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

// run is the state of one evaluation.
type run struct {
	ctx     context.Context
	snap    store.Snapshot
	clauses []term.Clause
	project []term.Variable

	seen      map[string]struct{}
	rows      []Row
	max       int
	truncated bool
	stats     Stats
}

// solve extends env through clauses[i:], recording a row for every
// environment that satisfies them all. Recursion depth is bounded by the
// number of clauses.
func (r *run) solve(i int, env unify.Env) error {
	if i == len(r.clauses) {
		return r.emit(env)
	}

	c := r.clauses[i]
	p := env.Apply(c.Pattern)

	if c.Negated {
		r.stats.NegationChecks++
		found, err := r.exists(p, env)
		if err != nil || found {
			return err
		}
		return r.solve(i+1, env)
	}

	for f, err := range r.candidates(p) {
		if err != nil {
			return err
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
		r.stats.Candidates++
		next, ok := unify.Match(p, f, env)
		if !ok {
			continue
		}
		r.stats.Matches++
		if err := r.solve(i+1, next); err != nil {
			return err
		}
	}
	return nil
}

// exists reports whether any fact unifies with p.
func (r *run) exists(p term.Pattern, env unify.Env) (bool, error) {
	for f, err := range r.candidates(p) {
		if err != nil {
			return false, err
		}
		if err := r.ctx.Err(); err != nil {
			return false, err
		}
		r.stats.Candidates++
		if _, ok := unify.Match(p, f, env); ok {
			return true, nil
		}
	}
	return false, nil
}

// candidates yields the facts p could match. A variable in the predicate
// position ranges over every relation of p's arity.
func (r *run) candidates(p term.Pattern) iter.Seq2[term.Fact, error] {
	if _, ok := p.Predicate().Symbol(); ok {
		return r.snap.Candidates(r.ctx, p)
	}
	return func(yield func(term.Fact, error) bool) {
		rels, err := r.snap.Relations(r.ctx)
		if err != nil {
			yield(term.Fact{}, err)
			return
		}
		for _, rel := range rels {
			if rel.Arity != p.Arity() {
				continue
			}
			for f, err := range r.snap.Candidates(r.ctx, p.WithPredicate(rel.Predicate)) {
				if !yield(f, err) || err != nil {
					return
				}
			}
		}
	}
}

func (r *run) emit(env unify.Env) error {
	row := project(env, r.project)
	key := row.key()
	if _, dup := r.seen[key]; dup {
		return nil
	}
	if r.max > 0 && len(r.rows) == r.max {
		r.truncated = true
		return errStop
	}
	r.seen[key] = struct{}{}
	r.rows = append(r.rows, row)
	return nil
}
