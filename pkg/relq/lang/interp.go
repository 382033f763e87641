package lang

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cognicore/relq/pkg/relq"
	"github.com/cognicore/relq/pkg/relq/query"
)

// Output is the answer to one query statement.
type Output struct {
	Query  query.Query
	Result *query.Result
}

// Interpreter executes scripts against a Relq instance. Statements run in
// order; each query sees every assert and retract before it.
type Interpreter struct {
	Relq   *relq.Relq
	Logger *zap.Logger
}

// NewInterpreter returns an interpreter over r
func NewInterpreter(r *relq.Relq, log *zap.Logger) *Interpreter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interpreter{Relq: r, Logger: log}
}

// Exec runs every statement of s and returns the query outputs in order.
// It stops at the first failing statement; outputs gathered before the
// failure are returned along with the error.
func (in *Interpreter) Exec(ctx context.Context, s *Script) ([]Output, error) {
	var outs []Output
	for i, st := range s.Statements {
		out, err := in.exec(ctx, st)
		if err != nil {
			return outs, errors.Wrapf(err, "statement %d (%s)", i+1, st.Op)
		}
		if out != nil {
			outs = append(outs, *out)
		}
	}
	return outs, nil
}

// ExecString parses and runs src
func (in *Interpreter) ExecString(ctx context.Context, src string) ([]Output, error) {
	s, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return in.Exec(ctx, s)
}

func (in *Interpreter) exec(ctx context.Context, st Statement) (*Output, error) {
	log := in.logger()
	switch st.Op {
	case OpAssert:
		log.Debug("assert", zap.Stringer("fact", st.Fact))
		return nil, in.Relq.Assert(ctx, st.Fact)
	case OpRetract:
		if st.Fact.IsZero() {
			n, err := in.Relq.RetractMatching(ctx, st.Pattern)
			log.Debug("retract matching", zap.Stringer("pattern", st.Pattern), zap.Int("removed", n))
			return nil, err
		}
		log.Debug("retract", zap.Stringer("fact", st.Fact))
		return nil, in.Relq.Retract(ctx, st.Fact)
	case OpReset:
		log.Debug("reset")
		return nil, in.Relq.Reset(ctx)
	case OpQuery:
		res, err := in.Relq.Query(ctx, st.Query)
		if err != nil {
			return nil, err
		}
		return &Output{Query: st.Query, Result: res}, nil
	default:
		return nil, errors.Errorf("unknown statement kind %d", st.Op)
	}
}

func (in *Interpreter) logger() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}
