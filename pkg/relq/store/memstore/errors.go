package memstore

import (
	"fmt"

	"github.com/cognicore/relq/pkg/relq/internalerr"
	"github.com/cognicore/relq/pkg/relq/term"
)

func validate(f term.Fact) error {
	if f.IsZero() {
		return fmt.Errorf("%w: empty fact", internalerr.ErrInvalidFact)
	}
	return nil
}

func errVariablePredicate(p term.Pattern) error {
	return fmt.Errorf("%w: candidates need a symbol predicate, got %s", internalerr.ErrInvalidPattern, p)
}
