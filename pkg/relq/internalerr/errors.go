package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidFact       = errors.New("invalid fact")
	ErrInvalidPattern    = errors.New("invalid pattern")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrUnsafeNegation    = errors.New("unsafe negation")
	ErrUnboundProjection = errors.New("projected variable is never bound")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrSyntax            = errors.New("syntax error")
)
