package decimal

import (
	"errors"

	"github.com/zeebo/errs"
)

// Error is the class wrapping every error returned by this package.
var Error = errs.Class("decimal")

// Sentinel errors. Errors returned by this package wrap exactly one of these
// and can be matched with errors.Is.
var (
	ErrScaleMismatch = errors.New("scale mismatch")
	ErrOverflow      = errors.New("overflow")
	ErrUnderflow     = errors.New("underflow")
	ErrDivideByZero  = errors.New("divide by zero")
	ErrNarrowing     = errors.New("narrowing")
	ErrInvalidFormat = errors.New("invalid format")
)

func scaleMismatch(op string, a, b Decimal) error {
	return Error.New("%w: %s: %d != %d", ErrScaleMismatch, op, a.scale, b.scale)
}
