package evo

import "errors"

var (
	ErrLengthMismatch    = errors.New("output length mismatch")
	ErrUnknownParameter  = errors.New("unknown parameter")
	ErrMissingBounds     = errors.New("missing parameter bounds")
	ErrZeroFitness       = errors.New("total population fitness is zero")
	ErrNumericDegenerate = errors.New("numerically degenerate value")
	ErrInvalidConfig     = errors.New("invalid engine config")
)
