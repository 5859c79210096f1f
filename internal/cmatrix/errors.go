package cmatrix

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("cmatrix: dimension mismatch")
	ErrNotSquare         = errors.New("cmatrix: matrix is not square")
	ErrSingular          = errors.New("cmatrix: matrix is singular")
	ErrOutOfRange        = errors.New("cmatrix: block out of range")
)

func matrixErrorf(op string, err error, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), err)
}
