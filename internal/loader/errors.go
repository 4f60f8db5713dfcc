package loader

import (
	"errors"
	"strings"
)

var ErrMalformedRow = errors.New("malformed row")

// MalformedRowError lists every column of one row that failed coercion.
type MalformedRowError struct {
	Problems []string
}

func (e *MalformedRowError) Error() string {
	return "malformed row: " + strings.Join(e.Problems, "; ")
}

func (e *MalformedRowError) Unwrap() error {
	return ErrMalformedRow
}
