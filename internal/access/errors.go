package access

import "errors"

var (
	ErrNotFound        = errors.New("access: not found")
	ErrUnauthenticated = errors.New("access: unauthenticated")
	ErrUnauthorized    = errors.New("access: unauthorized")
	ErrForbidden       = errors.New("access: forbidden")
	ErrInvalidInput    = errors.New("access: invalid input")
	ErrConflict        = errors.New("access: resource conflict")
	ErrAmbiguousUnit   = errors.New("access: ambiguous unit reference")
)
