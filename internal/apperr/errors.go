package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrOutsideRoot   = errors.New("path escapes root")
	ErrInvalidConfig = errors.New("invalid config")
)
