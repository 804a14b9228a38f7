package usecase

import "errors"

var (
	ErrForbidden    = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
