package inquiries

import "errors"

var (
	ErrNotFound     = errors.New("inquiry not found")
	ErrConflict     = errors.New("inquiry was modified concurrently")
	ErrDuplicate    = errors.New("inquiry already exists")
	ErrInvalidInput = errors.New("invalid input")
)
