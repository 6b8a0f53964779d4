package responses

import "errors"

var (
	ErrNotFound = errors.New("response not found")
	ErrConflict = errors.New("response was modified concurrently")
	// ErrActiveExists means the inquiry already has a draft, pending or
	// approved response.
	ErrActiveExists = errors.New("inquiry already has an active response")
)
