package script

import "errors"

var (
	// ErrMissingKey is returned when a required participant key is absent.
	ErrMissingKey = errors.New("missing participant key")

	// ErrLeafNotFound is returned when a tapscript leaf is missing from the
	// assembled tree.
	ErrLeafNotFound = errors.New("tapscript leaf not found in tree")
)
