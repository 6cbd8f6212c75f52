package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrCorrupt indicates a stored record could not be decoded.
	ErrCorrupt = errors.New("store: corrupt record")
)
