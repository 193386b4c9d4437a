package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleRecord is returned when a guarded transition update matched no
	// row: a concurrent writer won the (status, attempts) compare-and-swap.
	// Callers retry from a fresh read.
	ErrStaleRecord = errors.New("stale record: concurrent transition won")

	// ErrInvalidInput is returned when input validation fails at the store.
	ErrInvalidInput = errors.New("invalid input")
)
