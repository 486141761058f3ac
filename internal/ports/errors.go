package ports

import "errors"

var (
	// ErrNotFound is returned by repositories when no record matches the key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)
