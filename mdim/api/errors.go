package api

import "errors"

// Every backend reports failures by wrapping one of these, so callers can
// classify them with errors.Is.
var (
	// ErrNotSupported is returned for an unsupported rank, data type,
	// attribute shape or operation.
	ErrNotSupported = errors.New("not supported")

	// ErrAlreadyExists is returned when a name collides within a naming scope.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned for unknown names, and for handles whose
	// object has been deleted.
	ErrNotFound = errors.New("not found")

	// ErrIOFailure is returned when the storage backend fails to read,
	// write or commit.
	ErrIOFailure = errors.New("i/o failure")

	// ErrInvalidArgument is returned for zero-size dimensions, out of range
	// selections and malformed option values.
	ErrInvalidArgument = errors.New("invalid argument")
)
