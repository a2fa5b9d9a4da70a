// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrMalformed indicates a source record is missing fields it is required
// to carry. Raised at queue-construction time, never during replay.
var ErrMalformed = errors.New("malformed record")
