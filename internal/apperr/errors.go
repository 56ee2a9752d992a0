// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrTimeout     = errors.New("timed out")
	ErrProtocol    = errors.New("protocol error")
	ErrUnavailable = errors.New("service unavailable")
)
