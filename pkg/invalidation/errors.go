package invalidation

import "errors"

var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("invalidation: bus closed")

	// ErrInvalidEvent is returned for events that name neither a key nor a reset.
	ErrInvalidEvent = errors.New("invalidation: event has no key")

	// ErrNilHandler is returned by Subscribe when the handler is nil.
	ErrNilHandler = errors.New("invalidation: nil handler")
)
