// Package coreerr defines the error taxonomy shared across the editing
// core's packages (spec §7): every arithmetic or boundary failure in
// mmapfile, piecetable, lineindex and buffer reports one of these four
// kinds so a caller can errors.Is against a single shared vocabulary
// instead of per-package sentinels. File-system and mapping failures have
// no sentinel here; they are returned as the wrapped os or unix error.
package coreerr

import "errors"

var (
	// ErrOverflow indicates a checked arithmetic operation on byte counts
	// or line indices would overflow. The operation is aborted before any
	// state is mutated.
	ErrOverflow = errors.New("vellum: arithmetic overflow")

	// ErrOutOfBounds indicates a query or mutation referenced a position
	// past the end of the document or past the bounds of a tree node.
	ErrOutOfBounds = errors.New("vellum: index out of bounds")

	// ErrConversion indicates a narrowing conversion (e.g. uint64 to int)
	// could not represent the value on this platform.
	ErrConversion = errors.New("vellum: value does not fit target type")

	// ErrMissingPath indicates Save was called on a buffer with no
	// associated file path.
	ErrMissingPath = errors.New("vellum: no file path associated with buffer")
)
