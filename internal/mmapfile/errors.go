package mmapfile

import "errors"

// Errors returned by mmapfile operations.
var (
	// ErrClosed indicates an operation was attempted on a closed MappedFile.
	ErrClosed = errors.New("mmapfile: file is closed")
)
