package lineindex

import "errors"

// ErrEmptyChildren indicates an internal node was reached with no children,
// which should be unreachable under the invariants in spec §4.3.
var ErrEmptyChildren = errors.New("lineindex: internal node has no children")
