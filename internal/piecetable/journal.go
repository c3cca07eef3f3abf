package piecetable

import "github.com/dshills/vellum/internal/piece"

// editKind discriminates the two journal entry shapes.
type editKind uint8

const (
	editInsert editKind = iota
	editDelete
)

// edit is one entry in the piece-level undo/redo journal (spec §3's
// "low-level piece journal"). Delete records the exact pieces that were
// removed, including sub-ranges created by splitting, so that undo restores
// the precise pre-edit piece layout (spec §9 "Middle-split undo").
type edit struct {
	kind editKind

	// Insert fields.
	pos      uint64
	addStart uint64
	addEnd   uint64

	// Delete fields.
	delLen  uint64
	removed []piece.Piece
}
