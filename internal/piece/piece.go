// Package piece defines the Piece and BufferKind types shared between the
// piece table and its undo/redo journal (spec §3).
package piece

// BufferKind identifies which backing buffer a Piece's range refers into.
type BufferKind uint8

const (
	// Original identifies the read-only memory-mapped backing buffer.
	Original BufferKind = iota
	// Add identifies the append-only in-memory add buffer.
	Add
)

// String returns a human-readable name, used by tests and debug output.
func (k BufferKind) String() string {
	switch k {
	case Original:
		return "Original"
	case Add:
		return "Add"
	default:
		return "Unknown"
	}
}

// Piece is a (buffer, [Start,End)) span. A piece never spans buffers; a
// piece with Len() == 0 must not exist after a mutation completes.
type Piece struct {
	BufKind BufferKind
	Start   uint64
	End     uint64
}

// Len returns the number of bytes this piece covers.
func (p Piece) Len() uint64 {
	return p.End - p.Start
}

// IsEmpty reports whether the piece covers zero bytes.
func (p Piece) IsEmpty() bool {
	return p.Start == p.End
}
