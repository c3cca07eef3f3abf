// Package piecetable implements the piece table described in spec §3 and
// §4.2: an append-only edit log over a read-only memory-mapped "original"
// buffer plus an in-memory "add" buffer, giving O(1) amortized inserts and
// deletes without ever rewriting the original bytes.
package piecetable

import (
	"fmt"

	"github.com/dshills/vellum/internal/coreerr"
	"github.com/dshills/vellum/internal/mmapfile"
	"github.com/dshills/vellum/internal/piece"
)

// DefaultAddBufferCapacity is the baseline capacity the add buffer is
// preallocated to (spec §4.2: "implementation-chosen, e.g. 4 KiB") so that
// small interactive typing sessions never trigger a reallocation.
const DefaultAddBufferCapacity = 4096

// PieceTable is the document's byte-level edit log: the ordered
// concatenation of its pieces is the visible document.
type PieceTable struct {
	original *mmapfile.MappedFile
	add      []byte
	pieces   []piece.Piece

	undoJournal []edit
	redoJournal []edit

	baselineCap int
}

// New produces a table whose sole piece covers the whole of original when
// the file is non-empty; an empty file yields an empty piece list. The add
// buffer is preallocated to baselineCap bytes (DefaultAddBufferCapacity if
// baselineCap <= 0).
func New(original *mmapfile.MappedFile, baselineCap int) *PieceTable {
	if baselineCap <= 0 {
		baselineCap = DefaultAddBufferCapacity
	}

	var pieces []piece.Piece
	if !original.IsEmpty() {
		pieces = []piece.Piece{{
			BufKind: piece.Original,
			Start:   0,
			End:     uint64(original.Len()),
		}}
	}

	return &PieceTable{
		original:    original,
		add:         make([]byte, 0, baselineCap),
		pieces:      pieces,
		baselineCap: baselineCap,
	}
}

// Len returns the total document length in bytes.
func (pt *PieceTable) Len() uint64 {
	var n uint64
	for _, p := range pt.pieces {
		n += p.Len()
	}
	return n
}

// IsEmpty reports whether the document has zero length.
func (pt *PieceTable) IsEmpty() bool {
	return len(pt.pieces) == 0 || pt.Len() == 0
}

// Locate scans pieces accumulating length until pos falls within a piece or
// at a piece boundary, returning (pieceIndex, intraPieceOffset). It returns
// (len(pieces), 0) when pos equals the document length (spec §4.2).
func (pt *PieceTable) Locate(pos uint64) (idx int, offset uint64) {
	if pos == pt.Len() {
		return len(pt.pieces), 0
	}
	for i, p := range pt.pieces {
		pl := p.Len()
		if pos <= pl {
			return i, pos
		}
		pos -= pl
	}
	return len(pt.pieces), 0
}

func (pt *PieceTable) sliceOf(p piece.Piece, start, end uint64) ([]byte, error) {
	s, e := int(start), int(end)
	if uint64(s) != start || uint64(e) != end {
		return nil, fmt.Errorf("piecetable: slice bounds: %w", coreerr.ErrConversion)
	}
	switch p.BufKind {
	case piece.Original:
		return pt.original.GetBytesClamped(s, e-s), nil
	default:
		if s < 0 || e > len(pt.add) || s > e {
			return nil, fmt.Errorf("piecetable: add buffer slice: %w", coreerr.ErrOutOfBounds)
		}
		return pt.add[s:e], nil
	}
}

// mergeOrContinue attempts to coalesce a would-be new piece with its
// immediate left neighbor when both reference the same buffer and are
// byte-adjacent (spec §3: "Adjacent pieces with identical buf_kind and
// prev.end == next.start should be coalesced at insertion time"). Returns
// true if the caller must still insert a distinct piece.
func (pt *PieceTable) mergeOrContinue(idx int, offset uint64, kind piece.BufferKind, start, end uint64) bool {
	var prevIdx int
	hasPrev := false

	switch {
	case idx == len(pt.pieces) || offset == 0:
		if idx > 0 {
			prevIdx, hasPrev = idx-1, true
		}
	case offset == pt.pieces[idx].Len():
		prevIdx, hasPrev = idx, true
	}

	if hasPrev {
		prev := &pt.pieces[prevIdx]
		if prev.BufKind == kind && prev.End == start {
			prev.End = end
			return false
		}
	}
	return true
}

func (pt *PieceTable) insertNoHistory(pos uint64, kind piece.BufferKind, start, end uint64) error {
	idx, offset := pt.Locate(pos)

	if !pt.mergeOrContinue(idx, offset, kind, start, end) {
		return nil
	}

	newPiece := piece.Piece{BufKind: kind, Start: start, End: end}

	switch {
	case idx == len(pt.pieces):
		pt.pieces = append(pt.pieces, newPiece)
		return nil
	case offset == 0:
		pt.pieces = append(pt.pieces, piece.Piece{})
		copy(pt.pieces[idx+1:], pt.pieces[idx:])
		pt.pieces[idx] = newPiece
		return nil
	}

	old := pt.pieces[idx]
	if offset == old.Len() {
		pt.pieces = append(pt.pieces, piece.Piece{})
		copy(pt.pieces[idx+2:], pt.pieces[idx+1:])
		pt.pieces[idx+1] = newPiece
		return nil
	}

	splitPoint := old.Start + offset
	if splitPoint > old.End {
		return fmt.Errorf("piecetable: insert split point: %w", coreerr.ErrOverflow)
	}

	left := piece.Piece{BufKind: old.BufKind, Start: old.Start, End: splitPoint}
	right := piece.Piece{BufKind: old.BufKind, Start: splitPoint, End: old.End}

	replacement := []piece.Piece{left, newPiece, right}
	tail := append([]piece.Piece{}, pt.pieces[idx+1:]...)
	pt.pieces = append(pt.pieces[:idx], replacement...)
	pt.pieces = append(pt.pieces, tail...)

	return nil
}

// Insert appends bytes to the add buffer and splices a new Add piece into
// pieces at pos, coalescing with an adjacent Add piece when possible, and
// splitting any piece pos falls inside of (spec §4.2). It returns
// coreerr.ErrOutOfBounds if pos exceeds the document length.
func (pt *PieceTable) Insert(pos uint64, bytes []byte) error {
	if len(bytes) == 0 {
		return nil
	}
	if pos > pt.Len() {
		return fmt.Errorf("piecetable: insert at %d: %w", pos, coreerr.ErrOutOfBounds)
	}

	start := uint64(len(pt.add))
	end := start + uint64(len(bytes))
	if end < start {
		return fmt.Errorf("piecetable: add buffer growth: %w", coreerr.ErrOverflow)
	}

	pt.add = append(pt.add, bytes...)
	if err := pt.insertNoHistory(pos, piece.Add, start, end); err != nil {
		return err
	}

	pt.undoJournal = append(pt.undoJournal, edit{
		kind: editInsert, pos: pos, addStart: start, addEnd: end,
	})
	pt.redoJournal = pt.redoJournal[:0]

	return nil
}

func (pt *PieceTable) deleteNoHistory(pos, length uint64) ([]piece.Piece, error) {
	idx, offset := pt.Locate(pos)
	var removed []piece.Piece

	for length > 0 && idx < len(pt.pieces) {
		p := pt.pieces[idx]
		pieceLen := p.Len()
		deleteStart := offset
		deleteEnd := deleteStart + length
		if deleteEnd > pieceLen {
			deleteEnd = pieceLen
		}
		removeLen := deleteEnd - deleteStart

		switch {
		case deleteStart == 0 && deleteEnd == pieceLen:
			removed = append(removed, p)
			pt.pieces = append(pt.pieces[:idx], pt.pieces[idx+1:]...)

		case deleteStart == 0:
			removed = append(removed, piece.Piece{
				BufKind: p.BufKind, Start: p.Start, End: p.Start + removeLen,
			})
			pt.pieces[idx].Start += removeLen

		case deleteEnd == pieceLen:
			newStart := p.End - removeLen
			removed = append(removed, piece.Piece{
				BufKind: p.BufKind, Start: newStart, End: p.End,
			})
			pt.pieces[idx].End -= removeLen
			idx++

		default:
			removed = append(removed, piece.Piece{
				BufKind: p.BufKind, Start: p.Start + deleteStart, End: p.Start + deleteEnd,
			})
			left := piece.Piece{BufKind: p.BufKind, Start: p.Start, End: p.Start + deleteStart}
			right := piece.Piece{BufKind: p.BufKind, Start: p.Start + deleteEnd, End: p.End}

			tail := append([]piece.Piece{}, pt.pieces[idx+1:]...)
			pt.pieces = append(pt.pieces[:idx], left, right)
			pt.pieces = append(pt.pieces, tail...)
			idx++
		}

		length -= removeLen
		offset = 0
	}

	return removed, nil
}

// Delete removes length bytes starting at pos, walking every piece it
// touches and applying one of four cases per piece: full-remove,
// shrink-left, shrink-right, or middle-split (spec §4.2). The exact pieces
// removed are appended to the journal so undo can restore them verbatim.
func (pt *PieceTable) Delete(pos, length uint64) error {
	if length == 0 {
		return nil
	}

	removed, err := pt.deleteNoHistory(pos, length)
	if err != nil {
		return err
	}

	pt.undoJournal = append(pt.undoJournal, edit{
		kind: editDelete, pos: pos, delLen: length, removed: removed,
	})
	pt.redoJournal = pt.redoJournal[:0]

	return nil
}

// Undo pops one entry from the undo journal and replays its inverse using
// the primitive insert/delete helpers, which do not touch either journal.
// It is a no-op when the undo journal is empty.
func (pt *PieceTable) Undo() error {
	if len(pt.undoJournal) == 0 {
		return nil
	}
	last := len(pt.undoJournal) - 1
	e := pt.undoJournal[last]
	pt.undoJournal = pt.undoJournal[:last]

	switch e.kind {
	case editInsert:
		if _, err := pt.deleteNoHistory(e.pos, e.addEnd-e.addStart); err != nil {
			return err
		}
	case editDelete:
		pos := e.pos
		for _, p := range e.removed {
			if err := pt.insertNoHistory(pos, p.BufKind, p.Start, p.End); err != nil {
				return err
			}
			pos += p.Len()
		}
	}

	pt.redoJournal = append(pt.redoJournal, e)
	return nil
}

// Redo pops one entry from the redo journal and replays it forward. It is
// a no-op when the redo journal is empty.
func (pt *PieceTable) Redo() error {
	if len(pt.redoJournal) == 0 {
		return nil
	}
	last := len(pt.redoJournal) - 1
	e := pt.redoJournal[last]
	pt.redoJournal = pt.redoJournal[:last]

	switch e.kind {
	case editInsert:
		if err := pt.insertNoHistory(e.pos, piece.Add, e.addStart, e.addEnd); err != nil {
			return err
		}
		pt.undoJournal = append(pt.undoJournal, e)
	case editDelete:
		removed, err := pt.deleteNoHistory(e.pos, e.delLen)
		if err != nil {
			return err
		}
		e.removed = removed
		pt.undoJournal = append(pt.undoJournal, e)
	}

	return nil
}

// GetBytesAt concatenates slices from the touched pieces into a fresh
// byte slice.
func (pt *PieceTable) GetBytesAt(pos, length uint64) ([]byte, error) {
	out := make([]byte, 0, length)

	for _, p := range pt.pieces {
		pieceLen := p.Len()
		if pos >= pieceLen {
			pos -= pieceLen
			continue
		}

		start := p.Start + pos
		take := pieceLen - pos
		if take > length {
			take = length
		}

		chunk, err := pt.sliceOf(p, start, start+take)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)

		length -= take
		if length == 0 {
			break
		}
		pos = 0
	}

	return out, nil
}

// IterBytes calls yield with each piece's byte slice in document order,
// stopping early if yield returns false. It is the zero-copy path used by
// save and by display (spec §4.2).
func (pt *PieceTable) IterBytes(yield func([]byte) bool) error {
	for _, p := range pt.pieces {
		chunk, err := pt.sliceOf(p, p.Start, p.End)
		if err != nil {
			return err
		}
		if !yield(chunk) {
			return nil
		}
	}
	return nil
}

// ResetToMapped replaces the original buffer, shrinks the add buffer back
// to its baseline capacity, collapses pieces to a single Original piece
// covering the new file, and clears both journals. It is invoked only after
// a successful save and is not itself undoable (spec §4.2, §9).
func (pt *PieceTable) ResetToMapped(newOriginal *mmapfile.MappedFile) {
	pt.original = newOriginal
	pt.add = make([]byte, 0, pt.baselineCap)

	if newOriginal.IsEmpty() {
		pt.pieces = nil
	} else {
		pt.pieces = []piece.Piece{{
			BufKind: piece.Original,
			Start:   0,
			End:     uint64(newOriginal.Len()),
		}}
	}

	pt.undoJournal = nil
	pt.redoJournal = nil
}
