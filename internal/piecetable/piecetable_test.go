package piecetable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/vellum/internal/mmapfile"
	"github.com/dshills/vellum/internal/piece"
)

func openTemp(t *testing.T, content string) *mmapfile.MappedFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	mf, err := mmapfile.Open(path)
	if err != nil {
		t.Fatalf("mmapfile.Open: %v", err)
	}
	t.Cleanup(func() { mf.Close() })
	return mf
}

func textOf(t *testing.T, pt *PieceTable) string {
	t.Helper()
	got, err := pt.GetBytesAt(0, pt.Len())
	if err != nil {
		t.Fatalf("GetBytesAt: %v", err)
	}
	return string(got)
}

func TestNewEmptyFile(t *testing.T) {
	mf := openTemp(t, "")
	pt := New(mf, 0)
	if !pt.IsEmpty() {
		t.Fatalf("expected empty table")
	}
	if pt.Len() != 0 {
		t.Fatalf("Len = %d, want 0", pt.Len())
	}
}

func TestInsertAtStartMiddleEnd(t *testing.T) {
	mf := openTemp(t, "hello world")
	pt := New(mf, 0)

	if err := pt.Insert(5, []byte(",")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := textOf(t, pt); got != "hello, world" {
		t.Fatalf("got %q", got)
	}

	if err := pt.Insert(0, []byte(">>")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := textOf(t, pt); got != ">>hello, world" {
		t.Fatalf("got %q", got)
	}

	if err := pt.Insert(uint64(len(">>hello, world")), []byte("!")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := textOf(t, pt); got != ">>hello, world!" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertCoalescesAdjacentAddPieces(t *testing.T) {
	mf := openTemp(t, "ac")
	pt := New(mf, 0)

	if err := pt.Insert(1, []byte("b")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := pt.Insert(2, []byte("x")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := textOf(t, pt); got != "abxc" {
		t.Fatalf("got %q", got)
	}
	if len(pt.pieces) != 3 {
		t.Fatalf("expected coalesced Add pieces to yield 3 pieces, got %d: %+v", len(pt.pieces), pt.pieces)
	}
}

func TestDeleteFullShrinkSplit(t *testing.T) {
	mf := openTemp(t, "hello cruel world")
	pt := New(mf, 0)

	// Middle split: "hello| cruel|world".
	if err := pt.Delete(5, 6); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q", got)
	}

	// Shrink-left of the first piece: "he" goes.
	if err := pt.Delete(0, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != "llo world" {
		t.Fatalf("got %q after shrink-left", got)
	}

	// Shrink-right of the second piece: "ld" goes.
	if err := pt.Delete(7, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != "llo wor" {
		t.Fatalf("got %q after shrink-right", got)
	}

	// Full removal of the first piece.
	if err := pt.Delete(0, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != " wor" {
		t.Fatalf("got %q after full remove", got)
	}
	if len(pt.pieces) != 1 {
		t.Fatalf("expected 1 piece after full remove, got %d: %+v", len(pt.pieces), pt.pieces)
	}
}

func TestDeleteMiddleSplitPreservesProvenance(t *testing.T) {
	mf := openTemp(t, "0123456789")
	pt := New(mf, 0)

	if err := pt.Delete(3, 4); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != "012789" {
		t.Fatalf("got %q", got)
	}
	want := []piece.Piece{
		{BufKind: piece.Original, Start: 0, End: 3},
		{BufKind: piece.Original, Start: 7, End: 10},
	}
	if len(pt.pieces) != len(want) || pt.pieces[0] != want[0] || pt.pieces[1] != want[1] {
		t.Fatalf("pieces after split = %+v, want %+v", pt.pieces, want)
	}
	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "0123456789" {
		t.Fatalf("got %q after undo, want original", got)
	}
	for _, p := range pt.pieces {
		if p.BufKind != piece.Original {
			t.Fatalf("piece %+v after undo does not reference the original buffer", p)
		}
	}
}

func TestUndoRedoInsert(t *testing.T) {
	mf := openTemp(t, "hello")
	pt := New(mf, 0)

	if err := pt.Insert(5, []byte(" world")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q", got)
	}

	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "hello" {
		t.Fatalf("got %q after undo", got)
	}

	if err := pt.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q after redo", got)
	}
}

func TestUndoRedoDelete(t *testing.T) {
	mf := openTemp(t, "hello world")
	pt := New(mf, 0)

	if err := pt.Delete(5, 6); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := textOf(t, pt); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q after undo", got)
	}
	if err := pt.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := textOf(t, pt); got != "hello" {
		t.Fatalf("got %q after redo", got)
	}
}

// TestUndoRedoMultipleInserts regression-tests a historical bug in the
// reference implementation this table is grounded on, where redo
// recomputed an insert's add-buffer range from the add buffer's current
// length instead of using the range recorded in the journal. Three
// inserts, two undos and two redos must reproduce the exact text at every
// step.
func TestUndoRedoMultipleInserts(t *testing.T) {
	mf := openTemp(t, "")
	pt := New(mf, 0)

	steps := []struct {
		pos   uint64
		bytes string
	}{
		{0, "a"},
		{1, "b"},
		{2, "c"},
	}
	for _, s := range steps {
		if err := pt.Insert(s.pos, []byte(s.bytes)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if got := textOf(t, pt); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}

	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "ab" {
		t.Fatalf("got %q after 1 undo, want ab", got)
	}

	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "a" {
		t.Fatalf("got %q after 2 undo, want a", got)
	}

	if err := pt.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := textOf(t, pt); got != "ab" {
		t.Fatalf("got %q after redo, want ab", got)
	}

	if err := pt.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if got := textOf(t, pt); got != "abc" {
		t.Fatalf("got %q after second redo, want abc", got)
	}
}

func TestUndoRedoEmptyJournalsAreNoOps(t *testing.T) {
	mf := openTemp(t, "x")
	pt := New(mf, 0)

	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo on empty journal: %v", err)
	}
	if err := pt.Redo(); err != nil {
		t.Fatalf("Redo on empty journal: %v", err)
	}
	if got := textOf(t, pt); got != "x" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertOutOfBounds(t *testing.T) {
	mf := openTemp(t, "ab")
	pt := New(mf, 0)
	if err := pt.Insert(3, []byte("x")); err == nil {
		t.Fatalf("expected error for out-of-bounds insert")
	}
}

func TestIterBytesMatchesGetBytesAt(t *testing.T) {
	mf := openTemp(t, "hello world")
	pt := New(mf, 0)
	if err := pt.Insert(5, []byte(" there")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := pt.Delete(0, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var iterated []byte
	err := pt.IterBytes(func(chunk []byte) bool {
		iterated = append(iterated, chunk...)
		return true
	})
	if err != nil {
		t.Fatalf("IterBytes: %v", err)
	}

	got, err := pt.GetBytesAt(0, pt.Len())
	if err != nil {
		t.Fatalf("GetBytesAt: %v", err)
	}
	if string(iterated) != string(got) {
		t.Fatalf("IterBytes %q != GetBytesAt %q", iterated, got)
	}
}

func TestResetToMapped(t *testing.T) {
	mf := openTemp(t, "hello")
	pt := New(mf, 0)
	if err := pt.Insert(5, []byte(" world")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	mf2 := openTemp(t, "hello world")
	pt.ResetToMapped(mf2)

	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q after reset", got)
	}
	if err := pt.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := textOf(t, pt); got != "hello world" {
		t.Fatalf("got %q, expected undo after reset to be a no-op", got)
	}
}
