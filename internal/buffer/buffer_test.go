package buffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/vellum/internal/cursor"
)

func TestNewWithTextBuildsIndex(t *testing.T) {
	tb, err := NewWithText("hello\nworld")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	if tb.Len() != uint64(len("hello\nworld")) {
		t.Fatalf("Len = %d", tb.Len())
	}
	if tb.LineCount() != 2 {
		t.Fatalf("LineCount = %d, want 2", tb.LineCount())
	}
	if tb.IsDirty() {
		t.Fatalf("fresh buffer should not be dirty")
	}
}

func TestDetectLineEndingCRLF(t *testing.T) {
	tb, err := NewWithText("a\r\nb")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()
	if tb.LineEnding() != LineEndingCRLF {
		t.Fatalf("LineEnding = %v, want CRLF", tb.LineEnding())
	}
}

func TestInsertSplitScenario(t *testing.T) {
	tb, err := NewWithText("hello world")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 6)
	if _, err := tb.Insert(c, "cruel "); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	line, ok := tb.GetLine(0)
	if !ok || line != "hello cruel world" {
		t.Fatalf("got %q, ok=%v", line, ok)
	}
	if tb.LineCount() != 1 {
		t.Fatalf("LineCount = %d, want 1", tb.LineCount())
	}
	if tb.Len() != 17 {
		t.Fatalf("Len = %d, want 17", tb.Len())
	}
	if !tb.IsDirty() {
		t.Fatalf("expected dirty after insert")
	}
}

func TestInsertNewlineUpdatesLineIndex(t *testing.T) {
	tb, err := NewWithText("")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 0)
	if _, err := tb.Insert(c, "ab\ncd"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if tb.LineCount() != 2 {
		t.Fatalf("LineCount = %d, want 2", tb.LineCount())
	}
	line0, _ := tb.GetLine(0)
	line1, _ := tb.GetLine(1)
	if line0 != "ab\n" || line1 != "cd" {
		t.Fatalf("lines = %q, %q", line0, line1)
	}
}

func TestMultiLineDeleteWithMerge(t *testing.T) {
	tb, err := NewWithText("Line1\nLine2\nLine3\n")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 4)
	if _, _, err := tb.deleteRange(c, 8); err != nil {
		t.Fatalf("deleteRange: %v", err)
	}

	line0, ok := tb.GetLine(0)
	if !ok || line0 != "LineLine3\n" {
		t.Fatalf("got %q, ok=%v", line0, ok)
	}
	if tb.LineCount() != 2 {
		t.Fatalf("LineCount = %d, want 2", tb.LineCount())
	}
}

// deleteRange is a test-only helper that deletes length bytes starting at
// c.Head via the package's paired apply path, mirroring what Document
// would do for an explicit-range deletion.
func (tb *TextBuffer) deleteRange(c cursor.Cursor, length uint64) (cursor.Position, string, error) {
	startOff, ok := tb.PointToAbsOffset(c.Head.Row, c.Head.Column)
	if !ok {
		return cursor.Position{}, "", os.ErrInvalid
	}
	removed, err := tb.getTextAt(startOff, length)
	if err != nil {
		return cursor.Position{}, "", err
	}
	if err := tb.applyDelete(startOff, length); err != nil {
		return cursor.Position{}, "", err
	}
	return c.Head, removed, nil
}

func TestBackspaceAcrossLineBoundary(t *testing.T) {
	tb, err := NewWithText("A\nB")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(1, 0)
	newPos, removed, err := tb.Backspace(c)
	if err != nil {
		t.Fatalf("Backspace: %v", err)
	}
	if removed != "\n" {
		t.Fatalf("removed = %q, want newline", removed)
	}
	if newPos != cursor.NewPosition(0, 1) {
		t.Fatalf("newPos = %+v, want (0,1)", newPos)
	}
	line, ok := tb.GetLine(0)
	if !ok || line != "AB" {
		t.Fatalf("got %q", line)
	}
	if tb.LineCount() != 1 {
		t.Fatalf("LineCount = %d, want 1", tb.LineCount())
	}
}

func TestBackspaceAtOriginIsNoOp(t *testing.T) {
	tb, err := NewWithText("abc")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 0)
	newPos, removed, err := tb.Backspace(c)
	if err != nil {
		t.Fatalf("Backspace: %v", err)
	}
	if removed != "" {
		t.Fatalf("removed = %q, want empty", removed)
	}
	if newPos != cursor.NewPosition(0, 0) {
		t.Fatalf("newPos = %+v, want (0,0)", newPos)
	}
}

func TestDeleteForwardAtEndOfDocumentIsNoOp(t *testing.T) {
	tb, err := NewWithText("abc")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 3)
	newPos, removed, err := tb.DeleteForward(c)
	if err != nil {
		t.Fatalf("DeleteForward: %v", err)
	}
	if removed != "" {
		t.Fatalf("removed = %q, want empty", removed)
	}
	if newPos != cursor.NewPosition(0, 3) {
		t.Fatalf("newPos = %+v, want (0,3)", newPos)
	}
}

func TestDeleteForwardSpansNewline(t *testing.T) {
	tb, err := NewWithText("A\nB")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 1)
	_, removed, err := tb.DeleteForward(c)
	if err != nil {
		t.Fatalf("DeleteForward: %v", err)
	}
	if removed != "\n" {
		t.Fatalf("removed = %q, want newline", removed)
	}
	line, ok := tb.GetLine(0)
	if !ok || line != "AB" {
		t.Fatalf("got %q", line)
	}
}

func TestSaveWritesAndRemaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")

	tb, err := NewWithText("hello")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	if err := tb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if tb.IsDirty() {
		t.Fatalf("expected clean after save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("saved content = %q", data)
	}

	c := cursor.New(0, 5)
	if _, err := tb.Insert(c, " world"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tb.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data2, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data2) != "hello world" {
		t.Fatalf("saved content = %q", data2)
	}
}

func TestSaveWithoutPathFails(t *testing.T) {
	tb, err := NewWithText("x")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	if err := tb.Save(); err == nil {
		t.Fatalf("expected error saving without a path")
	}
}

func TestRebuildIndexMatchesIncremental(t *testing.T) {
	tb, err := NewWithText("one\ntwo\nthree")
	if err != nil {
		t.Fatalf("NewWithText: %v", err)
	}
	defer tb.Close()

	c := cursor.New(0, 3)
	if _, err := tb.Insert(c, "!\nnew"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	before := tb.LineCount()

	if err := tb.RebuildIndex(); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	if tb.LineCount() != before {
		t.Fatalf("LineCount after rebuild = %d, want %d", tb.LineCount(), before)
	}
}
