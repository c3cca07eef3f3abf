// Package buffer implements the spec §4.4 TextBuffer: the pairing of a
// PieceTable (bytes) and a BTreeLineIndex (derived line/offset view) under
// a single mutator, plus file lifecycle (open/save) and line-ending
// detection.
package buffer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dshills/vellum/internal/coreerr"
	"github.com/dshills/vellum/internal/cursor"
	"github.com/dshills/vellum/internal/lineindex"
	"github.com/dshills/vellum/internal/mmapfile"
	"github.com/dshills/vellum/internal/piecetable"
)

// LineEnding is the detected terminator style of a buffer's original
// content (spec §4.4). Detection is advisory: it never rewrites bytes on
// its own.
type LineEnding uint8

const (
	// LineEndingLF is a bare '\n'.
	LineEndingLF LineEnding = iota
	// LineEndingCRLF is "\r\n".
	LineEndingCRLF
)

// detectLineEnding reports CRLF iff the first newline in data is preceded
// by '\r'; a lone '\r' with no following '\n' is treated as LF (spec
// §4.4).
func detectLineEnding(data []byte) LineEnding {
	i := bytes.IndexByte(data, '\n')
	if i > 0 && data[i-1] == '\r' {
		return LineEndingCRLF
	}
	return LineEndingLF
}

// TextBuffer owns a PieceTable and its paired BTreeLineIndex, and the file
// lifecycle (temp-backed scratch buffer, open, atomic save) described in
// spec §4.4.
type TextBuffer struct {
	pieces     *piecetable.PieceTable
	lines      *lineindex.BTreeLineIndex
	original   *mmapfile.MappedFile
	filepath   string
	hasPath    bool
	lineEnding LineEnding
	isDirty    bool
	tempFile   string // backing temp file for an unsaved new() buffer; "" if none
}

func fromMapped(mf *mmapfile.MappedFile) (*TextBuffer, error) {
	lines, err := lineindex.Build(mf.AsSlice())
	if err != nil {
		return nil, err
	}
	return &TextBuffer{
		pieces:     piecetable.New(mf, 0),
		lines:      lines,
		original:   mf,
		lineEnding: detectLineEnding(mf.AsSlice()),
	}, nil
}

// New creates an empty buffer backed by a scratch temp file, so an
// unsaved document still has a mapped "original" to anchor its piece
// table.
func New() (*TextBuffer, error) {
	return NewWithText("")
}

// NewWithText creates a buffer whose initial content is text, backed by a
// scratch temp file holding that text.
func NewWithText(text string) (*TextBuffer, error) {
	f, err := os.CreateTemp("", "vellum-scratch-*")
	if err != nil {
		return nil, fmt.Errorf("buffer: create scratch file: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("buffer: write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("buffer: close scratch file: %w", err)
	}

	mf, err := mmapfile.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	tb, err := fromMapped(mf)
	if err != nil {
		mf.Close()
		os.Remove(path)
		return nil, err
	}
	tb.tempFile = path
	return tb, nil
}

// Open maps path and builds a buffer from its current contents.
func Open(path string) (*TextBuffer, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}
	tb, err := fromMapped(mf)
	if err != nil {
		mf.Close()
		return nil, err
	}
	tb.filepath = path
	tb.hasPath = true
	return tb, nil
}

// Len returns the total document length in bytes.
func (tb *TextBuffer) Len() uint64 {
	return tb.pieces.Len()
}

// IsDirty reports whether the buffer has unsaved mutations.
func (tb *TextBuffer) IsDirty() bool {
	return tb.isDirty
}

// LineEnding returns the buffer's detected line-ending style.
func (tb *TextBuffer) LineEnding() LineEnding {
	return tb.lineEnding
}

// LineCount returns the line index's line count.
func (tb *TextBuffer) LineCount() int {
	return tb.lines.LineCount()
}

// PointToAbsOffset resolves (row, col) to an absolute byte offset,
// returning false if col exceeds that row's line length (spec §4.4).
func (tb *TextBuffer) PointToAbsOffset(row uint32, col uint32) (uint64, bool) {
	lineStart, ok := tb.lines.LineToByteOffset(int(row))
	if !ok {
		return 0, false
	}
	lineLen, ok := tb.lines.GetLineLengthAt(int(row))
	if !ok {
		return 0, false
	}
	if uint64(col) > lineLen {
		return 0, false
	}
	return lineStart + uint64(col), true
}

// GetLine returns the full bytes of lineIdx including its trailing
// newline, if any.
func (tb *TextBuffer) GetLine(lineIdx int) (string, bool) {
	start, ok := tb.lines.LineToByteOffset(lineIdx)
	if !ok {
		return "", false
	}
	length, ok := tb.lines.GetLineLengthAt(lineIdx)
	if !ok {
		return "", false
	}
	data, err := tb.pieces.GetBytesAt(start, length)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// GetLineStripped is GetLine with a trailing "\r\n" or "\n" removed.
func (tb *TextBuffer) GetLineStripped(lineIdx int) (string, bool) {
	line, ok := tb.GetLine(lineIdx)
	if !ok {
		return "", false
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
	}
	return line, true
}

// GetVisibleLineLenAt returns lineIdx's length excluding its terminal
// newline, used by the UI for column clamping.
func (tb *TextBuffer) GetVisibleLineLenAt(lineIdx int) (uint64, bool) {
	length, ok := tb.lines.GetLineLengthAt(lineIdx)
	if !ok {
		return 0, false
	}
	line, ok := tb.GetLine(lineIdx)
	if !ok {
		return 0, false
	}
	if length > 0 && line[len(line)-1] == '\n' {
		length--
	}
	return length, true
}

// getTextAt returns the text of [start, start+length) for recording
// deleted text before a mutation.
func (tb *TextBuffer) getTextAt(start, length uint64) (string, error) {
	data, err := tb.pieces.GetBytesAt(start, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// calculateEndPosition computes the 2D position reached after inserting
// text starting at start (spec §4.4 "insert" post-insert position).
func calculateEndPosition(start cursor.Position, text string) cursor.Position {
	nlCount := uint32(bytes.Count([]byte(text), []byte{'\n'}))
	if nlCount == 0 {
		return cursor.NewPosition(start.Row, start.Column+uint32(len(text)))
	}
	lastNL := bytes.LastIndexByte([]byte(text), '\n')
	lastSegLen := uint32(len(text) - lastNL - 1)
	return cursor.NewPosition(start.Row+nlCount, lastSegLen)
}

// applyInsert performs the paired PieceTable/LineIndex insert at
// absOffset with identical offset and length, per the §5 ordering
// guarantee: piece table first, line index second.
func (tb *TextBuffer) applyInsert(absOffset uint64, text []byte) error {
	if err := tb.pieces.Insert(absOffset, text); err != nil {
		return err
	}
	if err := tb.lines.Insert(absOffset, text); err != nil {
		return err
	}
	tb.isDirty = true
	return nil
}

// applyDelete performs the paired PieceTable/LineIndex delete at
// absOffset of length bytes.
func (tb *TextBuffer) applyDelete(absOffset, length uint64) error {
	if err := tb.pieces.Delete(absOffset, length); err != nil {
		return err
	}
	if err := tb.lines.Remove(absOffset, length); err != nil {
		return err
	}
	tb.isDirty = true
	return nil
}

// InsertAt applies an insert at an absolute byte offset directly,
// bypassing cursor/selection resolution. It is used by history replay,
// which records byte offsets rather than cursor positions.
func (tb *TextBuffer) InsertAt(absOffset uint64, text string) error {
	return tb.applyInsert(absOffset, []byte(text))
}

// DeleteAt applies a delete of length bytes starting at an absolute byte
// offset directly, bypassing cursor/selection resolution. It is used by
// history replay.
func (tb *TextBuffer) DeleteAt(absOffset, length uint64) error {
	return tb.applyDelete(absOffset, length)
}

// GetCursorSelection returns the selected text, or "" if c has no
// selection.
func (tb *TextBuffer) GetCursorSelection(c cursor.Cursor) (string, error) {
	if c.NoSelection() {
		return "", nil
	}
	start, end := c.Range()
	startOff, ok := tb.PointToAbsOffset(start.Row, start.Column)
	if !ok {
		return "", fmt.Errorf("buffer: selection start: %w", coreerr.ErrOutOfBounds)
	}
	endOff, ok := tb.PointToAbsOffset(end.Row, end.Column)
	if !ok {
		return "", fmt.Errorf("buffer: selection end: %w", coreerr.ErrOutOfBounds)
	}
	return tb.getTextAt(startOff, endOff-startOff)
}

// Insert inserts text at c's position (deleting any selection first) and
// returns the resulting head position (spec §4.4).
func (tb *TextBuffer) Insert(c cursor.Cursor, text string) (cursor.Position, error) {
	pos := c.Head
	if !c.NoSelection() {
		var err error
		pos, err = tb.DeleteSelection(c)
		if err != nil {
			return cursor.Position{}, err
		}
	}

	absOffset, ok := tb.PointToAbsOffset(pos.Row, pos.Column)
	if !ok {
		return cursor.Position{}, fmt.Errorf("buffer: insert position: %w", coreerr.ErrOutOfBounds)
	}

	if err := tb.applyInsert(absOffset, []byte(text)); err != nil {
		return cursor.Position{}, err
	}

	return calculateEndPosition(pos, text), nil
}

// DeleteSelection removes c's selection (normalized), returning the
// resulting head position (the selection's start).
func (tb *TextBuffer) DeleteSelection(c cursor.Cursor) (cursor.Position, error) {
	start, end := c.Range()
	startOff, ok := tb.PointToAbsOffset(start.Row, start.Column)
	if !ok {
		return cursor.Position{}, fmt.Errorf("buffer: selection start: %w", coreerr.ErrOutOfBounds)
	}
	endOff, ok := tb.PointToAbsOffset(end.Row, end.Column)
	if !ok {
		return cursor.Position{}, fmt.Errorf("buffer: selection end: %w", coreerr.ErrOutOfBounds)
	}
	if endOff > startOff {
		if err := tb.applyDelete(startOff, endOff-startOff); err != nil {
			return cursor.Position{}, err
		}
	}
	return start, nil
}

// Backspace deletes one position before c.Head, wrapping onto the
// previous row's newline when at column 0; at (0,0) it is a no-op (spec
// §4.4). It returns the new head position and the text removed, if any.
func (tb *TextBuffer) Backspace(c cursor.Cursor) (cursor.Position, string, error) {
	if !c.NoSelection() {
		removed, err := tb.GetCursorSelection(c)
		if err != nil {
			return cursor.Position{}, "", err
		}
		pos, err := tb.DeleteSelection(c)
		if err != nil {
			return cursor.Position{}, "", err
		}
		return pos, removed, nil
	}

	head := c.Head
	if head.Row == 0 && head.Column == 0 {
		return head, "", nil
	}

	var newPos cursor.Position
	if head.Column > 0 {
		newPos = cursor.NewPosition(head.Row, head.Column-1)
	} else {
		prevLen, ok := tb.lines.GetLineLengthAt(int(head.Row - 1))
		if !ok {
			return cursor.Position{}, "", fmt.Errorf("buffer: backspace previous line: %w", coreerr.ErrOutOfBounds)
		}
		newPos = cursor.NewPosition(head.Row-1, uint32(prevLen-1))
	}

	startOff, ok := tb.PointToAbsOffset(newPos.Row, newPos.Column)
	if !ok {
		return cursor.Position{}, "", fmt.Errorf("buffer: backspace start: %w", coreerr.ErrOutOfBounds)
	}
	endOff, ok := tb.PointToAbsOffset(head.Row, head.Column)
	if !ok {
		return cursor.Position{}, "", fmt.Errorf("buffer: backspace end: %w", coreerr.ErrOutOfBounds)
	}

	removed, err := tb.getTextAt(startOff, endOff-startOff)
	if err != nil {
		return cursor.Position{}, "", err
	}
	if err := tb.applyDelete(startOff, endOff-startOff); err != nil {
		return cursor.Position{}, "", err
	}

	return newPos, removed, nil
}

// DeleteForward deletes one position after c.Head, spanning to column 0
// of the next row when at the row's last column; at end-of-document it is
// a no-op (spec §4.4). It returns the new head position (unchanged) and
// the text removed, if any.
func (tb *TextBuffer) DeleteForward(c cursor.Cursor) (cursor.Position, string, error) {
	if !c.NoSelection() {
		removed, err := tb.GetCursorSelection(c)
		if err != nil {
			return cursor.Position{}, "", err
		}
		pos, err := tb.DeleteSelection(c)
		if err != nil {
			return cursor.Position{}, "", err
		}
		return pos, removed, nil
	}

	head := c.Head
	startOff, ok := tb.PointToAbsOffset(head.Row, head.Column)
	if !ok {
		return cursor.Position{}, "", fmt.Errorf("buffer: delete-forward start: %w", coreerr.ErrOutOfBounds)
	}
	if startOff >= tb.Len() {
		return head, "", nil
	}

	lineLen, ok := tb.lines.GetLineLengthAt(int(head.Row))
	if !ok {
		return cursor.Position{}, "", fmt.Errorf("buffer: delete-forward line: %w", coreerr.ErrOutOfBounds)
	}

	var endOff uint64
	if uint64(head.Column) < lineLen {
		endOff = startOff + 1
	} else {
		nextLineStart, ok := tb.lines.LineToByteOffset(int(head.Row + 1))
		if !ok {
			return head, "", nil
		}
		endOff = nextLineStart
	}

	removed, err := tb.getTextAt(startOff, endOff-startOff)
	if err != nil {
		return cursor.Position{}, "", err
	}
	if err := tb.applyDelete(startOff, endOff-startOff); err != nil {
		return cursor.Position{}, "", err
	}

	return head, removed, nil
}

// Save writes the buffer to its associated filepath using the atomic
// write-temp-then-rename protocol of spec §6, then remaps and collapses
// the piece table. It fails with coreerr.ErrMissingPath if no filepath is
// set.
func (tb *TextBuffer) Save() error {
	if !tb.hasPath {
		return fmt.Errorf("buffer: save: %w", coreerr.ErrMissingPath)
	}
	return tb.saveTo(tb.filepath)
}

// SaveAs sets the buffer's filepath, discards any scratch temp backing,
// and delegates to Save.
func (tb *TextBuffer) SaveAs(path string) error {
	tb.filepath = path
	tb.hasPath = true
	if tb.tempFile != "" {
		os.Remove(tb.tempFile)
		tb.tempFile = ""
	}
	return tb.saveTo(path)
}

func (tb *TextBuffer) saveTo(path string) error {
	dir := filepath.Dir(path)
	tmpName := filepath.Join(dir, ".save_tmp_"+uuid.NewString())

	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("buffer: create temp file: %w", err)
	}

	var chunkWriteErr error
	iterErr := tb.pieces.IterBytes(func(chunk []byte) bool {
		if _, err := f.Write(chunk); err != nil {
			chunkWriteErr = err
			return false
		}
		return true
	})
	if err := firstNonNil(iterErr, chunkWriteErr); err != nil {
		f.Close()
		os.Remove(tmpName)
		return fmt.Errorf("buffer: write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpName)
		return fmt.Errorf("buffer: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("buffer: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("buffer: rename temp file: %w", err)
	}

	newMapped, err := mmapfile.Open(path)
	if err != nil {
		return err
	}

	oldMapped := tb.original
	tb.original = newMapped
	tb.pieces.ResetToMapped(newMapped)
	oldMapped.Close()

	lines, err := lineindex.Build(newMapped.AsSlice())
	if err != nil {
		return err
	}
	tb.lines = lines

	tb.isDirty = false
	return nil
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// RebuildIndex rebuilds the line index from scratch by re-scanning the
// piece table's current bytes. It is the O(n) fallback of spec §9 for a
// caller that suspects an incremental update has drifted from the piece
// table. Open and Save build their index with lineindex.Build over the
// mapped bytes directly; nothing in this package calls RebuildIndex.
func (tb *TextBuffer) RebuildIndex() error {
	data, err := tb.pieces.GetBytesAt(0, tb.pieces.Len())
	if err != nil {
		return err
	}
	lines, err := lineindex.Build(data)
	if err != nil {
		return err
	}
	tb.lines = lines
	return nil
}

// Close releases the buffer's mapped file and any scratch temp backing.
func (tb *TextBuffer) Close() error {
	err := tb.original.Close()
	if tb.tempFile != "" {
		os.Remove(tb.tempFile)
	}
	return err
}
