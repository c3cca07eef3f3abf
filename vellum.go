// Package vellum is a text-editor editing core: a piece table over a
// memory-mapped original buffer, a B-tree line index kept in lockstep
// with it, and a two-level undo/redo history recording user-visible
// transactions over individual piece-table edits (spec §1, §3).
//
// Document is the facade a UI host drives: it owns a TextBuffer, a
// History, and the current Cursor, and is the only type UI code needs to
// import for ordinary editing.
package vellum

import (
	"fmt"

	"github.com/dshills/vellum/internal/buffer"
	"github.com/dshills/vellum/internal/coreerr"
	"github.com/dshills/vellum/internal/cursor"
	"github.com/dshills/vellum/internal/history"
)

// Re-exported error sentinels (spec §7) so callers can errors.Is against
// this package without reaching into internal/coreerr directly.
var (
	ErrOverflow    = coreerr.ErrOverflow
	ErrOutOfBounds = coreerr.ErrOutOfBounds
	ErrConversion  = coreerr.ErrConversion
	ErrMissingPath = coreerr.ErrMissingPath
)

// Position and Cursor are re-exported so callers never need to import
// internal/cursor directly.
type (
	Position = cursor.Position
	Cursor   = cursor.Cursor
)

// Document is the high-level facade described in spec §4.5: the unique
// owner of a TextBuffer, a History, and a Cursor, with is_recording
// suppressing history capture while undo/redo replays a transaction.
type Document struct {
	buf         *buffer.TextBuffer
	hist        history.History
	cursor      cursor.Cursor
	isRecording bool
}

// New creates an empty, in-memory document.
func New(opts ...Option) (*Document, error) {
	buf, err := buffer.New()
	if err != nil {
		return nil, err
	}
	return newDocument(buf, opts), nil
}

// NewWithText creates a document whose initial content is text.
func NewWithText(text string, opts ...Option) (*Document, error) {
	buf, err := buffer.NewWithText(text)
	if err != nil {
		return nil, err
	}
	return newDocument(buf, opts), nil
}

// Open creates a document whose buffer holds the contents of path.
func Open(path string, opts ...Option) (*Document, error) {
	buf, err := buffer.Open(path)
	if err != nil {
		return nil, err
	}
	return newDocument(buf, opts), nil
}

func newDocument(buf *buffer.TextBuffer, opts []Option) *Document {
	d := &Document{
		buf:         buf,
		cursor:      cursor.New(0, 0),
		isRecording: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cursor returns the document's current cursor and selection.
func (d *Document) Cursor() cursor.Cursor {
	return d.cursor
}

// SetCursor overwrites the document's cursor without affecting history.
func (d *Document) SetCursor(c cursor.Cursor) {
	d.cursor = c
}

// Insert inserts text at the cursor, replacing any selection, and records
// the edit to history (spec §4.5 "insert").
func (d *Document) Insert(text string) error {
	cursorBefore := d.cursor

	selectionText, err := d.buf.GetCursorSelection(d.cursor)
	if err != nil {
		return err
	}
	rangeStart, rangeEnd := d.cursor.Range()

	// Resolve the pre-edit byte range before mutating: once buf.Insert
	// runs, the line index no longer agrees with these (row, col) pairs.
	startOff, ok := d.buf.PointToAbsOffset(rangeStart.Row, rangeStart.Column)
	if !ok {
		return fmt.Errorf("vellum: insert range start: %w", coreerr.ErrOutOfBounds)
	}
	var endOff uint64
	if selectionText != "" {
		endOff, ok = d.buf.PointToAbsOffset(rangeEnd.Row, rangeEnd.Column)
		if !ok {
			return fmt.Errorf("vellum: insert range end: %w", coreerr.ErrOutOfBounds)
		}
	}

	endPos, err := d.buf.Insert(d.cursor, text)
	if err != nil {
		return err
	}
	cursorAfter := cursor.New(endPos.Row, endPos.Column)

	if d.isRecording {
		if selectionText != "" {
			d.hist.RecordReplace(startOff, endOff, selectionText, text, cursorBefore, cursorAfter)
		} else {
			d.hist.RecordInsert(startOff, text, cursorBefore, cursorAfter)
		}
	}

	d.cursor = cursorAfter
	return nil
}

// Delete performs a backspace (isBackspace) or forward-delete and records
// a Delete transaction if text was actually removed (spec §4.5 "delete").
func (d *Document) Delete(isBackspace bool) error {
	cursorBefore := d.cursor

	var startOff, endOff uint64
	var haveSelection bool
	if !d.cursor.NoSelection() {
		haveSelection = true
		selStart, selEnd := d.cursor.Range()
		startOff, _ = d.buf.PointToAbsOffset(selStart.Row, selStart.Column)
		endOff, _ = d.buf.PointToAbsOffset(selEnd.Row, selEnd.Column)
	} else {
		headOff, ok := d.buf.PointToAbsOffset(d.cursor.Head.Row, d.cursor.Head.Column)
		if !ok {
			return fmt.Errorf("vellum: delete head position: %w", coreerr.ErrOutOfBounds)
		}
		if isBackspace {
			endOff = headOff
		} else {
			startOff = headOff
		}
	}

	var newPos cursor.Position
	var deletedText string
	var err error
	if isBackspace {
		newPos, deletedText, err = d.buf.Backspace(d.cursor)
	} else {
		newPos, deletedText, err = d.buf.DeleteForward(d.cursor)
	}
	if err != nil {
		return err
	}
	cursorAfter := cursor.New(newPos.Row, newPos.Column)

	if !haveSelection && deletedText != "" {
		if isBackspace {
			startOff = endOff - uint64(len(deletedText))
		} else {
			endOff = startOff + uint64(len(deletedText))
		}
	}

	if d.isRecording && deletedText != "" {
		d.hist.RecordDelete(startOff, endOff, deletedText, cursorBefore, cursorAfter)
	}

	d.cursor = cursorAfter
	return nil
}

// Undo pops the most recent transaction and replays its actions in
// reverse against the buffer, restoring the cursor captured before the
// transaction began. It is a no-op if there is nothing to undo.
func (d *Document) Undo() error {
	tx, ok := d.hist.PopUndo()
	if !ok {
		return nil
	}
	return d.replay(tx, true)
}

// Redo pops the most recently undone transaction and replays its actions
// in original order, restoring the cursor captured after the transaction.
// It is a no-op if there is nothing to redo.
func (d *Document) Redo() error {
	tx, ok := d.hist.PopRedo()
	if !ok {
		return nil
	}
	return d.replay(tx, false)
}

func (d *Document) replay(tx history.Transaction, isUndo bool) error {
	d.isRecording = false
	defer func() { d.isRecording = true }()

	// tx.Actions aliases the backing array of the copy PopUndo/PopRedo just
	// pushed onto the opposite stack; reversing in place would corrupt that
	// copy's order too, so reverse into a fresh slice instead.
	actions := tx.Actions
	if isUndo {
		reversed := make([]history.EditAction, len(actions))
		for i, a := range actions {
			reversed[len(actions)-1-i] = a
		}
		actions = reversed
	}

	for _, action := range actions {
		if err := d.replayAction(action, isUndo); err != nil {
			return err
		}
	}

	if isUndo {
		d.cursor = tx.CursorBefore
	} else {
		d.cursor = tx.CursorAfter
	}
	return nil
}

func (d *Document) replayAction(action history.EditAction, isUndo bool) error {
	switch action.Kind {
	case history.ActionInsert:
		if isUndo {
			return d.buf.DeleteAt(action.Start, uint64(len(action.Text)))
		}
		return d.buf.InsertAt(action.Start, action.Text)
	case history.ActionDelete:
		if isUndo {
			return d.buf.InsertAt(action.Start, action.Text)
		}
		return d.buf.DeleteAt(action.Start, action.End-action.Start)
	default:
		return fmt.Errorf("vellum: unknown action kind %d", action.Kind)
	}
}

// GetLine returns the full bytes of lineIdx including its trailing
// newline, if any.
func (d *Document) GetLine(lineIdx int) (string, bool) {
	return d.buf.GetLine(lineIdx)
}

// GetLineStripped is GetLine with a trailing line terminator removed.
func (d *Document) GetLineStripped(lineIdx int) (string, bool) {
	return d.buf.GetLineStripped(lineIdx)
}

// GetLineCount returns the total line count.
func (d *Document) GetLineCount() int {
	return d.buf.LineCount()
}

// GetVisibleLineLenAt returns lineIdx's length excluding its terminal
// newline.
func (d *Document) GetVisibleLineLenAt(lineIdx int) (uint64, bool) {
	return d.buf.GetVisibleLineLenAt(lineIdx)
}

// GetSelectedText returns the cursor's selection text, or "" if there is
// no selection.
func (d *Document) GetSelectedText() (string, error) {
	return d.buf.GetCursorSelection(d.cursor)
}

// Save writes the buffer to its associated path.
func (d *Document) Save() error {
	return d.buf.Save()
}

// SaveAs writes the buffer to path and associates it with future Saves.
func (d *Document) SaveAs(path string) error {
	return d.buf.SaveAs(path)
}

// Close releases the document's underlying file mapping.
func (d *Document) Close() error {
	return d.buf.Close()
}
