// Package history implements the two-level undo/redo journal of spec
// §4.5: a stack of user-visible Transactions, each batching one or two
// byte-level EditActions, with adjacency batching so runs of ordinary
// typing collapse into a single undo step.
package history

import (
	"strings"

	"github.com/dshills/vellum/internal/cursor"
)

// ActionKind discriminates an EditAction's byte-level effect.
type ActionKind uint8

const (
	// ActionInsert records text inserted at Start.
	ActionInsert ActionKind = iota
	// ActionDelete records text removed from [Start, End).
	ActionDelete
)

// EditAction is one byte-level piece-table operation recorded inside a
// Transaction.
type EditAction struct {
	Kind  ActionKind
	Start uint64
	End   uint64 // meaningful for ActionDelete; Insert uses len(Text)
	Text  string
}

// Transaction is one user-visible undoable unit: one or two EditActions
// plus the cursor before and after, so undo/redo can restore the caret
// along with the text.
type Transaction struct {
	Actions      []EditAction
	CursorBefore cursor.Cursor
	CursorAfter  cursor.Cursor
}

// History is the undo/redo stack pair. The zero value is ready to use.
type History struct {
	Undo []Transaction
	Redo []Transaction
}

func singleRow(cb, ca cursor.Cursor) bool {
	return cb.Head.Row == ca.Head.Row
}

// RecordInsert appends an Insert action at pos, batching it into the top
// transaction's trailing Insert when: that action's range ends exactly at
// pos, neither text contains a newline, and both edits are on the same
// row (spec §4.5.1). Otherwise it pushes a new transaction. Any recording
// clears the redo stack.
func (h *History) RecordInsert(pos uint64, text string, cb, ca cursor.Cursor) {
	defer func() { h.Redo = nil }()

	if n := len(h.Undo); n > 0 {
		top := &h.Undo[n-1]
		if m := len(top.Actions); m > 0 {
			last := &top.Actions[m-1]
			if last.Kind == ActionInsert &&
				last.Start+uint64(len(last.Text)) == pos &&
				!strings.Contains(last.Text, "\n") &&
				!strings.Contains(text, "\n") &&
				singleRow(top.CursorBefore, ca) {
				last.Text += text
				top.CursorAfter = ca
				return
			}
		}
	}

	h.Undo = append(h.Undo, Transaction{
		Actions:      []EditAction{{Kind: ActionInsert, Start: pos, Text: text}},
		CursorBefore: cb,
		CursorAfter:  ca,
	})
}

// RecordDelete appends a Delete action over [start,end), batching it into
// the top transaction's trailing Delete when both are single-row, neither
// text contains a newline, and either end meets the previous action's
// start (backspace: prepend and extend leftward) or start meets the
// previous action's start (forward-delete: append and extend rightward)
// (spec §4.5.1). Otherwise it pushes a new transaction. Any recording
// clears the redo stack.
func (h *History) RecordDelete(start, end uint64, text string, cb, ca cursor.Cursor) {
	defer func() { h.Redo = nil }()

	if n := len(h.Undo); n > 0 {
		top := &h.Undo[n-1]
		if m := len(top.Actions); m > 0 {
			last := &top.Actions[m-1]
			if last.Kind == ActionDelete &&
				!strings.Contains(last.Text, "\n") &&
				!strings.Contains(text, "\n") &&
				singleRow(top.CursorBefore, ca) {
				switch {
				case end == last.Start:
					last.Text = text + last.Text
					last.Start = start
					top.CursorAfter = ca
					return
				case start == last.Start:
					last.Text += text
					last.End += (end - start)
					top.CursorAfter = ca
					return
				}
			}
		}
	}

	h.Undo = append(h.Undo, Transaction{
		Actions:      []EditAction{{Kind: ActionDelete, Start: start, End: end, Text: text}},
		CursorBefore: cb,
		CursorAfter:  ca,
	})
}

// RecordReplace always pushes a new transaction containing a Delete
// followed by an Insert, so one undo reverses the whole replacement
// (spec §4.5.1). Any recording clears the redo stack.
func (h *History) RecordReplace(start, end uint64, deletedText, insertedText string, cb, ca cursor.Cursor) {
	defer func() { h.Redo = nil }()

	h.Undo = append(h.Undo, Transaction{
		Actions: []EditAction{
			{Kind: ActionDelete, Start: start, End: end, Text: deletedText},
			{Kind: ActionInsert, Start: start, Text: insertedText},
		},
		CursorBefore: cb,
		CursorAfter:  ca,
	})
}

// PopUndo removes and returns the most recent transaction, moving it onto
// the redo stack. ok is false when there is nothing to undo.
func (h *History) PopUndo() (Transaction, bool) {
	n := len(h.Undo)
	if n == 0 {
		return Transaction{}, false
	}
	t := h.Undo[n-1]
	h.Undo = h.Undo[:n-1]
	h.Redo = append(h.Redo, t)
	return t, true
}

// PopRedo removes and returns the most recently undone transaction,
// moving it back onto the undo stack. ok is false when there is nothing
// to redo.
func (h *History) PopRedo() (Transaction, bool) {
	n := len(h.Redo)
	if n == 0 {
		return Transaction{}, false
	}
	t := h.Redo[n-1]
	h.Redo = h.Redo[:n-1]
	h.Undo = append(h.Undo, t)
	return t, true
}
