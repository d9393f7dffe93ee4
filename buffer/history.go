package buffer

import (
	"time"

	"github.com/iw2rmb/loom/clock"
)

// defaultUndoGroupInterval groups transactions whose edits land within this
// window into a single undo step.
const defaultUndoGroupInterval = 300 * time.Millisecond

// undoMap records every undo operation applied against each edit id. Undo
// parity (count % 2) decides visibility; recomputing parity as of a past
// version is what lets undo commute with concurrent edits.
type undoMap struct {
	ops map[clock.Local][]UndoOperation
}

func newUndoMap() *undoMap {
	return &undoMap{ops: make(map[clock.Local][]UndoOperation)}
}

func (m *undoMap) insert(undo UndoOperation) {
	m.ops[undo.EditID] = append(m.ops[undo.EditID], undo)
}

// undoCount returns the highest undo count recorded for an edit.
func (m *undoMap) undoCount(editID clock.Local) uint32 {
	var max uint32
	for _, u := range m.ops[editID] {
		if u.Count > max {
			max = u.Count
		}
	}
	return max
}

func (m *undoMap) isUndone(editID clock.Local) bool {
	return m.undoCount(editID)%2 == 1
}

// wasUndone recomputes undo parity considering only undos observed by
// version.
func (m *undoMap) wasUndone(editID clock.Local, version clock.Global) bool {
	var max uint32
	for _, u := range m.ops[editID] {
		if version.Observed(u.ID) && u.Count > max {
			max = u.Count
		}
	}
	return max%2 == 1
}

// transaction is one undoable step: the edits it performed plus enough
// context to restore selections and report dirtiness.
type transaction struct {
	start            clock.Global
	bufferWasDirty   bool
	edits            []clock.Local
	selectionsBefore *capturedSelections
	selectionsAfter  *capturedSelections
	firstEditAt      time.Time
	lastEditAt       time.Time
}

type capturedSelections struct {
	setID      SelectionSetID
	selections []Selection
}

// history is the local operation log plus the undo/redo stacks. Remote
// replicas never see it; only the Operations derived from it.
type history struct {
	baseText         string
	ops              map[clock.Local]EditOperation
	undoStack        []*transaction
	redoStack        []*transaction
	transactionDepth int
	groupInterval    time.Duration
}

func newHistory(baseText string, groupInterval time.Duration) *history {
	if groupInterval <= 0 {
		groupInterval = defaultUndoGroupInterval
	}
	return &history{
		baseText:      baseText,
		ops:           make(map[clock.Local]EditOperation),
		groupInterval: groupInterval,
	}
}

func (h *history) push(op EditOperation) {
	h.ops[op.ID] = op
}

func (h *history) startTransaction(start clock.Global, wasDirty bool, selections *capturedSelections, now time.Time) {
	h.transactionDepth++
	if h.transactionDepth == 1 {
		h.undoStack = append(h.undoStack, &transaction{
			start:            start,
			bufferWasDirty:   wasDirty,
			selectionsBefore: selections,
			firstEditAt:      now,
			lastEditAt:       now,
		})
	}
}

// endTransaction closes the innermost transaction; the outermost close
// returns it so the caller can decide whether anything happened.
func (h *history) endTransaction(selections *capturedSelections, now time.Time) *transaction {
	if h.transactionDepth == 0 {
		panic("buffer: endTransaction without startTransaction")
	}
	h.transactionDepth--
	if h.transactionDepth != 0 {
		return nil
	}
	t := h.undoStack[len(h.undoStack)-1]
	t.selectionsAfter = selections
	t.lastEditAt = now
	return t
}

// group merges the latest transaction into its predecessor when their edits
// fall within the group interval.
func (h *history) group() {
	n := len(h.undoStack)
	if n < 2 {
		return
	}
	last := h.undoStack[n-1]
	prev := h.undoStack[n-2]
	if last.firstEditAt.Sub(prev.lastEditAt) > h.groupInterval {
		return
	}
	prev.edits = append(prev.edits, last.edits...)
	prev.lastEditAt = last.lastEditAt
	prev.selectionsAfter = last.selectionsAfter
	h.undoStack = h.undoStack[:n-1]
}

func (h *history) pushUndo(editID clock.Local) {
	if h.transactionDepth == 0 {
		panic("buffer: edit outside a transaction")
	}
	t := h.undoStack[len(h.undoStack)-1]
	t.edits = append(t.edits, editID)
}

func (h *history) popUndo() *transaction {
	if len(h.undoStack) == 0 {
		return nil
	}
	t := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = append(h.redoStack, t)
	return t
}

func (h *history) popRedo() *transaction {
	if len(h.redoStack) == 0 {
		return nil
	}
	t := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = append(h.undoStack, t)
	return t
}
