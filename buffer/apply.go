package buffer

import (
	"fmt"
	"time"

	"github.com/iw2rmb/loom/clock"
)

// ApplyOps incorporates operations produced by other replicas. Operations
// whose causal dependencies are missing are deferred and retried after each
// later batch, so delivery order between replicas does not matter as long as
// each replica's own operations arrive in order.
func (b *Buffer) ApplyOps(ops ...Operation) error {
	wasDirty := b.IsDirty()
	old := b.version.Clone()

	var deferred []Operation
	for _, op := range ops {
		if b.canApplyOp(op) {
			if err := b.applyOp(op); err != nil {
				return err
			}
		} else {
			b.deferredReplicas[op.ReplicaID()] = struct{}{}
			deferred = append(deferred, op)
		}
	}
	b.deferredOps.insert(deferred...)
	if err := b.flushDeferredOps(); err != nil {
		return err
	}

	b.didEdit(old, wasDirty)
	return nil
}

func (b *Buffer) applyOp(op Operation) error {
	switch op := op.(type) {
	case EditOperation:
		if !b.version.Observed(op.ID) {
			if err := b.applyEdit(op); err != nil {
				return err
			}
			b.version.Observe(op.ID)
			b.history.push(op)
		}
	case UndoOperation:
		if !b.version.Observed(op.ID) {
			if err := b.applyUndo(op); err != nil {
				return err
			}
			b.version.Observe(op.ID)
			b.lamportClock.Observe(op.Lamport())
		}
	case UpdateSelectionsOperation:
		if op.Removed {
			delete(b.selections, op.SetID)
		} else {
			b.selections[op.SetID] = op.Selections
		}
		b.lamportClock.Observe(op.Lamport())
		b.selectionsLastUpdate++
	default:
		return fmt.Errorf("%w: unknown operation type %T", ErrInvalidOperation, op)
	}
	return nil
}

// applyEdit replays a remote edit. The edited range is identified by
// (insertion, offset) endpoints, translated through the split index to the
// fragments currently holding them; the new text is placed ahead of any
// concurrent insertion at the same point with a lower lamport timestamp, so
// all replicas order concurrent insertions identically.
func (b *Buffer) applyEdit(op EditOperation) error {
	startFragID, err := b.splits.resolveFragmentID(op.StartID, int(op.StartOffset), seekLeft)
	if err != nil {
		return err
	}
	endFragID, err := b.splits.resolveFragmentID(op.EndID, int(op.EndOffset), seekLeft)
	if err != nil {
		return err
	}

	lamport := op.Lamport()
	newText := op.NewText
	pendingText := newText != ""

	out, rest := splitAtID(b.fragments, startFragID)

	// When the edit starts exactly at the end of the start fragment nothing
	// in it changes; step past it.
	if !rest.IsEmpty() && int(op.StartOffset) == rest.PeekFirst().end {
		out = out.AddLast(rest.PeekFirst())
		rest = rest.RemoveFirst()
	}

	for !rest.IsEmpty() {
		f := rest.PeekFirst()
		if !pendingText && f.id.Compare(endFragID) > 0 {
			break
		}
		rest = rest.RemoveFirst()
		g := f.clone()

		if g.id.Compare(startFragID) == 0 || g.id.Compare(endFragID) == 0 {
			splitStart := g.start
			if g.id.Compare(startFragID) == 0 {
				splitStart = int(op.StartOffset)
			}
			splitEnd := g.end
			if g.id.Compare(endFragID) == 0 {
				splitEnd = int(op.EndOffset)
			}
			prev := out.PeekLast()
			before, within, after := b.splitFragment(prev, g, splitStart, splitEnd)

			var inserted *fragment
			if pendingText {
				insPrev := before
				if insPrev == nil {
					insPrev = prev
				}
				insNext := within
				if insNext == nil {
					insNext = after
				}
				inserted = b.buildFragmentToInsert(insPrev, insNext, newText, op.ID, lamport)
				pendingText = false
			}

			if before != nil {
				out = out.AddLast(before)
			}
			if inserted != nil {
				out = out.AddLast(inserted)
			}
			if within != nil {
				if within.wasVisible(op.VersionInRange, b.undos) {
					within.addDeletion(op.ID)
					within.visible = false
				}
				out = out.AddLast(within)
			}
			if after != nil {
				out = out.AddLast(after)
			}
		} else {
			if pendingText && lamport.Cmp(g.insertion.lamport) > 0 {
				out = out.AddLast(b.buildFragmentToInsert(out.PeekLast(), g, newText, op.ID, lamport))
				pendingText = false
			}

			if g.id.Compare(endFragID) < 0 && g.wasVisible(op.VersionInRange, b.undos) {
				g.addDeletion(op.ID)
				g.visible = false
			}
			out = out.AddLast(g)
		}
	}

	if pendingText {
		out = out.AddLast(b.buildFragmentToInsert(out.PeekLast(), nil, newText, op.ID, lamport))
	}

	b.fragments = out.Concat(rest)
	b.localClock.Observe(op.ID)
	b.lamportClock.Observe(lamport)
	return nil
}

// applyUndo re-evaluates the visibility of every fragment the undone edit
// touched. Counts are absolute, so replaying undos in any order converges.
func (b *Buffer) applyUndo(undo UndoOperation) error {
	b.undos.insert(undo)
	edit, ok := b.history.ops[undo.EditID]
	if !ok {
		return fmt.Errorf("%w: undo of unknown edit %v", ErrInvalidOperation, undo.EditID)
	}

	if edit.StartID == edit.EndID && edit.StartOffset == edit.EndOffset {
		// Pure insertion: visit exactly the fragments the inserted text has
		// been split into.
		splits, ok := b.splits.get(undo.EditID)
		if !ok {
			return fmt.Errorf("%w: undo of unknown insertion %v", ErrInvalidOperation, undo.EditID)
		}
		out := newFragTree()
		rest := b.fragments
		var done bool
		splits.Each(func(s insertionSplit) bool {
			l, r := splitAtID(rest, s.fragmentID)
			if r.IsEmpty() {
				done = true
				return false
			}
			g := r.PeekFirst().clone()
			r = r.RemoveFirst()
			g.visible = g.isVisible(b.undos)
			g.maxUndos.Observe(undo.ID)
			out = out.Concat(l).AddLast(g)
			rest = r
			return true
		})
		if done {
			return fmt.Errorf("%w: missing fragment for insertion %v", ErrInvalidOperation, undo.EditID)
		}
		b.fragments = out.Concat(rest)
		return nil
	}

	startFragID, err := b.splits.resolveFragmentID(edit.StartID, int(edit.StartOffset), seekLeft)
	if err != nil {
		return err
	}
	endFragID, err := b.splits.resolveFragmentID(edit.EndID, int(edit.EndOffset), seekLeft)
	if err != nil {
		return err
	}

	out, rest := splitAtID(b.fragments, startFragID)
	for !rest.IsEmpty() {
		f := rest.PeekFirst()
		if f.id.Compare(endFragID) > 0 {
			break
		}
		rest = rest.RemoveFirst()
		g := f.clone()
		if edit.VersionInRange.Observed(g.insertion.id) || g.insertion.id == undo.EditID {
			g.visible = g.isVisible(b.undos)
			g.maxUndos.Observe(undo.ID)
		}
		out = out.AddLast(g)
	}
	b.fragments = out.Concat(rest)
	return nil
}

// flushDeferredOps retries every deferred operation in lamport order after
// new state arrives.
func (b *Buffer) flushDeferredOps() error {
	clear(b.deferredReplicas)
	var stillDeferred []Operation
	for _, op := range b.deferredOps.drain() {
		if b.canApplyOp(op) {
			if err := b.applyOp(op); err != nil {
				return err
			}
		} else {
			b.deferredReplicas[op.ReplicaID()] = struct{}{}
			stillDeferred = append(stillDeferred, op)
		}
	}
	b.deferredOps.insert(stillDeferred...)
	return nil
}

// canApplyOp reports whether every id the operation references has been
// observed. Operations from a replica with earlier deferred operations are
// held back too, preserving per-replica order.
func (b *Buffer) canApplyOp(op Operation) bool {
	if _, blocked := b.deferredReplicas[op.ReplicaID()]; blocked {
		return false
	}
	switch op := op.(type) {
	case EditOperation:
		return b.version.Observed(op.StartID) &&
			b.version.Observed(op.EndID) &&
			op.VersionInRange.LessOrEqual(b.version)
	case UndoOperation:
		return b.version.Observed(op.EditID)
	case UpdateSelectionsOperation:
		for _, sel := range op.Selections {
			for _, a := range []Anchor{sel.Start, sel.End} {
				if a.Kind == AnchorMiddle && !b.version.Observed(a.InsertionID) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

// Undo reverts the most recent transaction and returns the operations to
// replicate the reversal.
func (b *Buffer) Undo() ([]Operation, error) {
	wasDirty := b.IsDirty()
	old := b.version.Clone()

	var ops []Operation
	if t := b.history.popUndo(); t != nil {
		for _, editID := range t.edits {
			op, err := b.undoOrRedo(editID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		if sel := t.selectionsBefore; sel != nil {
			b.restoreSelections(sel)
		}
	}

	b.didEdit(old, wasDirty)
	return ops, nil
}

// Redo reapplies the most recently undone transaction.
func (b *Buffer) Redo() ([]Operation, error) {
	wasDirty := b.IsDirty()
	old := b.version.Clone()

	var ops []Operation
	if t := b.history.popRedo(); t != nil {
		for _, editID := range t.edits {
			op, err := b.undoOrRedo(editID)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		if sel := t.selectionsAfter; sel != nil {
			b.restoreSelections(sel)
		}
	}

	b.didEdit(old, wasDirty)
	return ops, nil
}

// undoOrRedo flips the parity of one edit by issuing the next undo count.
func (b *Buffer) undoOrRedo(editID clock.Local) (Operation, error) {
	undo := UndoOperation{
		ID:     b.localClock.Tick(),
		EditID: editID,
		Count:  b.undos.undoCount(editID) + 1,
	}
	if err := b.applyUndo(undo); err != nil {
		return nil, err
	}
	b.version.Observe(undo.ID)
	undo.LamportTime = b.lamportClock.Tick().Value
	return undo, nil
}

// StartTransaction opens an undo transaction. Transactions nest; only the
// outermost one creates an undo stack entry. If setID is non-nil that
// selection set is captured and restored when the transaction is undone.
func (b *Buffer) StartTransaction(setID *SelectionSetID) error {
	return b.startTransactionAt(setID, b.now())
}

func (b *Buffer) startTransactionAt(setID *SelectionSetID, now time.Time) error {
	captured, err := b.captureSelections(setID)
	if err != nil {
		return err
	}
	b.history.startTransaction(b.version.Clone(), b.IsDirty(), captured, now)
	return nil
}

// EndTransaction closes the innermost transaction and merges it with the
// previous undo entry when the edits landed close together in time.
func (b *Buffer) EndTransaction(setID *SelectionSetID) error {
	return b.endTransactionAt(setID, b.now())
}

func (b *Buffer) endTransactionAt(setID *SelectionSetID, now time.Time) error {
	captured, err := b.captureSelections(setID)
	if err != nil {
		return err
	}
	if t := b.history.endTransaction(captured, now); t != nil {
		old := t.start
		wasDirty := t.bufferWasDirty
		b.history.group()
		b.didEdit(old, wasDirty)
	}
	return nil
}

func (b *Buffer) captureSelections(setID *SelectionSetID) (*capturedSelections, error) {
	if setID == nil {
		return nil, nil
	}
	selections, ok := b.selections[*setID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelectionSet, *setID)
	}
	return &capturedSelections{setID: *setID, selections: selections}, nil
}
