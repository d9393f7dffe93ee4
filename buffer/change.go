package buffer

import (
	"iter"

	"github.com/iw2rmb/loom/clock"
)

// Edit describes one contiguous change between two states of the buffer:
// the bytes at Old in the earlier state were replaced by the bytes at New in
// the later state.
type Edit struct {
	Old Range
	New Range
}

// Delta is the change in buffer length this edit caused.
func (e Edit) Delta() int {
	return e.New.Len() - e.Old.Len()
}

// OldLen is the number of bytes the edit removed.
func (e Edit) OldLen() int {
	return e.Old.Len()
}

// NewLen is the number of bytes the edit inserted.
func (e Edit) NewLen() int {
	return e.New.Len()
}

// EditsSince yields the changes separating the buffer's current text from
// its text at the given version, in document order. Old ranges are offsets
// into the text at since; New ranges are offsets into the current text.
// Adjacent changes are coalesced. The sequence reads buffer state captured
// at the call, so it stays valid across later edits.
func (b *Buffer) EditsSince(since clock.Global) iter.Seq[Edit] {
	fragments := b.fragments
	undos := b.undos
	changed := b.version.ChangedSince(since)
	return func(yield func(Edit) bool) {
		if !changed {
			return
		}
		var change *Edit
		newOffset := 0
		delta := 0
		rest := fragments
		for !rest.IsEmpty() {
			// Runs whose accumulated version is contained in since cannot
			// hold a visibility flip; they only shift the offset.
			skipped, touched := rest.Split(func(m fragMeasure) bool {
				return m.maxVersion.ChangedSince(since)
			})
			newOffset += skipped.Measure().text.Bytes
			rest = touched
			if rest.IsEmpty() {
				break
			}
			f := rest.PeekFirst()
			rest = rest.RemoveFirst()

			inserted := f.visible && !f.wasVisible(since, undos)
			deleted := !f.visible && f.wasVisible(since, undos)
			if inserted || deleted {
				if change != nil && change.New.End != newOffset {
					if !yield(*change) {
						return
					}
					change = nil
				}
				if change == nil {
					oldOffset := newOffset - delta
					change = &Edit{
						Old: Range{Start: oldOffset, End: oldOffset},
						New: Range{Start: newOffset, End: newOffset},
					}
				}
				if inserted {
					change.New.End += f.len()
					delta += f.len()
				} else {
					change.Old.End += f.len()
					delta -= f.len()
				}
			}
			newOffset += f.visibleLen()
		}
		if change != nil {
			yield(*change)
		}
	}
}
