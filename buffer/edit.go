package buffer

import (
	"fmt"

	"github.com/iw2rmb/loom/clock"
)

// Edit replaces each of oldRanges with newText and returns the operations
// to replicate the change. Ranges address the visible text before the edit
// and must be sorted and non-overlapping.
//
// Each range produces one operation; all of them share the same replacement
// text, so multi-cursor typing is a single call.
func (b *Buffer) Edit(oldRanges []Range, newText string) ([]Operation, error) {
	if err := b.checkRanges(oldRanges); err != nil {
		return nil, err
	}

	b.startTransactionAt(nil, b.now())

	// Empty ranges with no replacement text are no-ops.
	ranges := oldRanges
	if newText == "" {
		ranges = make([]Range, 0, len(oldRanges))
		for _, r := range oldRanges {
			if r.End > r.Start {
				ranges = append(ranges, r)
			}
		}
	}

	edits := b.spliceFragments(ranges, newText)
	for _, edit := range edits {
		b.history.push(edit)
		b.history.pushUndo(edit.ID)
	}
	if len(edits) > 0 {
		// Observing the last edit subsumes the earlier ones, since local
		// sequence numbers increase monotonically.
		last := edits[len(edits)-1]
		b.lastEdit = last.ID
		b.version.Observe(last.ID)
	}

	if err := b.endTransactionAt(nil, b.now()); err != nil {
		return nil, err
	}

	ops := make([]Operation, len(edits))
	for i, edit := range edits {
		ops[i] = edit
	}
	return ops, nil
}

func (b *Buffer) checkRanges(ranges []Range) error {
	bufLen := b.Len()
	prevEnd := 0
	for i, r := range ranges {
		if r.Start < 0 || r.End < r.Start || r.End > bufLen {
			return fmt.Errorf("%w: [%d, %d)", ErrOutOfRange, r.Start, r.End)
		}
		if i > 0 && r.Start < prevEnd {
			return fmt.Errorf("%w: overlapping range [%d, %d)", ErrOutOfRange, r.Start, r.End)
		}
		prevEnd = r.End
	}
	return nil
}

// spliceFragments rebuilds the fragment tree around the edited ranges. It
// walks the old tree once: fragments outside every range move over in bulk,
// fragments straddling a boundary split, and fragments inside a deleted
// range are re-marked invisible. Ranges use pre-edit coordinates throughout,
// so offsets never shift mid-walk.
func (b *Buffer) spliceFragments(ranges []Range, newText string) []EditOperation {
	if len(ranges) == 0 {
		return nil
	}

	ops := make([]EditOperation, 0, len(ranges))
	ri := 0

	out, rest := splitAtVisible(b.fragments, ranges[0].Start, seekRight)
	oldOffset := out.Measure().text.Bytes

	var startID, endID clock.Local
	var startOffset, endOffset int
	versionInRange := clock.NewGlobal()

	localTS := b.localClock.Tick()
	lamportTS := b.lamportClock.Tick()

	finishOp := func() {
		ops = append(ops, EditOperation{
			ID:             localTS,
			StartID:        startID,
			StartOffset:    uint32(startOffset),
			EndID:          endID,
			EndOffset:      uint32(endOffset),
			VersionInRange: versionInRange,
			NewText:        newText,
			LamportTime:    lamportTS.Value,
		})
		versionInRange = clock.NewGlobal()
		ri++
		if ri < len(ranges) {
			localTS = b.localClock.Tick()
			lamportTS = b.lamportClock.Tick()
		}
	}

	for ri < len(ranges) && !rest.IsEmpty() {
		f := rest.PeekFirst().clone()
		rest = rest.RemoveFirst()
		fragStart := oldOffset
		fragEnd := fragStart + f.visibleLen()
		fragVersion := f.maxVersion()

		// Detach this insertion's split run so boundary splits can rewrite
		// it in place.
		oldSplits, ok := b.splits.get(f.insertion.id)
		if !ok {
			panic(fmt.Sprintf("buffer: no split table for insertion %v", f.insertion.id))
		}
		newSplits, splitsRest := oldSplits.Split(func(m splitMeasure) bool { return m.extent > f.start })
		splitsRest = splitsRest.RemoveFirst()

		// Handle every range that starts inside this fragment.
		for ri < len(ranges) && ranges[ri].Start < fragEnd {
			r := ranges[ri]
			if r.Start > fragStart {
				prefix := f.clone()
				prefix.end = prefix.start + (r.Start - fragStart)
				prefix.id = between(out.PeekLast().id, f.id)
				f.start = prefix.end
				out = out.AddLast(prefix)
				newSplits = newSplits.AddLast(insertionSplit{extent: prefix.len(), fragmentID: prefix.id})
				fragStart = r.Start
			}

			if r.End == fragStart {
				last := out.PeekLast()
				endID = last.insertion.id
				endOffset = last.end
			} else if r.End == fragEnd {
				endID = f.insertion.id
				endOffset = f.end
			}

			if r.Start == fragStart {
				last := out.PeekLast()
				startID = last.insertion.id
				startOffset = last.end
				if newText != "" {
					out = out.AddLast(b.buildFragmentToInsert(last, f, newText, localTS, lamportTS))
				}
			}

			if r.End < fragEnd {
				if r.End > fragStart {
					prefix := f.clone()
					prefix.end = prefix.start + (r.End - fragStart)
					prefix.id = between(out.PeekLast().id, f.id)
					versionInRange.ObserveAll(fragVersion)
					if f.visible {
						prefix.addDeletion(localTS)
						prefix.visible = false
					}
					f.start = prefix.end
					out = out.AddLast(prefix)
					newSplits = newSplits.AddLast(insertionSplit{extent: prefix.len(), fragmentID: prefix.id})
					fragStart = r.End
					endID = f.insertion.id
					endOffset = f.start
				}
			} else {
				versionInRange.ObserveAll(fragVersion)
				if f.visible {
					f.addDeletion(localTS)
					f.visible = false
				}
			}

			if r.End <= fragEnd {
				finishOp()
			} else {
				break
			}
		}

		newSplits = newSplits.AddLast(insertionSplit{extent: f.len(), fragmentID: f.id})
		b.splits.set(f.insertion.id, newSplits.Concat(splitsRest))
		out = out.AddLast(f)
		oldOffset = fragEnd

		if ri < len(ranges) {
			r := ranges[ri]

			// Consume fragments wholly inside the current deletion.
			for !rest.IsEmpty() {
				g := rest.PeekFirst()
				gStart := oldOffset
				gEnd := gStart + g.visibleLen()
				if r.Start < gStart && r.End >= gEnd {
					ng := g.clone()
					rest = rest.RemoveFirst()
					versionInRange.ObserveAll(ng.maxVersion())
					if ng.visible {
						ng.addDeletion(localTS)
						ng.visible = false
					}
					out = out.AddLast(ng)
					oldOffset = gEnd
					if r.End == gEnd {
						endID = ng.insertion.id
						endOffset = ng.end
						finishOp()
						break
					}
				} else {
					break
				}
			}

			// Skip ahead to the next range if it starts past the cursor.
			if ri < len(ranges) && ranges[ri].Start > oldOffset {
				l, rr := splitAtVisible(rest, ranges[ri].Start-oldOffset, seekRight)
				out = out.Concat(l)
				oldOffset += l.Measure().text.Bytes
				rest = rr
			}
		}
	}

	// Any ranges left are insertions at the very end of the buffer.
	for ri < len(ranges) {
		last := out.PeekLast()
		ops = append(ops, EditOperation{
			ID:             localTS,
			StartID:        last.insertion.id,
			StartOffset:    uint32(last.end),
			EndID:          last.insertion.id,
			EndOffset:      uint32(last.end),
			VersionInRange: clock.NewGlobal(),
			NewText:        newText,
			LamportTime:    lamportTS.Value,
		})
		if newText != "" {
			out = out.AddLast(b.buildFragmentToInsert(last, nil, newText, localTS, lamportTS))
		}
		ri++
		if ri < len(ranges) {
			localTS = b.localClock.Tick()
			lamportTS = b.lamportClock.Tick()
		}
	}

	b.fragments = out.Concat(rest)
	return ops
}

// splitFragment carves f at insertion offsets [start, end], returning the
// pieces before, within, and after the range (each may be nil). The last
// piece keeps f's fragment id so coordinates resolved against it stay
// valid; earlier pieces get fresh ids between prev and f. The split index
// is rewritten to match.
func (b *Buffer) splitFragment(prev, f *fragment, start, end int) (before, within, after *fragment) {
	switch {
	case end == f.start:
		return nil, nil, f.clone()
	case start == f.end:
		return f.clone(), nil, nil
	case start == f.start && end == f.end:
		return nil, f.clone(), nil
	}

	prefix := f.clone()
	if end < f.end {
		suffix := prefix.clone()
		suffix.start = end
		prefix.end = end
		prefix.id = between(prev.id, suffix.id)
		after = suffix
	}
	if start != end {
		suffix := prefix.clone()
		suffix.start = start
		prefix.end = start
		prefix.id = between(prev.id, suffix.id)
		within = suffix
	}
	if start > f.start {
		before = prefix
	}

	parts := make([]*fragment, 0, 3)
	for _, p := range []*fragment{before, within, after} {
		if p != nil {
			parts = append(parts, p)
		}
	}
	b.splits.replaceEntry(f.insertion.id, f.start, f.id, parts...)

	return before, within, after
}

// buildFragmentToInsert creates the fragment for a fresh insertion between
// prev and next (nil next means end of document) and registers its split
// run.
func (b *Buffer) buildFragmentToInsert(prev, next *fragment, text string, id clock.Local, lamport clock.Lamport) *fragment {
	nextID := maxFragmentID
	if next != nil {
		nextID = next.id
	}
	f := newFragment(between(prev.id, nextID), &insertion{
		id:             id,
		parentID:       prev.insertion.id,
		offsetInParent: prev.end,
		text:           text,
		lamport:        lamport,
	}, 0, len(text))
	b.splits.register(id, f)
	return f
}
