package buffer

import (
	"fmt"
	"sort"

	"github.com/iw2rmb/loom/clock"
)

// SelectionSetID identifies one replica's set of cursors. The lamport
// timestamp minted when the set is created is unique across replicas.
type SelectionSetID clock.Lamport

// SelectionsVersion counts local selection updates; it only ever grows, so
// callers can cheaply poll for changes.
type SelectionsVersion uint64

// Selection is one cursor or selected span, addressed by anchors so it
// survives concurrent edits. When Reversed is set the cursor (head) sits at
// Start rather than End.
type Selection struct {
	ID       uint32 `json:"id"`
	Start    Anchor `json:"start"`
	End      Anchor `json:"end"`
	Reversed bool   `json:"reversed,omitempty"`
}

// Head returns the moving end of the selection.
func (s Selection) Head() Anchor {
	if s.Reversed {
		return s.Start
	}
	return s.End
}

// Tail returns the stationary end of the selection.
func (s Selection) Tail() Anchor {
	if s.Reversed {
		return s.End
	}
	return s.Start
}

// AddSelectionSet publishes a new selection set and returns its id along
// with the operation announcing it to other replicas. The selections are
// normalized first: sorted by position and merged where they overlap.
func (b *Buffer) AddSelectionSet(selections []Selection) (SelectionSetID, Operation, error) {
	merged, err := b.mergeSelections(selections)
	if err != nil {
		return SelectionSetID{}, nil, err
	}
	ts := b.lamportClock.Tick()
	id := SelectionSetID(ts)
	b.selections[id] = merged
	b.selectionsLastUpdate++
	return id, UpdateSelectionsOperation{
		SetID:       id,
		Selections:  merged,
		LamportTime: ts.Value,
	}, nil
}

// UpdateSelectionSet replaces the selections in a set, normalizing them the
// same way AddSelectionSet does.
func (b *Buffer) UpdateSelectionSet(id SelectionSetID, selections []Selection) (Operation, error) {
	merged, err := b.mergeSelections(selections)
	if err != nil {
		return nil, err
	}
	b.selections[id] = merged
	ts := b.lamportClock.Tick()
	b.selectionsLastUpdate++
	return UpdateSelectionsOperation{
		SetID:       id,
		Selections:  merged,
		LamportTime: ts.Value,
	}, nil
}

// mergeSelections sorts selections by resolved start offset and collapses
// overlapping or touching ranges into one. The merge happens on the
// producing replica, so the broadcast operation already carries the
// normalized set.
func (b *Buffer) mergeSelections(selections []Selection) ([]Selection, error) {
	if len(selections) < 2 {
		return selections, nil
	}

	type span struct {
		sel        Selection
		start, end int
	}
	spans := make([]span, len(selections))
	for i, s := range selections {
		start, err := b.OffsetForAnchor(s.Start)
		if err != nil {
			return nil, err
		}
		end, err := b.OffsetForAnchor(s.End)
		if err != nil {
			return nil, err
		}
		spans[i] = span{sel: s, start: start, end: end}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})

	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if last.end >= sp.start {
			if sp.end > last.end {
				last.end = sp.end
				last.sel.End = sp.sel.End
			}
			continue
		}
		merged = append(merged, sp)
	}

	out := make([]Selection, len(merged))
	for i, sp := range merged {
		out[i] = sp.sel
	}
	return out, nil
}

// RemoveSelectionSet deletes a set and returns the operation removing it on
// other replicas.
func (b *Buffer) RemoveSelectionSet(id SelectionSetID) (Operation, error) {
	if _, ok := b.selections[id]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelectionSet, clock.Lamport(id))
	}
	delete(b.selections, id)
	ts := b.lamportClock.Tick()
	b.selectionsLastUpdate++
	return UpdateSelectionsOperation{
		SetID:       id,
		Removed:     true,
		LamportTime: ts.Value,
	}, nil
}

// Selections returns the selections in a set.
func (b *Buffer) Selections(id SelectionSetID) ([]Selection, error) {
	selections, ok := b.selections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelectionSet, clock.Lamport(id))
	}
	return selections, nil
}

// SelectionSets lists the known set ids, ordered by creation time.
func (b *Buffer) SelectionSets() []SelectionSetID {
	ids := make([]SelectionSetID, 0, len(b.selections))
	for id := range b.selections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return clock.Lamport(ids[i]).Cmp(clock.Lamport(ids[j])) < 0
	})
	return ids
}

// SelectionsLastUpdate returns the current selections version.
func (b *Buffer) SelectionsLastUpdate() SelectionsVersion {
	return b.selectionsLastUpdate
}

// SelectionsChangedSince reports whether any selection set changed after the
// given version was read.
func (b *Buffer) SelectionsChangedSince(since SelectionsVersion) bool {
	return b.selectionsLastUpdate != since
}

// restoreSelections reinstalls selections captured by a transaction; the
// resulting state is local-only and rebroadcast by the next update.
func (b *Buffer) restoreSelections(c *capturedSelections) {
	b.selections[c.setID] = c.selections
	b.lamportClock.Tick()
	b.selectionsLastUpdate++
}
