package buffer

import (
	"fmt"

	ft "github.com/leisure-tools/lazyfingertree"
	"github.com/tidwall/btree"

	"github.com/iw2rmb/loom/clock"
)

// insertionSplit records that a contiguous run of an insertion's text
// currently lives in one fragment. The per-insertion split list, keyed by
// cumulative extent, re-derives which fragment owns any original offset,
// translating historic (insertion, offset) coordinates.
type insertionSplit struct {
	extent     int
	fragmentID fragmentID
}

type splitMeasure struct {
	extent int
}

type splitMeasurer struct{}

func (splitMeasurer) Identity() splitMeasure { return splitMeasure{} }

func (splitMeasurer) Measure(s insertionSplit) splitMeasure {
	return splitMeasure{extent: s.extent}
}

func (splitMeasurer) Sum(a, b splitMeasure) splitMeasure {
	return splitMeasure{extent: a.extent + b.extent}
}

type splitTree = ft.FingerTree[splitMeasurer, insertionSplit, splitMeasure]

func newSplitTree(splits ...insertionSplit) splitTree {
	return ft.FromArray[splitMeasurer, insertionSplit, splitMeasure](splitMeasurer{}, splits)
}

type splitEntry struct {
	id     clock.Local
	splits splitTree
}

// splitIndex maps insertion ids to their split lists. An ordered tree keeps
// iteration deterministic across replicas, which makes state comparison in
// tests exact without seeding hashers.
type splitIndex struct {
	tree *btree.BTreeG[splitEntry]
}

func newSplitIndex() *splitIndex {
	return &splitIndex{
		tree: btree.NewBTreeGOptions(
			func(a, b splitEntry) bool {
				if a.id.Replica != b.id.Replica {
					return a.id.Replica < b.id.Replica
				}
				return a.id.Seq < b.id.Seq
			},
			btree.Options{NoLocks: true, Degree: 8},
		),
	}
}

func (ix *splitIndex) get(id clock.Local) (splitTree, bool) {
	e, ok := ix.tree.Get(splitEntry{id: id})
	return e.splits, ok
}

func (ix *splitIndex) set(id clock.Local, splits splitTree) {
	ix.tree.Set(splitEntry{id: id, splits: splits})
}

// clone is a shallow copy: split trees are persistent, so entries can be
// shared between the live index and snapshots.
func (ix *splitIndex) clone() *splitIndex {
	return &splitIndex{tree: ix.tree.Copy()}
}

// resolveFragmentID translates an (insertion, offset) coordinate to the id
// of the fragment currently holding that offset. An unknown insertion id
// means the operation referencing it is causally premature, reported as
// ErrInvalidOperation so the caller can defer it.
func (ix *splitIndex) resolveFragmentID(id clock.Local, offset int, bias seekBias) (fragmentID, error) {
	splits, ok := ix.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: unobserved insertion %v", ErrInvalidOperation, id)
	}
	var right splitTree
	if bias == seekLeft {
		_, right = splits.Split(func(m splitMeasure) bool { return m.extent >= offset })
	} else {
		_, right = splits.Split(func(m splitMeasure) bool { return m.extent > offset })
	}
	if right.IsEmpty() {
		return nil, fmt.Errorf("%w: offset %d outside insertion %v", ErrInvalidOperation, offset, id)
	}
	return right.PeekFirst().fragmentID, nil
}

// replaceEntry rewrites the split list of one insertion, substituting the
// entry that starts at byte start (which must belong to fragment old) with
// entries for its replacement fragments.
func (ix *splitIndex) replaceEntry(id clock.Local, start int, old fragmentID, parts ...*fragment) {
	splits, ok := ix.get(id)
	if !ok {
		panic(fmt.Sprintf("buffer: no split table for insertion %v", id))
	}
	left, right := splits.Split(func(m splitMeasure) bool { return m.extent > start })
	if right.IsEmpty() || right.PeekFirst().fragmentID.Compare(old) != 0 {
		panic(fmt.Sprintf("buffer: split table for insertion %v out of sync at offset %d", id, start))
	}
	right = right.RemoveFirst()
	for i := len(parts) - 1; i >= 0; i-- {
		f := parts[i]
		right = right.AddFirst(insertionSplit{extent: f.len(), fragmentID: f.id})
	}
	ix.set(id, left.Concat(right))
}

// register installs the initial single-fragment split list for a fresh
// insertion.
func (ix *splitIndex) register(id clock.Local, f *fragment) {
	ix.set(id, newSplitTree(insertionSplit{extent: f.len(), fragmentID: f.id}))
}
