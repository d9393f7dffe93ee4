package buffer

import (
	ft "github.com/leisure-tools/lazyfingertree"

	"github.com/iw2rmb/loom/clock"
)

// insertion is the immutable text payload of one edit. Fragments share it
// and slice ranges out of its text; it is never mutated after creation.
type insertion struct {
	id             clock.Local
	parentID       clock.Local
	offsetInParent int
	text           string
	lamport        clock.Lamport
}

// fragment is a contiguous slice of one insertion's text. Fragments
// partition the document and are ordered by id. They are treated as
// immutable: every mutation replaces a fragment with narrowed or re-marked
// copies in a new tree, so old snapshots stay valid.
type fragment struct {
	id        fragmentID
	insertion *insertion
	start     int // byte range within insertion.text
	end       int
	deletions map[clock.Local]struct{}
	maxUndos  clock.Global
	visible   bool
}

func newFragment(id fragmentID, ins *insertion, start, end int) *fragment {
	return &fragment{
		id:        id,
		insertion: ins,
		start:     start,
		end:       end,
		visible:   true,
	}
}

func (f *fragment) text() string {
	return f.insertion.text[f.start:f.end]
}

func (f *fragment) len() int {
	return f.end - f.start
}

func (f *fragment) visibleLen() int {
	if f.visible {
		return f.len()
	}
	return 0
}

// clone returns a copy safe to re-mark; the deletions set is copied, the
// insertion is shared.
func (f *fragment) clone() *fragment {
	out := *f
	if f.deletions != nil {
		out.deletions = make(map[clock.Local]struct{}, len(f.deletions))
		for d := range f.deletions {
			out.deletions[d] = struct{}{}
		}
	}
	out.maxUndos = f.maxUndos.Clone()
	return &out
}

func (f *fragment) addDeletion(id clock.Local) {
	if f.deletions == nil {
		f.deletions = make(map[clock.Local]struct{}, 1)
	}
	f.deletions[id] = struct{}{}
}

// isVisible reports current visibility: the owning insertion must not be
// undone and every recorded deletion must be undone.
func (f *fragment) isVisible(undos *undoMap) bool {
	if undos.isUndone(f.insertion.id) {
		return false
	}
	for d := range f.deletions {
		if !undos.isUndone(d) {
			return false
		}
	}
	return true
}

// wasVisible reports visibility as of a past version: the insertion must
// have been observed and not undone at that version, and every observed
// deletion must have been undone at that version.
func (f *fragment) wasVisible(version clock.Global, undos *undoMap) bool {
	if !version.Observed(f.insertion.id) || undos.wasUndone(f.insertion.id, version) {
		return false
	}
	for d := range f.deletions {
		if version.Observed(d) && !undos.wasUndone(d, version) {
			return false
		}
	}
	return true
}

// maxVersion is the item summary used for version_in_range accumulation and
// edits-since filtering: everything that ever touched this fragment.
func (f *fragment) maxVersion() clock.Global {
	v := clock.NewGlobal()
	v.Observe(f.insertion.id)
	for d := range f.deletions {
		v.Observe(d)
	}
	v.ObserveAll(f.maxUndos)
	return v
}

// fragMeasure summarizes a run of fragments along every dimension a
// traversal needs: visible-text summary, deleted byte count, greatest
// fragment id, and the union of observed versions.
type fragMeasure struct {
	text       TextSummary
	deleted    int
	maxID      fragmentID
	maxVersion clock.Global
}

type fragMeasurer struct{}

func (fragMeasurer) Identity() fragMeasure {
	return fragMeasure{}
}

func (fragMeasurer) Measure(f *fragment) fragMeasure {
	m := fragMeasure{maxID: f.id, maxVersion: f.maxVersion()}
	if f.visible {
		m.text = summarize(f.text())
	} else {
		m.deleted = f.len()
	}
	return m
}

func (fragMeasurer) Sum(a, b fragMeasure) fragMeasure {
	version := a.maxVersion.Clone()
	version.ObserveAll(b.maxVersion)
	return fragMeasure{
		text:       a.text.Add(b.text),
		deleted:    a.deleted + b.deleted,
		maxID:      maxID(a.maxID, b.maxID),
		maxVersion: version,
	}
}

type fragTree = ft.FingerTree[fragMeasurer, *fragment, fragMeasure]

func newFragTree(frags ...*fragment) fragTree {
	return ft.FromArray[fragMeasurer, *fragment, fragMeasure](fragMeasurer{}, frags)
}

// seekBias selects which side of a boundary a seek lands on when the target
// offset falls exactly between two fragments.
type seekBias int

const (
	seekLeft seekBias = iota
	seekRight
)

// splitAtVisible splits the tree at a visible byte offset. With seekLeft the
// right part starts with the first fragment whose extent reaches offset;
// with seekRight fragments ending exactly at offset (and any empty or
// invisible fragments there) stay in the left part.
func splitAtVisible(t fragTree, offset int, bias seekBias) (fragTree, fragTree) {
	if bias == seekLeft {
		return t.Split(func(m fragMeasure) bool { return m.text.Bytes >= offset })
	}
	return t.Split(func(m fragMeasure) bool { return m.text.Bytes > offset })
}

// splitAtID splits the tree so the right part starts with the fragment
// carrying id. The caller must know the id exists; an exhausted right part
// indicates sequence corruption and is the caller's panic to raise.
func splitAtID(t fragTree, id fragmentID) (fragTree, fragTree) {
	return t.Split(func(m fragMeasure) bool {
		return m.maxID != nil && m.maxID.Compare(id) >= 0
	})
}
