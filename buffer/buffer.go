package buffer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iw2rmb/loom/clock"
)

var (
	// ErrOutOfRange reports an offset, point, or range outside the visible
	// text.
	ErrOutOfRange = errors.New("out of range")

	// ErrInvalidOperation reports an operation that references state this
	// replica has not observed. Callers normally never see it: ApplyOps
	// defers such operations instead of applying them.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidSelectionSet reports an unknown selection set id.
	ErrInvalidSelectionSet = errors.New("invalid selection set")

	// ErrNoFile reports a save on a buffer with no backing file.
	ErrNoFile = errors.New("buffer has no file")
)

type Options struct {
	// UndoGroupInterval bounds the idle time between transactions merged
	// into one undo step. Zero means the default of 300ms.
	UndoGroupInterval time.Duration

	// Now overrides the clock used for undo grouping. Nil means time.Now.
	Now func() time.Time

	// File is the optional backing file for Save and Reload.
	File File
}

// Buffer is one replica of a collaboratively edited text document. Replicas
// exchange Operations; applying the same operations on every replica, in any
// order consistent with per-replica delivery order, converges them to the
// same text.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	replica   clock.ReplicaID
	fragments fragTree
	splits    *splitIndex
	version   clock.Global

	localClock   clock.LocalClock
	lamportClock clock.LamportClock

	undos    *undoMap
	history  *history
	lastEdit clock.Local

	deferredOps      *opQueue
	deferredReplicas map[clock.ReplicaID]struct{}

	selections           map[SelectionSetID][]Selection
	selectionsLastUpdate SelectionsVersion

	savedVersion clock.Global
	file         File

	now         func() time.Time
	subscribers []func(Event)
}

// Range is a half-open byte range [Start, End) in the visible text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

// New creates a replica of a document whose initial content is baseText.
// Every replica of the same document must be created with the same base text
// and a distinct replica id.
func New(replica clock.ReplicaID, baseText string, opt Options) *Buffer {
	now := opt.Now
	if now == nil {
		now = time.Now
	}

	// The base text is modeled as an insertion by the zero id, which every
	// version vector observes. A zero-length sentinel fragment in front of
	// it guarantees every position has a fragment to its left.
	baseIns := &insertion{text: baseText}
	sentinel := newFragment(minFragmentID, baseIns, 0, 0)

	splits := newSplitIndex()
	baseSplits := newSplitTree(insertionSplit{extent: 0, fragmentID: minFragmentID})
	frags := []*fragment{sentinel}
	if len(baseText) > 0 {
		baseID := between(minFragmentID, maxFragmentID)
		frags = append(frags, newFragment(baseID, baseIns, 0, len(baseText)))
		baseSplits = baseSplits.AddLast(insertionSplit{extent: len(baseText), fragmentID: baseID})
	}
	splits.set(clock.Local{}, baseSplits)

	return &Buffer{
		replica:          replica,
		fragments:        newFragTree(frags...),
		splits:           splits,
		localClock:       clock.NewLocalClock(replica),
		lamportClock:     clock.NewLamportClock(replica),
		undos:            newUndoMap(),
		history:          newHistory(baseText, opt.UndoGroupInterval),
		deferredOps:      newOpQueue(),
		deferredReplicas: make(map[clock.ReplicaID]struct{}),
		selections:       make(map[SelectionSetID][]Selection),
		file:             opt.File,
		now:              now,
	}
}

func (b *Buffer) Replica() clock.ReplicaID { return b.replica }

// Version returns the set of operations this buffer has observed.
func (b *Buffer) Version() clock.Global { return b.version.Clone() }

// Len returns the visible text length in bytes.
func (b *Buffer) Len() int {
	return b.fragments.Measure().text.Bytes
}

// Text assembles the full visible text.
func (b *Buffer) Text() string {
	return treeText(b.fragments)
}

// TextForRange returns the visible text within r.
func (b *Buffer) TextForRange(r Range) (string, error) {
	if r.Start < 0 || r.End < r.Start || r.End > b.Len() {
		return "", fmt.Errorf("%w: [%d, %d)", ErrOutOfRange, r.Start, r.End)
	}
	return treeTextForRange(b.fragments, r), nil
}

// TextSummary measures the full visible text.
func (b *Buffer) TextSummary() TextSummary {
	return b.fragments.Measure().text
}

// TextSummaryForRange measures the visible text within r.
func (b *Buffer) TextSummaryForRange(r Range) (TextSummary, error) {
	text, err := b.TextForRange(r)
	if err != nil {
		return TextSummary{}, err
	}
	return summarize(text), nil
}

// MaxPoint returns the position just past the last character.
func (b *Buffer) MaxPoint() Point {
	return b.fragments.Measure().text.Lines
}

// IsDirty reports whether the buffer has edits not yet saved.
func (b *Buffer) IsDirty() bool {
	return b.version.ChangedSince(b.savedVersion)
}

// DeferredLen returns the number of remote operations waiting for their
// causal dependencies.
func (b *Buffer) DeferredLen() int {
	return b.deferredOps.len()
}

// Snapshot captures the current state for reads that must not see later
// edits. The underlying trees are persistent, so this is cheap and the
// snapshot stays valid while the buffer keeps changing.
func (b *Buffer) Snapshot() *Snapshot {
	return &Snapshot{
		fragments: b.fragments,
		version:   b.version.Clone(),
	}
}

// Subscribe registers fn to receive buffer events. Callbacks run
// synchronously during the mutation that caused them.
func (b *Buffer) Subscribe(fn func(Event)) {
	b.subscribers = append(b.subscribers, fn)
}

func (b *Buffer) emit(e Event) {
	for _, fn := range b.subscribers {
		fn(e)
	}
}

// didEdit emits the events for a completed mutation if anything actually
// changed since old.
func (b *Buffer) didEdit(old clock.Global, wasDirty bool) {
	var edits []Edit
	for e := range b.EditsSince(old) {
		edits = append(edits, e)
	}
	if len(edits) == 0 {
		return
	}
	b.emit(Edited{Edits: edits})
	if !wasDirty {
		b.emit(Dirtied{})
	}
}

// Snapshot is an immutable view of a buffer's text at one version.
type Snapshot struct {
	fragments fragTree
	version   clock.Global
}

func (s *Snapshot) Version() clock.Global { return s.version.Clone() }

func (s *Snapshot) Len() int { return s.fragments.Measure().text.Bytes }

func (s *Snapshot) Text() string { return treeText(s.fragments) }

func (s *Snapshot) TextSummary() TextSummary { return s.fragments.Measure().text }

func (s *Snapshot) TextForRange(r Range) (string, error) {
	if r.Start < 0 || r.End < r.Start || r.End > s.Len() {
		return "", fmt.Errorf("%w: [%d, %d)", ErrOutOfRange, r.Start, r.End)
	}
	return treeTextForRange(s.fragments, r), nil
}

func treeText(t fragTree) string {
	var sb strings.Builder
	sb.Grow(t.Measure().text.Bytes)
	t.Each(func(f *fragment) bool {
		if f.visible {
			sb.WriteString(f.text())
		}
		return true
	})
	return sb.String()
}

func treeTextForRange(t fragTree, r Range) string {
	left, rest := splitAtVisible(t, r.Start, seekRight)
	skip := r.Start - left.Measure().text.Bytes
	need := r.End - r.Start
	var sb strings.Builder
	sb.Grow(need)
	rest.Each(func(f *fragment) bool {
		if need == 0 || !f.visible {
			return need > 0
		}
		s := f.text()
		if skip > 0 {
			if skip >= len(s) {
				skip -= len(s)
				return true
			}
			s = s[skip:]
			skip = 0
		}
		if len(s) > need {
			s = s[:need]
		}
		sb.WriteString(s)
		need -= len(s)
		return need > 0
	})
	return sb.String()
}
