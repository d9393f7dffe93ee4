package buffer

import (
	"reflect"
	"testing"

	"github.com/iw2rmb/loom/clock"
)

func editsSince(b *Buffer, since clock.Global) []Edit {
	var edits []Edit
	for e := range b.EditsSince(since) {
		edits = append(edits, e)
	}
	return edits
}

// applyEdits replays a diff: Old ranges address oldText, New ranges address
// newText. Edits come in document order, so applying them back to front
// keeps earlier Old offsets valid.
func applyEdits(oldText, newText string, edits []Edit) string {
	out := oldText
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		out = out[:e.Old.Start] + newText[e.New.Start:e.New.End] + out[e.Old.End:]
	}
	return out
}

func TestBuffer_EditsSince_ReportsInsertAndDelete(t *testing.T) {
	b := New(1, "abcdef", Options{})
	since := b.Version()
	oldText := b.Text()

	mustEdit(t, b, []Range{{Start: 1, End: 2}}, "XY")
	mustEdit(t, b, []Range{{Start: 4, End: 5}}, "")
	if got, want := b.Text(), "aXYcef"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}

	edits := editsSince(b, since)
	want := []Edit{
		{Old: Range{Start: 1, End: 2}, New: Range{Start: 1, End: 3}},
		{Old: Range{Start: 3, End: 4}, New: Range{Start: 4, End: 4}},
	}
	if !reflect.DeepEqual(edits, want) {
		t.Fatalf("edits=%v, want %v", edits, want)
	}

	if got := applyEdits(oldText, b.Text(), edits); got != b.Text() {
		t.Fatalf("replayed text=%q, want %q", got, b.Text())
	}
}

func TestBuffer_EditsSince_EmptyWhenUnchanged(t *testing.T) {
	b := New(1, "abc", Options{})
	mustEdit(t, b, []Range{{Start: 0, End: 1}}, "z")

	if edits := editsSince(b, b.Version()); len(edits) != 0 {
		t.Fatalf("edits=%v, want none", edits)
	}
}

func TestBuffer_EditsSince_UndoCancelsEdit(t *testing.T) {
	b := New(1, "abc", Options{})
	since := b.Version()

	mustEdit(t, b, []Range{{Start: 1, End: 2}}, "XY")
	mustUndo(t, b)

	if edits := editsSince(b, since); len(edits) != 0 {
		t.Fatalf("edits=%v, want none after undo", edits)
	}
}

func TestBuffer_EditsSince_SurvivesLaterEdits(t *testing.T) {
	b := New(1, "abc", Options{})
	since := b.Version()
	oldText := b.Text()

	mustEdit(t, b, []Range{{Start: 3, End: 3}}, "def")
	seq := b.EditsSince(since)
	wantText := b.Text()

	// Mutate after capturing the sequence.
	mustEdit(t, b, []Range{{Start: 0, End: 0}}, "!!!")

	var edits []Edit
	for e := range seq {
		edits = append(edits, e)
	}
	if got := applyEdits(oldText, wantText, edits); got != wantText {
		t.Fatalf("replayed text=%q, want %q", got, wantText)
	}
}

func TestBuffer_EditsSince_RemoteOps(t *testing.T) {
	b1 := New(1, "one two three", Options{})
	b2 := New(2, "one two three", Options{})

	since := b2.Version()
	oldText := b2.Text()

	ops := mustEdit(t, b1, []Range{{Start: 4, End: 7}}, "2")
	mustApply(t, b2, ops)

	edits := editsSince(b2, since)
	if got := applyEdits(oldText, b2.Text(), edits); got != b2.Text() {
		t.Fatalf("replayed text=%q, want %q", got, b2.Text())
	}
	if got, want := b2.Text(), "one 2 three"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestEdit_Delta(t *testing.T) {
	e := Edit{Old: Range{Start: 2, End: 5}, New: Range{Start: 2, End: 4}}
	if got, want := e.Delta(), -1; got != want {
		t.Fatalf("delta=%d, want %d", got, want)
	}
	if got, want := e.OldLen(), 3; got != want {
		t.Fatalf("old len=%d, want %d", got, want)
	}
	if got, want := e.NewLen(), 2; got != want {
		t.Fatalf("new len=%d, want %d", got, want)
	}
}
