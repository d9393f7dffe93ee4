package buffer

import (
	"fmt"

	"github.com/iw2rmb/loom/clock"
)

// AnchorBias decides which side an anchor sticks to when text is inserted
// exactly at its position.
type AnchorBias int

const (
	// BiasLeft keeps the anchor before text inserted at its position.
	BiasLeft AnchorBias = iota
	// BiasRight moves the anchor past text inserted at its position.
	BiasRight
)

// AnchorKind discriminates the anchor variants.
type AnchorKind int

const (
	// AnchorStart pins to the beginning of the document. The zero Anchor is
	// a start anchor.
	AnchorStart AnchorKind = iota
	// AnchorMiddle pins to an offset within a specific insertion.
	AnchorMiddle
	// AnchorEnd pins to the end of the document.
	AnchorEnd
)

// Anchor is a position that keeps its logical place as the buffer changes:
// instead of a byte offset it stores which insertion the position falls in
// and the offset within that insertion's original text. Anchors are plain
// values; resolving one back to an offset requires the buffer.
type Anchor struct {
	Kind        AnchorKind  `json:"kind"`
	InsertionID clock.Local `json:"insertion_id"`
	Offset      int         `json:"offset"`
	Bias        AnchorBias  `json:"bias"`
}

// StartAnchor returns the anchor for the beginning of the document.
func StartAnchor() Anchor { return Anchor{Kind: AnchorStart} }

// EndAnchor returns the anchor for the end of the document.
func EndAnchor() Anchor { return Anchor{Kind: AnchorEnd} }

// AnchorBefore returns a left-biased anchor at offset: text inserted at the
// anchor's position lands after it.
func (b *Buffer) AnchorBefore(offset int) (Anchor, error) {
	return b.AnchorAt(offset, BiasLeft)
}

// AnchorAfter returns a right-biased anchor at offset: text inserted at the
// anchor's position lands before it.
func (b *Buffer) AnchorAfter(offset int) (Anchor, error) {
	return b.AnchorAt(offset, BiasRight)
}

// AnchorAt returns an anchor at the given visible offset.
func (b *Buffer) AnchorAt(offset int, bias AnchorBias) (Anchor, error) {
	maxOffset := b.Len()
	if offset < 0 || offset > maxOffset {
		return Anchor{}, fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}

	var seek seekBias
	switch bias {
	case BiasLeft:
		if offset == 0 {
			return StartAnchor(), nil
		}
		seek = seekLeft
	case BiasRight:
		if offset == maxOffset {
			return EndAnchor(), nil
		}
		seek = seekRight
	default:
		return Anchor{}, fmt.Errorf("%w: bias %d", ErrOutOfRange, bias)
	}

	left, right := splitAtVisible(b.fragments, offset, seek)
	if right.IsEmpty() {
		return Anchor{}, fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}
	f := right.PeekFirst()
	offsetInFragment := offset - left.Measure().text.Bytes
	return Anchor{
		Kind:        AnchorMiddle,
		InsertionID: f.insertion.id,
		Offset:      f.start + offsetInFragment,
		Bias:        bias,
	}, nil
}

// SummaryForAnchor measures the visible text before the anchor.
func (b *Buffer) SummaryForAnchor(a Anchor) (TextSummary, error) {
	switch a.Kind {
	case AnchorStart:
		return TextSummary{}, nil
	case AnchorEnd:
		return b.TextSummary(), nil
	case AnchorMiddle:
	default:
		return TextSummary{}, fmt.Errorf("%w: anchor kind %d", ErrOutOfRange, a.Kind)
	}

	seek := seekLeft
	if a.Bias == BiasRight {
		seek = seekRight
	}
	fragID, err := b.splits.resolveFragmentID(a.InsertionID, a.Offset, seek)
	if err != nil {
		return TextSummary{}, err
	}

	left, rest := splitAtID(b.fragments, fragID)
	if rest.IsEmpty() {
		return TextSummary{}, fmt.Errorf("%w: missing fragment for insertion %v", ErrInvalidOperation, a.InsertionID)
	}
	f := rest.PeekFirst()
	ix := left.Measure().text.Bytes
	if f.visible {
		ix += a.Offset - f.start
	}
	return b.TextSummaryForRange(Range{Start: 0, End: ix})
}

// OffsetForAnchor resolves the anchor to a visible byte offset.
func (b *Buffer) OffsetForAnchor(a Anchor) (int, error) {
	s, err := b.SummaryForAnchor(a)
	if err != nil {
		return 0, err
	}
	return s.Bytes, nil
}

// PointForAnchor resolves the anchor to a row/column position.
func (b *Buffer) PointForAnchor(a Anchor) (Point, error) {
	s, err := b.SummaryForAnchor(a)
	if err != nil {
		return Point{}, err
	}
	return s.Lines, nil
}

// CompareAnchors orders two anchors in document order, breaking ties at the
// same offset by bias.
func (b *Buffer) CompareAnchors(a, c Anchor) (int, error) {
	ao, err := b.OffsetForAnchor(a)
	if err != nil {
		return 0, err
	}
	co, err := b.OffsetForAnchor(c)
	if err != nil {
		return 0, err
	}
	switch {
	case ao < co:
		return -1, nil
	case ao > co:
		return 1, nil
	case a.Bias < c.Bias:
		return -1, nil
	case a.Bias > c.Bias:
		return 1, nil
	default:
		return 0, nil
	}
}
