package buffer

import (
	"fmt"
	"strings"
)

// OffsetForPoint translates a row/column position into a visible byte
// offset.
func (b *Buffer) OffsetForPoint(p Point) (int, error) {
	if p.Cmp(b.MaxPoint()) > 0 {
		return 0, fmt.Errorf("%w: point %d:%d", ErrOutOfRange, p.Row, p.Column)
	}
	left, right := b.fragments.Split(func(m fragMeasure) bool {
		return m.text.Lines.Cmp(p) >= 0
	})
	before := left.Measure().text
	if right.IsEmpty() {
		return before.Bytes, nil
	}

	text := right.PeekFirst().text()
	rows := int(p.Row - before.Lines.Row)
	col := int(p.Column)
	if rows == 0 {
		col = int(p.Column - before.Lines.Column)
	}
	off := 0
	for i := 0; i < rows; i++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return 0, fmt.Errorf("%w: point %d:%d", ErrOutOfRange, p.Row, p.Column)
		}
		off += nl + 1
	}
	if lineEnd := strings.IndexByte(text[off:], '\n'); lineEnd >= 0 && col > lineEnd {
		return 0, fmt.Errorf("%w: column %d past end of line %d", ErrOutOfRange, p.Column, p.Row)
	}
	if col > len(text)-off {
		return 0, fmt.Errorf("%w: point %d:%d", ErrOutOfRange, p.Row, p.Column)
	}
	return before.Bytes + off + col, nil
}

// PointForOffset translates a visible byte offset into a row/column
// position.
func (b *Buffer) PointForOffset(offset int) (Point, error) {
	if offset < 0 || offset > b.Len() {
		return Point{}, fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}
	left, right := splitAtVisible(b.fragments, offset, seekLeft)
	before := left.Measure().text
	if right.IsEmpty() {
		return before.Lines, nil
	}
	within := right.PeekFirst().text()[:offset-before.Bytes]
	return before.Lines.Add(summarize(within).Lines), nil
}

// Line returns the text of the given row without its trailing newline.
func (b *Buffer) Line(row uint32) (string, error) {
	start, end, err := b.lineRange(row)
	if err != nil {
		return "", err
	}
	return b.TextForRange(Range{Start: start, End: end})
}

// LineLen returns the byte length of the given row, excluding the newline.
func (b *Buffer) LineLen(row uint32) (int, error) {
	start, end, err := b.lineRange(row)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

func (b *Buffer) lineRange(row uint32) (int, int, error) {
	start, err := b.OffsetForPoint(Point{Row: row})
	if err != nil {
		return 0, 0, err
	}
	var end int
	if row >= b.MaxPoint().Row {
		end = b.Len()
	} else {
		next, err := b.OffsetForPoint(Point{Row: row + 1})
		if err != nil {
			return 0, 0, err
		}
		end = next - 1
	}
	return start, end, nil
}
