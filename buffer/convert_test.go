package buffer

import (
	"errors"
	"testing"
)

func TestBuffer_OffsetForPoint(t *testing.T) {
	b := New(1, "abc\ndefgh\n\nij", Options{})

	cases := []struct {
		point Point
		want  int
	}{
		{Point{Row: 0, Column: 0}, 0},
		{Point{Row: 0, Column: 3}, 3},
		{Point{Row: 1, Column: 0}, 4},
		{Point{Row: 1, Column: 5}, 9},
		{Point{Row: 2, Column: 0}, 10},
		{Point{Row: 3, Column: 2}, 13},
	}
	for _, tc := range cases {
		got, err := b.OffsetForPoint(tc.point)
		if err != nil {
			t.Fatalf("offset for %v: %v", tc.point, err)
		}
		if got != tc.want {
			t.Fatalf("offset for %v=%d, want %d", tc.point, got, tc.want)
		}
	}
}

func TestBuffer_OffsetForPoint_Errors(t *testing.T) {
	b := New(1, "ab\ncd", Options{})

	if _, err := b.OffsetForPoint(Point{Row: 2, Column: 0}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("row past end: err=%v, want ErrOutOfRange", err)
	}
	if _, err := b.OffsetForPoint(Point{Row: 0, Column: 5}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("column past line end: err=%v, want ErrOutOfRange", err)
	}
}

func TestBuffer_PointForOffset(t *testing.T) {
	b := New(1, "abc\ndefgh", Options{})

	cases := []struct {
		offset int
		want   Point
	}{
		{0, Point{Row: 0, Column: 0}},
		{3, Point{Row: 0, Column: 3}},
		{4, Point{Row: 1, Column: 0}},
		{9, Point{Row: 1, Column: 5}},
	}
	for _, tc := range cases {
		got, err := b.PointForOffset(tc.offset)
		if err != nil {
			t.Fatalf("point for %d: %v", tc.offset, err)
		}
		if got != tc.want {
			t.Fatalf("point for %d=%v, want %v", tc.offset, got, tc.want)
		}
	}

	if _, err := b.PointForOffset(10); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err=%v, want ErrOutOfRange", err)
	}
}

func TestBuffer_Conversions_RoundTripAfterEdits(t *testing.T) {
	b := New(1, "one\ntwo\nthree", Options{})
	mustEdit(t, b, []Range{{Start: 4, End: 7}}, "2\n2")
	mustEdit(t, b, []Range{{Start: 0, End: 0}}, "0\n")

	for offset := 0; offset <= b.Len(); offset++ {
		p, err := b.PointForOffset(offset)
		if err != nil {
			t.Fatalf("point for %d: %v", offset, err)
		}
		back, err := b.OffsetForPoint(p)
		if err != nil {
			t.Fatalf("offset for %v: %v", p, err)
		}
		if back != offset {
			t.Fatalf("round trip %d -> %v -> %d", offset, p, back)
		}
	}
}

func TestBuffer_Line(t *testing.T) {
	b := New(1, "abc\ndefgh\n\nij", Options{})

	cases := []struct {
		row  uint32
		want string
	}{
		{0, "abc"},
		{1, "defgh"},
		{2, ""},
		{3, "ij"},
	}
	for _, tc := range cases {
		got, err := b.Line(tc.row)
		if err != nil {
			t.Fatalf("line %d: %v", tc.row, err)
		}
		if got != tc.want {
			t.Fatalf("line %d=%q, want %q", tc.row, got, tc.want)
		}

		n, err := b.LineLen(tc.row)
		if err != nil {
			t.Fatalf("line len %d: %v", tc.row, err)
		}
		if n != len(tc.want) {
			t.Fatalf("line len %d=%d, want %d", tc.row, n, len(tc.want))
		}
	}

	if _, err := b.Line(4); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err=%v, want ErrOutOfRange", err)
	}
}

func TestBuffer_MaxPoint(t *testing.T) {
	b := New(1, "ab\ncde", Options{})
	if got, want := b.MaxPoint(), (Point{Row: 1, Column: 3}); got != want {
		t.Fatalf("max point=%v, want %v", got, want)
	}

	mustEdit(t, b, []Range{{Start: 6, End: 6}}, "\n")
	if got, want := b.MaxPoint(), (Point{Row: 2, Column: 0}); got != want {
		t.Fatalf("max point=%v, want %v", got, want)
	}
}
