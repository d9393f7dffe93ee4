package buffer

import (
	"strings"
	"unicode/utf8"
)

// Point addresses a position in the visible text by 0-based line row and
// byte column within that line.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Cmp returns -1, 0 or 1 ordering two points in document order.
func (p Point) Cmp(other Point) int {
	switch {
	case p.Row < other.Row:
		return -1
	case p.Row > other.Row:
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	default:
		return 0
	}
}

// Add appends another point's extent: rows accumulate, and the column resets
// to the other's column whenever it starts a new line.
func (p Point) Add(other Point) Point {
	if other.Row > 0 {
		return Point{Row: p.Row + other.Row, Column: other.Column}
	}
	return Point{Row: p.Row, Column: p.Column + other.Column}
}

// TextSummary is the associative measurement of a text span: byte and rune
// counts plus the line/column extent. Summaries of adjacent spans add.
type TextSummary struct {
	Bytes int
	Runes int
	Lines Point
}

// Add combines two adjacent summaries.
func (s TextSummary) Add(other TextSummary) TextSummary {
	return TextSummary{
		Bytes: s.Bytes + other.Bytes,
		Runes: s.Runes + other.Runes,
		Lines: s.Lines.Add(other.Lines),
	}
}

// summarize measures a span of text.
func summarize(text string) TextSummary {
	lastLineStart := strings.LastIndexByte(text, '\n') + 1
	return TextSummary{
		Bytes: len(text),
		Runes: utf8.RuneCountInString(text),
		Lines: Point{
			Row:    uint32(strings.Count(text, "\n")),
			Column: uint32(len(text) - lastLineStart),
		},
	}
}
