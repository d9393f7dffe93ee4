package buffer

// fragmentID orders fragments within the sequence. It is a variable-length
// digit array: comparison is lexicographic, and between can always mint an
// id strictly inside any non-empty gap by growing the array, so fragments
// are never renumbered.
type fragmentID []uint16

const maxDigit = ^uint16(0)

var (
	minFragmentID = fragmentID{0}
	maxFragmentID = fragmentID{maxDigit}
)

// Compare returns -1, 0 or 1 ordering two ids lexicographically; a strict
// prefix sorts before its extensions.
func (id fragmentID) Compare(other fragmentID) int {
	n := len(id)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if id[i] < other[i] {
			return -1
		}
		if id[i] > other[i] {
			return 1
		}
	}
	switch {
	case len(id) < len(other):
		return -1
	case len(id) > len(other):
		return 1
	default:
		return 0
	}
}

// between returns an id strictly between left and right (left < right).
// Digits past the end of left read as 0 and past the end of right as the
// maximum digit. At the first position with a gap wider than 1 the result
// steps a bounded distance (at most 8) past left's digit, which keeps id
// growth logarithmic under repeated same-point insertion.
func between(left, right fragmentID) fragmentID {
	return betweenWithMax(left, right, maxDigit)
}

func betweenWithMax(left, right fragmentID, max uint16) fragmentID {
	out := make(fragmentID, 0, len(left)+1)
	// Once an emitted digit falls strictly below right's, only left still
	// bounds the result; right's remaining digits read as max.
	bounded := true
	for i := 0; ; i++ {
		var l uint16
		if i < len(left) {
			l = left[i]
		}
		r := max
		if bounded && i < len(right) {
			r = right[i]
		}
		if gap := r - l; gap > 1 {
			step := gap / 2
			if step > 8 {
				step = 8
			}
			if step < 1 {
				step = 1
			}
			out = append(out, l+step)
			return out
		}
		out = append(out, l)
		if l < r {
			bounded = false
		}
	}
}

// maxID returns the greater of two ids, treating nil as "no id yet" so it
// can serve as the identity for summary folds.
func maxID(a, b fragmentID) fragmentID {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}
