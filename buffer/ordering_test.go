package buffer

import "testing"

func TestFragmentID_Compare(t *testing.T) {
	cases := []struct {
		a, b fragmentID
		want int
	}{
		{fragmentID{1}, fragmentID{2}, -1},
		{fragmentID{2}, fragmentID{1}, 1},
		{fragmentID{1, 5}, fragmentID{1, 5}, 0},
		{fragmentID{1}, fragmentID{1, 0}, -1},
		{fragmentID{1, 0}, fragmentID{1}, 1},
		{minFragmentID, maxFragmentID, -1},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Fatalf("Compare(%v, %v)=%d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestBetween_ProducesStrictlyOrderedIDs(t *testing.T) {
	id := between(minFragmentID, maxFragmentID)
	if minFragmentID.Compare(id) >= 0 || id.Compare(maxFragmentID) >= 0 {
		t.Fatalf("id %v not strictly between min and max", id)
	}

	// Repeatedly splitting the same gap must keep minting distinct ordered
	// ids without renumbering.
	left, right := minFragmentID, id
	for i := 0; i < 1000; i++ {
		mid := between(left, right)
		if left.Compare(mid) >= 0 || mid.Compare(right) >= 0 {
			t.Fatalf("iteration %d: %v not between %v and %v", i, mid, left, right)
		}
		right = mid
	}
}

func TestBetween_GrowthStaysBounded(t *testing.T) {
	// Appending at the end over and over is the common editing pattern; id
	// length must grow logarithmically, not linearly.
	prev := minFragmentID
	for i := 0; i < 10000; i++ {
		next := between(prev, maxFragmentID)
		if prev.Compare(next) >= 0 {
			t.Fatalf("iteration %d: %v not after %v", i, next, prev)
		}
		if len(next) > 4 {
			t.Fatalf("iteration %d: id %v longer than expected", i, next)
		}
		prev = next
	}
}

func TestBetween_AdjacentDigits(t *testing.T) {
	left, right := fragmentID{5}, fragmentID{6}
	id := between(left, right)
	if left.Compare(id) >= 0 || id.Compare(right) >= 0 {
		t.Fatalf("id %v not between %v and %v", id, left, right)
	}

	// Once the emitted prefix drops below the right bound, the remaining
	// digit positions are unbounded above; the step must not wrap.
	left = fragmentID{5, maxDigit}
	id = between(left, right)
	if left.Compare(id) >= 0 || id.Compare(right) >= 0 {
		t.Fatalf("id %v not between %v and %v", id, left, right)
	}
}
