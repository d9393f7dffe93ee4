package buffer

import (
	"math/rand"
	"testing"
)

func mustApply(t *testing.T, b *Buffer, ops []Operation) {
	t.Helper()
	if err := b.ApplyOps(ops...); err != nil {
		t.Fatalf("apply ops: %v", err)
	}
}

func TestBuffer_ApplyOps_ReplicatesEdits(t *testing.T) {
	b1 := New(1, "abc", Options{})
	b2 := New(2, "abc", Options{})

	ops := mustEdit(t, b1, []Range{{Start: 1, End: 2}}, "XYZ")
	mustApply(t, b2, ops)

	if got, want := b2.Text(), "aXYZc"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
	if !b1.Version().Equal(b2.Version()) {
		t.Fatalf("versions diverged: %v vs %v", b1.Version(), b2.Version())
	}
}

func TestBuffer_ApplyOps_IsIdempotent(t *testing.T) {
	b1 := New(1, "abc", Options{})
	b2 := New(2, "abc", Options{})

	ops := mustEdit(t, b1, []Range{{Start: 0, End: 0}}, "x")
	mustApply(t, b2, ops)
	mustApply(t, b2, ops)

	if got, want := b2.Text(), "xabc"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestBuffer_ApplyOps_ConcurrentInsertsOrderByLamport(t *testing.T) {
	b1 := New(1, "ab", Options{})
	b2 := New(2, "ab", Options{})

	ops1 := mustEdit(t, b1, []Range{{Start: 1, End: 1}}, "X")
	ops2 := mustEdit(t, b2, []Range{{Start: 1, End: 1}}, "Y")

	mustApply(t, b1, ops2)
	mustApply(t, b2, ops1)

	// Same lamport value, so the higher replica id wins the tie and its
	// insertion sorts first.
	if got, want := b1.Text(), "aYXb"; got != want {
		t.Fatalf("b1 text=%q, want %q", got, want)
	}
	if got, want := b2.Text(), b1.Text(); got != want {
		t.Fatalf("b2 text=%q, want %q", got, want)
	}
}

func TestBuffer_ApplyOps_ConcurrentOverlappingDeletes(t *testing.T) {
	b1 := New(1, "abcd", Options{})
	b2 := New(2, "abcd", Options{})

	ops1 := mustEdit(t, b1, []Range{{Start: 1, End: 3}}, "")
	ops2 := mustEdit(t, b2, []Range{{Start: 2, End: 4}}, "")

	mustApply(t, b1, ops2)
	mustApply(t, b2, ops1)

	if got, want := b1.Text(), "a"; got != want {
		t.Fatalf("b1 text=%q, want %q", got, want)
	}
	if got, want := b2.Text(), b1.Text(); got != want {
		t.Fatalf("b2 text=%q, want %q", got, want)
	}
}

func TestBuffer_ApplyOps_DefersUntilDependenciesArrive(t *testing.T) {
	b1 := New(1, "abc", Options{})
	b2 := New(2, "abc", Options{})

	first := mustEdit(t, b1, []Range{{Start: 1, End: 1}}, "X")
	second := mustEdit(t, b1, []Range{{Start: 2, End: 2}}, "Y")
	if got, want := b1.Text(), "aXYbc"; got != want {
		t.Fatalf("b1 text=%q, want %q", got, want)
	}

	// The second edit lands inside the first insertion, so it cannot apply
	// before the first arrives.
	mustApply(t, b2, second)
	if got, want := b2.Text(), "abc"; got != want {
		t.Fatalf("text=%q after premature op, want %q", got, want)
	}
	if got, want := b2.DeferredLen(), 1; got != want {
		t.Fatalf("deferred=%d, want %d", got, want)
	}

	mustApply(t, b2, first)
	if got, want := b2.Text(), "aXYbc"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
	if got, want := b2.DeferredLen(), 0; got != want {
		t.Fatalf("deferred=%d, want %d", got, want)
	}
}

func TestBuffer_ApplyOps_HoldsBackLaterOpsFromBlockedReplica(t *testing.T) {
	b1 := New(1, "abc", Options{})
	b2 := New(2, "abc", Options{})

	first := mustEdit(t, b1, []Range{{Start: 3, End: 3}}, "1")
	second := mustEdit(t, b1, []Range{{Start: 4, End: 4}}, "2")
	third := mustEdit(t, b1, []Range{{Start: 5, End: 5}}, "3")

	mustApply(t, b2, second)
	mustApply(t, b2, third)
	if got, want := b2.DeferredLen(), 2; got != want {
		t.Fatalf("deferred=%d, want %d", got, want)
	}

	mustApply(t, b2, first)
	if got, want := b2.Text(), "abc123"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestBuffer_ApplyOps_JSONRoundTrip(t *testing.T) {
	b1 := New(1, "hello", Options{})
	b2 := New(2, "hello", Options{})

	ops := mustEdit(t, b1, []Range{{Start: 0, End: 5}}, "goodbye")
	undoOps, err := b1.Undo()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	for _, op := range append(ops, undoOps...) {
		data, err := MarshalOperation(op)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		decoded, err := UnmarshalOperation(data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		mustApply(t, b2, []Operation{decoded})
	}

	if got, want := b2.Text(), b1.Text(); got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestBuffer_UnmarshalOperation_UnknownType(t *testing.T) {
	if _, err := UnmarshalOperation([]byte(`{"type":"bogus","op":{}}`)); err == nil {
		t.Fatalf("expected error for unknown operation type")
	}
}

func TestBuffer_ApplyOps_RandomConvergence(t *testing.T) {
	inserts := []string{"", "x", "AB", "123", "\n", "hello\nworld"}

	for seed := int64(0); seed < 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		base := "the quick brown fox jumps"

		replicas := []*Buffer{
			New(1, base, Options{}),
			New(2, base, Options{}),
			New(3, base, Options{}),
		}
		history := make([][]Operation, len(replicas))

		for i, b := range replicas {
			for n := 0; n < 6; n++ {
				start := rng.Intn(b.Len() + 1)
				end := start + rng.Intn(b.Len()-start+1)
				text := inserts[rng.Intn(len(inserts))]
				ops := mustEdit(t, b, []Range{{Start: start, End: end}}, text)
				history[i] = append(history[i], ops...)
			}
		}

		// Deliver every other replica's stream in a random interleaving that
		// preserves per-replica order.
		for i, b := range replicas {
			var queues [][]Operation
			for j, ops := range history {
				if j != i {
					queues = append(queues, append([]Operation(nil), ops...))
				}
			}
			for len(queues) > 0 {
				k := rng.Intn(len(queues))
				mustApply(t, b, queues[k][:1])
				queues[k] = queues[k][1:]
				if len(queues[k]) == 0 {
					queues = append(queues[:k], queues[k+1:]...)
				}
			}
		}

		for i := 1; i < len(replicas); i++ {
			if got, want := replicas[i].Text(), replicas[0].Text(); got != want {
				t.Fatalf("seed %d: replica %d text=%q, want %q", seed, i, got, want)
			}
			if !replicas[i].Version().Equal(replicas[0].Version()) {
				t.Fatalf("seed %d: replica %d version diverged", seed, i)
			}
		}
	}
}
