// Command loom-demo simulates two replicas editing a shared document and
// converging by exchanging serialized operations.
package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/iw2rmb/loom"
	"github.com/iw2rmb/loom/buffer"
	"github.com/iw2rmb/loom/clock"
)

func main() {
	docID := uuid.NewString()
	fmt.Printf("loom %s, document %s\n\n", loom.Version(), docID)

	const base = "the quick fox"
	alice := buffer.New(1, base, buffer.Options{})
	bob := buffer.New(2, base, buffer.Options{})

	// Concurrent edits at the same position. Both replicas insert between
	// "quick " and "fox" without seeing each other's operation first.
	aliceOps := mustEdit(alice, 10, 10, "brown ")
	bobOps := mustEdit(bob, 10, 10, "red ")

	fmt.Printf("alice edits: %q\n", alice.Text())
	fmt.Printf("bob edits:   %q\n\n", bob.Text())

	// Operations travel as JSON, the way a sync server would relay them.
	deliver(bob, aliceOps)
	deliver(alice, bobOps)

	fmt.Printf("after exchange:\n")
	fmt.Printf("alice: %q\n", alice.Text())
	fmt.Printf("bob:   %q\n\n", bob.Text())

	// Out-of-order delivery. Alice appends twice; bob receives the second
	// operation first and defers it until its dependency arrives.
	first := mustEdit(alice, alice.Len(), alice.Len(), " jumps")
	second := mustEdit(alice, alice.Len(), alice.Len(), " high")

	deliver(bob, second)
	fmt.Printf("bob deferred %d operation(s), text still %q\n", bob.DeferredLen(), bob.Text())

	deliver(bob, first)
	fmt.Printf("dependency arrived, bob: %q\n\n", bob.Text())

	// Undo replicates like any other operation.
	undoOps, err := alice.Undo()
	if err != nil {
		log.Fatal(err)
	}
	deliver(bob, undoOps)

	fmt.Printf("after alice undoes her last edit:\n")
	fmt.Printf("alice: %q\n", alice.Text())
	fmt.Printf("bob:   %q\n", bob.Text())

	if alice.Text() != bob.Text() {
		log.Fatalf("replicas diverged: %q vs %q", alice.Text(), bob.Text())
	}
	fmt.Printf("\nconverged at version %s\n", describe(alice.Version()))
}

func mustEdit(b *buffer.Buffer, start, end int, text string) []buffer.Operation {
	ops, err := b.Edit([]buffer.Range{{Start: start, End: end}}, text)
	if err != nil {
		log.Fatal(err)
	}
	return ops
}

// deliver round-trips each operation through its wire encoding before
// applying it, as a relay would.
func deliver(b *buffer.Buffer, ops []buffer.Operation) {
	for _, op := range ops {
		data, err := buffer.MarshalOperation(op)
		if err != nil {
			log.Fatal(err)
		}
		decoded, err := buffer.UnmarshalOperation(data)
		if err != nil {
			log.Fatal(err)
		}
		if err := b.ApplyOps(decoded); err != nil {
			log.Fatal(err)
		}
	}
}

func describe(v clock.Global) string {
	data, err := v.MarshalJSON()
	if err != nil {
		return err.Error()
	}
	return string(data)
}
