package buffer

import "github.com/tidwall/btree"

// opQueue holds causally premature operations in lamport order so that
// replaying them after a flush is deterministic regardless of arrival order.
type opQueue struct {
	tree *btree.BTreeG[Operation]
}

func newOpQueue() *opQueue {
	return &opQueue{
		tree: btree.NewBTreeGOptions(
			func(a, b Operation) bool { return a.Lamport().Cmp(b.Lamport()) < 0 },
			btree.Options{NoLocks: true, Degree: 8},
		),
	}
}

func (q *opQueue) insert(ops ...Operation) {
	for _, op := range ops {
		q.tree.Set(op)
	}
}

// drain removes and returns all queued operations in lamport order.
func (q *opQueue) drain() []Operation {
	ops := make([]Operation, 0, q.tree.Len())
	q.tree.Scan(func(op Operation) bool {
		ops = append(ops, op)
		return true
	})
	q.tree.Clear()
	return ops
}

func (q *opQueue) len() int {
	return q.tree.Len()
}
