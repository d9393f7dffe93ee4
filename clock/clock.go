// Package clock implements the logical time primitives the replicated
// buffer is built on: replica-local sequence ids, lamport timestamps for
// deterministic tie-breaking, and version vectors for causal "observed"
// checks.
package clock

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ReplicaID identifies one replica of a buffer. It is assigned by whatever
// hosts the replicas (a collaboration session, a test) and must be unique
// within a document.
type ReplicaID uint16

// Local is a replica-tagged sequence number. Every edit and undo a replica
// produces gets the next Local from that replica's clock, so Locals from one
// replica are totally ordered and gap-free.
type Local struct {
	Replica ReplicaID `json:"replica"`
	Seq     uint32    `json:"seq"`
}

// LocalClock produces Locals for a single replica. It is owned by one Buffer
// and never shared.
type LocalClock struct {
	replica ReplicaID
	seq     uint32
}

func NewLocalClock(replica ReplicaID) LocalClock {
	return LocalClock{replica: replica}
}

// Tick returns the next Local for this replica.
func (c *LocalClock) Tick() Local {
	c.seq++
	return Local{Replica: c.replica, Seq: c.seq}
}

// Observe fast-forwards the clock past a Local seen from elsewhere (a remote
// op authored here in a previous session, or a replayed log).
func (c *LocalClock) Observe(id Local) {
	if id.Replica == c.replica && id.Seq > c.seq {
		c.seq = id.Seq
	}
}

// Lamport is a lamport timestamp: a per-replica counter that also advances
// past every remote timestamp it observes. Concurrent operations are ordered
// by (Value, Replica); this ordering is only used for tie-breaking, never
// for causality.
type Lamport struct {
	Value   uint32    `json:"value"`
	Replica ReplicaID `json:"replica"`
}

// Cmp returns -1, 0 or 1 ordering two lamport timestamps.
func (l Lamport) Cmp(other Lamport) int {
	switch {
	case l.Value < other.Value:
		return -1
	case l.Value > other.Value:
		return 1
	case l.Replica < other.Replica:
		return -1
	case l.Replica > other.Replica:
		return 1
	default:
		return 0
	}
}

// LamportClock produces lamport timestamps for a single replica.
type LamportClock struct {
	replica ReplicaID
	value   uint32
}

func NewLamportClock(replica ReplicaID) LamportClock {
	return LamportClock{replica: replica}
}

// Tick returns the next timestamp.
func (c *LamportClock) Tick() Lamport {
	c.value++
	return Lamport{Value: c.value, Replica: c.replica}
}

// Observe advances the clock past a remote timestamp.
func (c *LamportClock) Observe(ts Lamport) {
	if ts.Value > c.value {
		c.value = ts.Value
	}
	c.value++
}

// Global is a version vector: for each replica, the highest Local.Seq this
// buffer has observed. The zero value is usable and observes nothing.
type Global struct {
	counts map[ReplicaID]uint32
}

// NewGlobal returns an empty version vector.
func NewGlobal() Global {
	return Global{}
}

// Clone returns an independent copy.
func (g Global) Clone() Global {
	if len(g.counts) == 0 {
		return Global{}
	}
	counts := make(map[ReplicaID]uint32, len(g.counts))
	for r, n := range g.counts {
		counts[r] = n
	}
	return Global{counts: counts}
}

// Observe records id as seen. Observing a Local implies all earlier Locals
// from the same replica are seen too (per-replica FIFO delivery).
func (g *Global) Observe(id Local) {
	if id.Seq == 0 {
		return
	}
	if g.counts == nil {
		g.counts = make(map[ReplicaID]uint32)
	}
	if id.Seq > g.counts[id.Replica] {
		g.counts[id.Replica] = id.Seq
	}
}

// ObserveAll folds another version vector into this one.
func (g *Global) ObserveAll(other Global) {
	for r, n := range other.counts {
		if g.counts == nil {
			g.counts = make(map[ReplicaID]uint32)
		}
		if n > g.counts[r] {
			g.counts[r] = n
		}
	}
}

// Observed reports whether id has been seen. Seq 0 is the baseline id every
// buffer starts with and is always observed.
func (g Global) Observed(id Local) bool {
	return id.Seq <= g.counts[id.Replica]
}

// ChangedSince reports whether this vector has observed anything the other
// has not.
func (g Global) ChangedSince(other Global) bool {
	for r, n := range g.counts {
		if n > other.counts[r] {
			return true
		}
	}
	return false
}

// LessOrEqual reports whether everything this vector observed is also
// observed by other (g ≤ other in the partial causal order).
func (g Global) LessOrEqual(other Global) bool {
	return !g.ChangedSince(other)
}

// Equal reports whether both vectors observed exactly the same ids.
func (g Global) Equal(other Global) bool {
	return !g.ChangedSince(other) && !other.ChangedSince(g)
}

type globalEntry struct {
	Replica ReplicaID `json:"replica"`
	Count   uint32    `json:"count"`
}

// MarshalJSON encodes the vector as a replica-sorted list of entries so the
// wire form is deterministic.
func (g Global) MarshalJSON() ([]byte, error) {
	entries := make([]globalEntry, 0, len(g.counts))
	for r, n := range g.counts {
		entries = append(entries, globalEntry{Replica: r, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Replica < entries[j].Replica })
	return json.Marshal(entries)
}

func (g *Global) UnmarshalJSON(data []byte) error {
	var entries []globalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	g.counts = nil
	for _, e := range entries {
		g.Observe(Local{Replica: e.Replica, Seq: e.Count})
	}
	return nil
}

func (g Global) String() string {
	entries := make([]globalEntry, 0, len(g.counts))
	for r, n := range g.counts {
		entries = append(entries, globalEntry{Replica: r, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Replica < entries[j].Replica })
	s := "{"
	for i, e := range entries {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d:%d", e.Replica, e.Count)
	}
	return s + "}"
}
