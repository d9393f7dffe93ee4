package buffer

import (
	"encoding/json"
	"fmt"

	"github.com/iw2rmb/loom/clock"
)

// Operation is a replicated buffer mutation. Operations produced on one
// replica are applied verbatim on every other replica; applying the same set
// of operations in any causally-consistent order yields identical buffers.
type Operation interface {
	// ReplicaID identifies the replica that produced the operation.
	ReplicaID() clock.ReplicaID
	// Lamport is the operation's logical timestamp, used for tie-breaking
	// and for ordering deferred operations.
	Lamport() clock.Lamport

	opMark()
}

// EditOperation replaces a range of an insertion's text with new text. The
// range endpoints are addressed by insertion id and offset within the
// insertion, which stay valid under concurrent edits.
type EditOperation struct {
	ID             clock.Local  `json:"id"`
	StartID        clock.Local  `json:"start_id"`
	StartOffset    uint32       `json:"start_offset"`
	EndID          clock.Local  `json:"end_id"`
	EndOffset      uint32       `json:"end_offset"`
	VersionInRange clock.Global `json:"version_in_range"`
	NewText        string       `json:"new_text,omitempty"`
	LamportTime    uint32       `json:"lamport"`
}

func (op EditOperation) ReplicaID() clock.ReplicaID { return op.ID.Replica }

func (op EditOperation) Lamport() clock.Lamport {
	return clock.Lamport{Value: op.LamportTime, Replica: op.ID.Replica}
}

func (EditOperation) opMark() {}

// UndoOperation flips the undo count of a prior edit. Counts are absolute,
// not deltas, so concurrent undos of the same edit converge on the maximum.
type UndoOperation struct {
	ID          clock.Local `json:"id"`
	EditID      clock.Local `json:"edit_id"`
	Count       uint32      `json:"count"`
	LamportTime uint32      `json:"lamport"`
}

func (op UndoOperation) ReplicaID() clock.ReplicaID { return op.ID.Replica }

func (op UndoOperation) Lamport() clock.Lamport {
	return clock.Lamport{Value: op.LamportTime, Replica: op.ID.Replica}
}

func (UndoOperation) opMark() {}

// UpdateSelectionsOperation broadcasts a replica's selection set. Removed
// set to true deletes the set.
type UpdateSelectionsOperation struct {
	SetID       SelectionSetID `json:"set_id"`
	Selections  []Selection    `json:"selections,omitempty"`
	Removed     bool           `json:"removed,omitempty"`
	LamportTime uint32         `json:"lamport"`
}

func (op UpdateSelectionsOperation) ReplicaID() clock.ReplicaID { return op.SetID.Replica }

func (op UpdateSelectionsOperation) Lamport() clock.Lamport {
	return clock.Lamport{Value: op.LamportTime, Replica: op.SetID.Replica}
}

func (UpdateSelectionsOperation) opMark() {}

const (
	opTypeEdit       = "edit"
	opTypeUndo       = "undo"
	opTypeSelections = "selections"
)

type opEnvelope struct {
	Type string          `json:"type"`
	Op   json.RawMessage `json:"op"`
}

// MarshalOperation encodes an operation as a self-describing JSON envelope
// suitable for transport between replicas.
func MarshalOperation(op Operation) ([]byte, error) {
	var typ string
	switch op.(type) {
	case EditOperation:
		typ = opTypeEdit
	case UndoOperation:
		typ = opTypeUndo
	case UpdateSelectionsOperation:
		typ = opTypeSelections
	default:
		return nil, fmt.Errorf("buffer: marshal operation: unknown type %T", op)
	}
	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(opEnvelope{Type: typ, Op: raw})
}

// UnmarshalOperation decodes an operation envelope produced by
// MarshalOperation.
func UnmarshalOperation(data []byte) (Operation, error) {
	var env opEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("buffer: unmarshal operation: %w", err)
	}
	switch env.Type {
	case opTypeEdit:
		var op EditOperation
		if err := json.Unmarshal(env.Op, &op); err != nil {
			return nil, fmt.Errorf("buffer: unmarshal edit: %w", err)
		}
		return op, nil
	case opTypeUndo:
		var op UndoOperation
		if err := json.Unmarshal(env.Op, &op); err != nil {
			return nil, fmt.Errorf("buffer: unmarshal undo: %w", err)
		}
		return op, nil
	case opTypeSelections:
		var op UpdateSelectionsOperation
		if err := json.Unmarshal(env.Op, &op); err != nil {
			return nil, fmt.Errorf("buffer: unmarshal selections: %w", err)
		}
		return op, nil
	default:
		return nil, fmt.Errorf("buffer: %w: unknown operation type %q", ErrInvalidOperation, env.Type)
	}
}
