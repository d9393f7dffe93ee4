// Package buffer implements the replicated text document model for Loom.
//
// A Buffer is one replica of a shared document. Every local mutation
// produces operations that, applied to any other replica in any order,
// converge all replicas on the same text and the same anchor positions.
//
// Offsets are 0-based visible bytes; ranges are half-open: [Start, End).
package buffer
