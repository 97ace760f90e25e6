// Package mirror keeps an in-memory, mutation-tracked copy of one table and
// persists changes in debounced batches.
//
// A Mirror loads the whole table once at Open. Every row's fields are a
// *value.TrackedObject: any write or deletion at any depth marks the row
// dirty. Dirty rows collect in an operation queue keyed by row, and the
// first mutation after an idle period arms a single debounce timer. When it
// fires the queue is swapped out under the mirror lock, before any I/O, and
// the batch is written in the background: one bulk delete, then one bulk
// upsert keyed on the "idx" identity column.
//
// Identity is positional. Splice reindexes every row so idx equals its
// position again, and rows whose idx moved are saved again even when their
// fields did not change.
//
// Thread-safety model:
//   - All Mirror and Row methods are safe from any goroutine
//   - One mutex guards the row sequence, the queue and every row's field tree
//   - Flushes run in submission order; a failed flush is reported through
//     Options.OnFlush and the logger, never retried
package mirror
