package mirror

import (
	"log/slog"
	"time"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Timer is an armed debounce timer.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests substitute a manual implementation
// to fire timers deterministically.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Mirror.
type Options struct {
	// Table is "name" or "schema.name". A dotted name overrides Schema.
	Table string

	// Schema defaults to store.DefaultWriteSchema ("tk").
	Schema string

	// Debounce is the fixed window between the first mutation of a batch
	// and its flush. Later mutations do not extend it.
	Debounce time.Duration

	// OnFlush, if set, is called after every flush that had work to do.
	OnFlush func(FlushResult)

	// PruneTail makes a shrinking Splice also delete the identities past
	// the new length that no remaining row holds, so the stored table never
	// keeps a stale tail. Off by default: a splice only deletes the rows it
	// removed.
	PruneTail bool

	Logger    *slog.Logger
	AfterFunc AfterFunc
	BatchIDs  BatchIDGenerator
}

// FlushResult describes one executed batch.
type FlushResult struct {
	BatchID string
	Saved   []int64 // identities upserted, ascending
	Deleted []int64 // identities deleted, ascending
	Err     error   // combined statement errors, nil on success
}
