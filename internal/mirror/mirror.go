package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/value"
)

// Gateway is the persistence boundary the mirror needs.
// *store.Store implements it.
type Gateway interface {
	TableExists(ctx context.Context, t store.Table) (bool, error)
	Load(ctx context.Context, t store.Table) ([]value.Object, error)
	UpsertByIdentity(ctx context.Context, t store.Table, rows []value.Object) (int64, error)
	DeleteByIdentity(ctx context.Context, t store.Table, ids []int64) (int64, error)
}

// Mirror is the in-memory, change-tracked copy of one table.
type Mirror struct {
	gw        Gateway
	table     store.Table
	debounce  time.Duration
	afterFunc AfterFunc
	onFlush   func(FlushResult)
	logger    *slog.Logger
	batchIDs  BatchIDGenerator
	pruneTail bool

	mu      sync.Mutex
	rows    []*Row
	columns map[string]struct{} // every field seen on load or save
	queue   *opQueue
	timer   Timer  // non-nil while a flush is pending
	gen     uint64 // invalidates timers stopped too late
	last    <-chan struct{} // closed when the latest cut batch finished
	closed  bool
}

// Open resolves the table, checks that it exists and loads every row.
//
// Returns a ConfigurationError for an empty or malformed table name, a
// NotFoundError when the table does not exist and a GatewayError when the
// load fails. No mirror is returned on error and nothing is queued by the
// load itself.
func Open(ctx context.Context, gw Gateway, opts Options) (*Mirror, error) {
	schema := opts.Schema
	if schema == "" {
		schema = store.DefaultWriteSchema
	}
	table, err := store.ParseTable(opts.Table, schema)
	if err != nil {
		return nil, err
	}

	m := &Mirror{
		gw:        gw,
		table:     table,
		debounce:  opts.Debounce,
		afterFunc: opts.AfterFunc,
		onFlush:   opts.OnFlush,
		logger:    opts.Logger,
		batchIDs:  opts.BatchIDs,
		pruneTail: opts.PruneTail,
		columns:   make(map[string]struct{}),
		queue:     newOpQueue(),
	}
	if m.debounce <= 0 {
		m.debounce = DefaultDebounce
	}
	if m.afterFunc == nil {
		m.afterFunc = realAfterFunc
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.batchIDs == nil {
		m.batchIDs = UUIDv7Generator{}
	}

	ok, err := gw.TableExists(ctx, table)
	if err != nil {
		return nil, gatewayError("open", table, err)
	}
	if !ok {
		return nil, store.NewNotFoundError("open", table)
	}

	records, err := gw.Load(ctx, table)
	if err != nil {
		return nil, gatewayError("load", table, err)
	}

	m.rows = make([]*Row, len(records))
	for i, rec := range records {
		idx := int64(i)
		if v, ok := rec[store.IdentityColumn].(value.Int); ok {
			idx = int64(v)
		}
		delete(rec, store.IdentityColumn)
		for k := range rec {
			m.columns[k] = struct{}{}
		}
		m.rows[i] = newRow(m, idx, rec)
	}

	m.logger.Debug("mirror loaded", "table", table.String(), "rows", len(m.rows))
	return m, nil
}

// Table returns the resolved table.
func (m *Mirror) Table() store.Table {
	return m.table
}

// All returns the live rows in order. The slice is a copy; the rows are not.
func (m *Mirror) All() []*Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Row(nil), m.rows...)
}

// Len returns the number of rows.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// At returns the row at position i, or nil if i is out of range.
func (m *Mirror) At(i int) *Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

// Push appends a row with identity equal to the current length and queues
// its save. The row takes ownership of fields; a field named "idx" is
// dropped.
func (m *Mirror) Push(fields value.Object) *Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(fields, store.IdentityColumn)
	r := newRow(m, int64(len(m.rows)), fields)
	m.enqueueLocked(r, OpSave)
	m.rows = append(m.rows, r)
	return r
}

// Splice removes deleteCount rows starting at start and inserts items in
// their place, with array-splice clamping: a negative start counts back
// from the end and deleteCount is clamped to the rows available.
//
// Each removed row queues a delete of its identity and each inserted row a
// save. Every row is then reindexed so idx equals its position, and rows
// whose idx moved are queued for save again. With Options.PruneTail,
// identities freed at the end of a shrunk table are deleted too. Returns
// the removed rows; mutating them afterwards has no effect on the table.
func (m *Mirror) Splice(start, deleteCount int, items ...value.Object) []*Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.rows)
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	deleteCount = min(max(deleteCount, 0), n-start)

	before := make(map[int64]struct{}, n)
	for _, r := range m.rows {
		before[r.idx] = struct{}{}
	}

	removed := append([]*Row(nil), m.rows[start:start+deleteCount]...)
	inserted := make([]*Row, len(items))
	for i, fields := range items {
		delete(fields, store.IdentityColumn)
		inserted[i] = newRow(m, int64(start+i), fields)
	}

	rows := make([]*Row, 0, n-deleteCount+len(items))
	rows = append(rows, m.rows[:start]...)
	rows = append(rows, inserted...)
	rows = append(rows, m.rows[start+deleteCount:]...)
	m.rows = rows

	for _, r := range removed {
		r.removed = true
		m.enqueueLocked(r, OpDelete)
	}
	for _, r := range inserted {
		m.enqueueLocked(r, OpSave)
	}

	after := make(map[int64]struct{}, len(rows))
	for pos, r := range rows {
		idx := int64(pos)
		after[idx] = struct{}{}
		if r.idx != idx {
			r.idx = idx
			m.enqueueLocked(r, OpSave)
		}
	}

	if m.pruneTail {
		deleted := make(map[int64]struct{}, len(removed))
		for _, r := range removed {
			deleted[r.idx] = struct{}{}
		}
		for idx := range before {
			_, live := after[idx]
			_, queued := deleted[idx]
			if !live && !queued {
				m.orphanLocked(idx)
			}
		}
	}

	if len(removed) > 0 || len(inserted) > 0 {
		m.logger.Debug("rows spliced",
			"table", m.table.String(),
			"start", start,
			"removed", len(removed),
			"inserted", len(inserted),
		)
	}
	return removed
}

// Pending returns the number of queued operations.
func (m *Mirror) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Flush stops a pending timer and writes the queue now, returning the
// combined statement error. It waits for earlier batches to finish first,
// also when nothing is queued.
func (m *Mirror) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.disarmLocked()
	last := m.last
	b := m.cutLocked()
	m.mu.Unlock()

	if b == nil {
		waitFor(last)
		return nil
	}
	res := m.execute(ctx, b)
	m.report(res)
	return res.Err
}

// Wait blocks until every batch cut so far has finished.
func (m *Mirror) Wait() {
	m.mu.Lock()
	last := m.last
	m.mu.Unlock()
	waitFor(last)
}

// waitFor blocks until done is closed. Batches are chained, so the latest
// batch's channel closes only after every earlier one.
func waitFor(done <-chan struct{}) {
	if done != nil {
		<-done
	}
}

// Close stops the scheduler, writes whatever is still queued and waits for
// in-flight flushes. Rows stay readable and mutable afterwards, but
// changes are no longer persisted. The gateway is not closed.
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.disarmLocked()
	last := m.last
	b := m.cutLocked()
	m.closed = true
	m.mu.Unlock()

	if b == nil {
		waitFor(last)
		return nil
	}
	res := m.execute(ctx, b)
	m.report(res)
	return res.Err
}
