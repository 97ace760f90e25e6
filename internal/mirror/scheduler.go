package mirror

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/zyedidia/generic"
	"github.com/zyedidia/generic/btree"

	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/value"
)

// Scheduler states: IDLE when m.timer is nil, PENDING while it is armed.
// FLUSHING is the window between a batch being cut and its statements
// completing; it overlaps a new PENDING cycle.

// enqueueLocked queues kind for r and arms the debounce timer if idle.
// Callers hold m.mu.
func (m *Mirror) enqueueLocked(r *Row, kind OpKind) {
	if m.closed {
		m.logger.Warn("mirror closed, change will not be persisted",
			"table", m.table.String(),
			"idx", r.idx,
			"op", kind.String(),
		)
		return
	}

	m.queue.put(pendingOp{Kind: kind, Row: r, Idx: r.idx})
	if kind == OpSave {
		m.queue.claim(r.idx)
	}
	m.armLocked()
}

// orphanLocked queues a delete for an identity no live row holds anymore.
func (m *Mirror) orphanLocked(idx int64) {
	if m.closed {
		return
	}
	m.queue.orphan(idx)
	m.armLocked()
}

// armLocked starts the debounce window unless one is already running.
// The window is fixed from the first mutation; it is never reset.
func (m *Mirror) armLocked() {
	if m.timer != nil {
		return
	}
	m.gen++
	gen := m.gen
	m.timer = m.afterFunc(m.debounce, func() { m.fire(gen) })
	m.logger.Debug("flush armed", "table", m.table.String(), "debounce", m.debounce)
}

// disarmLocked stops a pending timer. A timer that already fired is
// neutralized by the generation check in fire.
func (m *Mirror) disarmLocked() {
	if m.timer == nil {
		return
	}
	m.timer.Stop()
	m.timer = nil
	m.gen++
}

// fire is the timer callback. It cuts the batch synchronously and hands it
// to a background goroutine, so mutations arriving during the I/O start a
// new cycle instead of joining this one.
func (m *Mirror) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	b := m.cutLocked()
	m.mu.Unlock()

	if b == nil {
		return
	}
	go func() {
		m.report(m.execute(context.Background(), b))
	}()
}

// batch is one cut of the queue with rows already serialized.
type batch struct {
	id      string
	saves   *btree.Tree[int64, value.Object]
	deletes *btree.Tree[int64, struct{}]
	prev    <-chan struct{} // closed when the preceding batch finished
	done    chan struct{}
}

// cutLocked swaps the queue for a fresh one and snapshots every saved row.
// It returns nil when nothing was queued. Callers hold m.mu; on a non-nil
// return the batch becomes m.last, so Wait and later batches wait for it.
// Every known column missing from a saved row is bound as NULL, so a
// deleted field is cleared in the store.
func (m *Mirror) cutLocked() *batch {
	q := m.queue
	m.queue = newOpQueue()
	if q.len() == 0 {
		return nil
	}

	b := &batch{
		id:      m.batchIDs.Generate(),
		saves:   btree.New[int64, value.Object](generic.Less[int64]),
		deletes: btree.New[int64, struct{}](generic.Less[int64]),
		prev:    m.last,
		done:    make(chan struct{}),
	}
	for _, op := range q.ops {
		switch op.Kind {
		case OpDelete:
			b.deletes.Put(op.Idx, struct{}{})
		case OpSave:
			row := op.Row.snapshotLocked()
			for k := range row {
				if k != store.IdentityColumn {
					m.columns[k] = struct{}{}
				}
			}
			b.saves.Put(op.Row.idx, row)
		}
	}
	b.saves.Each(func(_ int64, row value.Object) {
		for k := range m.columns {
			if _, ok := row[k]; !ok {
				row[k] = value.Null{}
			}
		}
	})
	for idx := range q.orphans {
		b.deletes.Put(idx, struct{}{})
	}

	m.last = b.done
	return b
}

// execute runs the batch's statements after the preceding batch finished:
// the delete first, then the upsert. The two are not transactional. Errors
// from both are combined; nothing is retried or re-queued.
func (m *Mirror) execute(ctx context.Context, b *batch) FlushResult {
	defer close(b.done)
	if b.prev != nil {
		<-b.prev
	}

	res := FlushResult{BatchID: b.id}
	b.deletes.Each(func(idx int64, _ struct{}) {
		res.Deleted = append(res.Deleted, idx)
	})
	var rows []value.Object
	b.saves.Each(func(idx int64, row value.Object) {
		res.Saved = append(res.Saved, idx)
		rows = append(rows, row)
	})

	var errs *multierror.Error
	if len(res.Deleted) > 0 {
		if _, err := m.gw.DeleteByIdentity(ctx, m.table, res.Deleted); err != nil {
			errs = multierror.Append(errs, gatewayError("delete", m.table, err))
		}
	}
	if len(rows) > 0 {
		if _, err := m.gw.UpsertByIdentity(ctx, m.table, rows); err != nil {
			errs = multierror.Append(errs, gatewayError("upsert", m.table, err))
		}
	}
	res.Err = errs.ErrorOrNil()
	return res
}

// report logs the outcome and hands it to OnFlush.
func (m *Mirror) report(res FlushResult) {
	if res.Err != nil {
		m.logger.Error("flush failed",
			"table", m.table.String(),
			"batch", res.BatchID,
			"saved", res.Saved,
			"deleted", res.Deleted,
			"error", res.Err,
		)
	} else {
		m.logger.Debug("flush complete",
			"table", m.table.String(),
			"batch", res.BatchID,
			"saved", len(res.Saved),
			"deleted", len(res.Deleted),
		)
	}
	if m.onFlush != nil {
		m.onFlush(res)
	}
}

// gatewayError keeps store errors as they are and wraps anything else.
func gatewayError(op string, t store.Table, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return store.NewGatewayError(op, t, err)
}
