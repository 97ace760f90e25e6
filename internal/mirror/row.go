package mirror

import (
	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/value"
)

// Row is one mirrored record: a positional identity plus tracked fields.
//
// The identity is held apart from the fields. It is written as the "idx"
// column on save and cannot be set through the field tree.
type Row struct {
	m       *Mirror
	idx     int64 // guarded by m.mu
	removed bool  // guarded by m.mu
	fields  *value.TrackedObject
}

func newRow(m *Mirror, idx int64, fields value.Object) *Row {
	r := &Row{m: m, idx: idx}
	r.fields = value.TrackWith(fields, &m.mu, r.dirty).(*value.TrackedObject)
	return r
}

// dirty is the tracker callback bound to this row.
func (r *Row) dirty() {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.removed {
		return
	}
	r.m.enqueueLocked(r, OpSave)
}

// Idx returns the row's current identity.
func (r *Row) Idx() int64 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.idx
}

// Fields returns the tracked field tree.
func (r *Row) Fields() *value.TrackedObject {
	return r.fields
}

// Get reads a field. Composite values come back tracked.
func (r *Row) Get(key string) (value.Value, bool) {
	if key == store.IdentityColumn {
		return value.Int(r.Idx()), true
	}
	return r.fields.Get(key)
}

// Set writes a field. Writes to "idx" are ignored.
func (r *Row) Set(key string, v value.Value) {
	if key == store.IdentityColumn {
		r.m.logger.Warn("identity is positional, ignoring write", "table", r.m.table.String(), "idx", r.Idx())
		return
	}
	r.fields.Set(key, v)
}

// Delete removes a field.
func (r *Row) Delete(key string) {
	if key == store.IdentityColumn {
		return
	}
	r.fields.Delete(key)
}

// Snapshot returns a deep copy of the row as it would be saved now,
// including "idx".
func (r *Row) Snapshot() value.Object {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Row) snapshotLocked() value.Object {
	obj := value.Copy(r.fields).(value.Object)
	obj[store.IdentityColumn] = value.Int(r.idx)
	return obj
}
